// Package client posts documents to the remote parsing service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metcalfc/pdfjson/internal/upload"
)

// DefaultBaseURL is the hosted parsing service.
const DefaultBaseURL = "https://resume-parser-gules.vercel.app"

// FieldName is the multipart field carrying the document.
const FieldName = "file"

// ErrStatus is matched by errors.Is for any non-2xx response.
var ErrStatus = errors.New("unexpected response status")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("parsing service returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Result is a parsed response.
type Result struct {
	RequestID string
	Status    int
	// Items is nil when the response carried no data field or was not decoded.
	Items []upload.ParsedItem
	Raw   json.RawMessage
}

// Client uploads documents to one endpoint.
type Client struct {
	endpoint string
	decode   bool
	http     *http.Client
}

// New creates a client for the variant's endpoint under baseURL.
// A zero timeout leaves requests unbounded.
func New(baseURL string, v upload.Variant, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + v.Path,
		decode:   v.RendersResults,
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL uploads are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Upload posts f as multipart form data and reports body progress to fn.
func (c *Client) Upload(ctx context.Context, f *upload.File, fn upload.ProgressFunc) (*Result, error) {
	body, contentType, err := encodeForm(f)
	if err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}

	total := int64(body.Len())
	var r io.Reader = body
	if fn != nil {
		r = &progressReader{r: body, total: total, fn: fn}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	id := uuid.NewString()
	req.Header.Set("X-Request-ID", id)

	log.Printf("client.Upload: posting %s (%s, %d bytes) to %s [%s]", f.Name, f.Type, f.Size(), c.endpoint, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling parsing service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	log.Printf("client.Upload: response [%s]: %s", id, truncate(string(raw), 2048))

	res := &Result{RequestID: id, Status: resp.StatusCode, Raw: raw}
	if !c.decode {
		return res, nil
	}

	var payload struct {
		Data []upload.ParsedItem `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	res.Items = payload.Data
	return res, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeForm builds the whole body up front so Content-Length, and with it
// the progress total, is known.
func encodeForm(f *upload.File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, quoteEscaper.Replace(f.Name)))
	ct := f.Type
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
