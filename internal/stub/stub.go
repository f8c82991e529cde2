// Package stub is a local stand-in for the parsing service, for trying the
// panel without network access. It does not parse documents: every printable
// line of the upload comes back as one item.
package stub

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/metcalfc/pdfjson/internal/client"
	"github.com/metcalfc/pdfjson/internal/upload"
)

// MaxItems caps the number of items returned per upload.
const MaxItems = 500

// formOverhead is the room left for multipart framing on top of the file
// size limit.
const formOverhead = 64 << 10

// UploadResponse is returned by the baseline endpoint.
type UploadResponse struct {
	Message  string `json:"message"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// ParseResponse is returned by the parsing endpoint.
type ParseResponse struct {
	Data []upload.ParsedItem `json:"data"`
}

// Handler serves the stub endpoints.
type Handler struct {
	maxBytes int64
}

// NewHandler creates a handler rejecting uploads larger than maxBytes.
func NewHandler(maxBytes int64) *Handler {
	return &Handler{maxBytes: maxBytes}
}

// New builds the echo server with both upload routes.
func New(maxBytes int64) *echo.Echo {
	h := NewHandler(maxBytes)
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if maxBytes > 0 {
		e.Use(middleware.BodyLimit(bodyLimit(maxBytes)))
	}
	e.POST("/upload", h.HandleUpload)
	e.POST("/upload2", h.HandleParse)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

// HandleUpload acknowledges the file without parsing it.
func (h *Handler) HandleUpload(c echo.Context) error {
	data, name, err := h.readFile(c)
	if err != nil {
		return err
	}
	log.Printf("stub.HandleUpload: %s (%d bytes) [%s]", name, len(data), c.Response().Header().Get(echo.HeaderXRequestID))
	return c.JSON(http.StatusOK, UploadResponse{Message: "ok", FileName: name, FileSize: int64(len(data))})
}

// HandleParse returns the printable lines of the file as items.
func (h *Handler) HandleParse(c echo.Context) error {
	data, name, err := h.readFile(c)
	if err != nil {
		return err
	}
	items := Lines(data)
	log.Printf("stub.HandleParse: %s (%d bytes) -> %d items [%s]", name, len(data), len(items), c.Response().Header().Get(echo.HeaderXRequestID))
	return c.JSON(http.StatusOK, ParseResponse{Data: items})
}

// bodyLimit renders the request size cap in the form BodyLimit parses.
func bodyLimit(maxBytes int64) string {
	return fmt.Sprintf("%dK", (maxBytes+formOverhead+1023)/1024)
}

func (h *Handler) readFile(c echo.Context) ([]byte, string, error) {
	fh, err := c.FormFile(client.FieldName)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "missing form field 'file'")
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return nil, "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusInternalServerError, "cannot open upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusInternalServerError, "cannot read upload")
	}
	return data, fh.Filename, nil
}

// Lines returns one item per non-blank, printable line, with y as the line
// number and x as the indentation.
func Lines(data []byte) []upload.ParsedItem {
	items := []upload.ParsedItem{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	y := 0
	for sc.Scan() && len(items) < MaxItems {
		line := sc.Text()
		y++
		if !utf8.ValidString(line) {
			continue
		}
		text := strings.TrimSpace(line)
		if text == "" || !printable(text) {
			continue
		}
		indent := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
		items = append(items, upload.ParsedItem{X: float64(indent), Y: float64(y), Text: text})
	}
	return items
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && r != '\t' {
			return false
		}
	}
	return true
}
