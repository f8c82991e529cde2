package stub

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/pdfjson/internal/client"
	"github.com/metcalfc/pdfjson/internal/panel"
	"github.com/metcalfc/pdfjson/internal/upload"
)

func TestLines(t *testing.T) {
	data := []byte("%PDF-1.4\n\n  Jane Doe\n\x00\x01\x02\nSoftware Engineer  \n\xff\xfe\n")

	got := Lines(data)
	want := []upload.ParsedItem{
		{X: 0, Y: 1, Text: "%PDF-1.4"},
		{X: 2, Y: 3, Text: "Jane Doe"},
		{X: 0, Y: 5, Text: "Software Engineer"},
	}
	assert.Equal(t, want, got)
}

func TestLines_Empty(t *testing.T) {
	got := Lines(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLines_Capped(t *testing.T) {
	data := strings.Repeat("line\n", MaxItems+20)
	assert.Len(t, Lines([]byte(data)), MaxItems)
}

func TestHandler_MissingFile(t *testing.T) {
	e := New(0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload2", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_TooLarge(t *testing.T) {
	srv := httptest.NewServer(New(4))
	defer srv.Close()

	v, err := upload.Lookup("progress")
	require.NoError(t, err)
	f := &upload.File{Name: "cv.pdf", Type: "application/pdf", Data: []byte("%PDF-1.4")}

	_, err = client.New(srv.URL, v, 0).Upload(context.Background(), f, nil)
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusRequestEntityTooLarge, se.Code)
}

func TestHandler_BodyLimitRejectsBeforeParsing(t *testing.T) {
	e := New(4)

	// Not multipart at all: without the size cap this would be a 400.
	body := strings.Repeat("x", formOverhead+4096)
	req := httptest.NewRequest(http.MethodPost, "/upload2", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandler_NoLimit(t *testing.T) {
	e := New(0)

	body := strings.Repeat("x", formOverhead+4096)
	req := httptest.NewRequest(http.MethodPost, "/upload2", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, "65K", bodyLimit(1))
	assert.Equal(t, "102464K", bodyLimit(100*1024*1024))
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

// The panel, the client and the stub together.
func TestPanelAgainstStub(t *testing.T) {
	srv := httptest.NewServer(New(0))
	defer srv.Close()

	f := &upload.File{Name: "cv.pdf", Type: "application/pdf", Data: []byte("%PDF-1.4\nJane Doe\n")}

	for _, name := range upload.Variants() {
		t.Run(name, func(t *testing.T) {
			v, err := upload.Lookup(name)
			require.NoError(t, err)

			var notices []upload.Notice
			p := panel.New(v, upload.NotifierFunc(func(n upload.Notice) { notices = append(notices, n) }))

			require.NoError(t, p.Submit(context.Background(), client.New(srv.URL, v, 0), f))
			assert.Empty(t, notices)

			s := p.Snapshot()
			assert.Equal(t, panel.Succeeded, s.Phase)
			if v.RendersResults {
				assert.Equal(t, `[{"x":0,"y":1,"text":"%PDF-1.4"},{"x":0,"y":2,"text":"Jane Doe"}]`, panel.Render(s.Items))
				assert.Equal(t, 100, s.Progress)
			} else {
				assert.Empty(t, s.Items)
				assert.Equal(t, 0, s.Progress)
			}
		})
	}
}
