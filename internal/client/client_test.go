package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/pdfjson/internal/upload"
)

func mustVariant(t *testing.T, name string) upload.Variant {
	t.Helper()
	v, err := upload.Lookup(name)
	require.NoError(t, err)
	return v
}

func testFile() *upload.File {
	return &upload.File{
		Name: "cv.pdf",
		Type: "application/pdf",
		Data: []byte("%PDF-1.4 test content"),
	}
}

func TestUpload_PostsMultipartFile(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload2", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cv.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4 test content", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"x":1,"y":2,"text":"a"}]}`))
	}))
	defer server.Close()

	c := New(server.URL+"/", mustVariant(t, "progress"), 0)
	assert.Equal(t, server.URL+"/upload2", c.Endpoint())

	res, err := c.Upload(context.Background(), testFile(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, []upload.ParsedItem{{X: 1, Y: 2, Text: "a"}}, res.Items)
}

func TestUpload_ProgressReachesTotalBeforeResponse(t *testing.T) {
	var responded atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		responded.Store(true)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	f := testFile()
	f.Data = make([]byte, 256*1024)

	var last, total int64
	var events int
	monotonic := true
	fn := func(sent, tot int64) {
		assert.False(t, responded.Load(), "progress after response")
		if sent < last {
			monotonic = false
		}
		last, total = sent, tot
		events++
	}

	_, err := New(server.URL, mustVariant(t, "progress"), 0).Upload(context.Background(), f, fn)
	require.NoError(t, err)
	assert.Greater(t, events, 0)
	assert.True(t, monotonic)
	assert.Greater(t, total, f.Size())
	assert.Equal(t, total, last)
}

func TestUpload_MissingDataField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	res, err := New(server.URL, mustVariant(t, "progress"), 0).Upload(context.Background(), testFile(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Items)
}

func TestUpload_BasicVariantDoesNotDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	res, err := New(server.URL, mustVariant(t, "basic"), 0).Upload(context.Background(), testFile(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Items)
	assert.Equal(t, "not json", string(res.Raw))
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		isErr   error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			isErr: ErrStatus,
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad file", http.StatusBadRequest)
			},
			isErr: ErrStatus,
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			res, err := New(server.URL, mustVariant(t, "progress"), 0).Upload(context.Background(), testFile(), nil)
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.isErr != nil {
				assert.ErrorIs(t, err, tt.isErr)
			}
		})
	}
}

func TestUpload_StatusErrorCarriesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, mustVariant(t, "progress"), 0).Upload(context.Background(), testFile(), nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestUpload_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, mustVariant(t, "progress"), 0).Upload(context.Background(), testFile(), nil)
	assert.Error(t, err)
}

func TestUpload_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := New(server.URL, mustVariant(t, "progress"), 50*time.Millisecond).Upload(context.Background(), testFile(), nil)
	assert.Error(t, err)
}

func TestUpload_Cancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := New(server.URL, mustVariant(t, "progress"), 0).Upload(ctx, testFile(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeForm_EscapesFilename(t *testing.T) {
	f := testFile()
	f.Name = `my "quoted" cv.pdf`
	f.Type = ""

	body, ct, err := encodeForm(f)
	require.NoError(t, err)
	assert.Contains(t, ct, "multipart/form-data; boundary=")
	assert.Contains(t, body.String(), `filename="my \"quoted\" cv.pdf"`)
	assert.Contains(t, body.String(), "Content-Type: application/octet-stream")
}
