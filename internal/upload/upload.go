// Package upload provides the document types shared by the upload panel and the parsing client.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Notification messages shown by the panel.
const (
	MsgUnsupportedType = "Please upload file in pdf format"
	MsgFailed          = "Something went wrong!"
	MsgCancelled       = "Upload cancelled"
)

// ErrUnsupportedType is returned when a file's declared type is not accepted.
var ErrUnsupportedType = errors.New("unsupported file type")

// ParsedItem is one structured fragment returned by the parsing service.
type ParsedItem struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// File is an in-memory handle to a user-chosen document.
type File struct {
	Name string
	Type string
	Path string
	Data []byte
}

// Size returns the content length in bytes.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Open reads a document from disk. Picker and drop paths both go through here,
// so a file gets the same handle no matter how it was chosen.
func Open(path string) (*File, error) {
	path = CleanPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return &File{
		Name: filepath.Base(path),
		Type: TypeOf(path),
		Path: path,
		Data: data,
	}, nil
}

// TypeOf returns the declared content type for a file name, derived from its
// extension the way a browser fills in File.type. Unknown extensions yield "".
func TypeOf(name string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mt
}

// CleanPath normalizes a path as dropped or pasted by a terminal or desktop:
// surrounding quotes, a file:// prefix and backslash-escaped spaces are removed.
func CleanPath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) >= 2 {
		if (path[0] == '\'' && path[len(path)-1] == '\'') || (path[0] == '"' && path[len(path)-1] == '"') {
			path = path[1 : len(path)-1]
		}
	}
	path = strings.TrimPrefix(path, "file://")
	return strings.ReplaceAll(path, `\ `, " ")
}

// Notice is a transient notification for the user.
type Notice struct {
	Message     string
	Destructive bool
}

// Notifier receives notices from the panel.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// ProgressFunc observes request body transmission. sent is non-decreasing and
// reaches total before the response resolves. total is 0 when unknown.
type ProgressFunc func(sent, total int64)

// Percent converts a progress pair to a whole percentage in [0, 100], rounding
// half up. ok is false when the total is unknown.
func Percent(sent, total int64) (pct int, ok bool) {
	if total <= 0 {
		return 0, false
	}
	pct = int((sent*100 + total/2) / total)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
