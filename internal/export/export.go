// Package export writes parsed results to disk.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/metcalfc/pdfjson/internal/upload"
)

// Writer encodes a result sequence.
type Writer interface {
	Name() string
	Extension() string
	Write(w io.Writer, source string, items []upload.ParsedItem) error
}

var writers []Writer

// Register adds a writer to the registry.
func Register(w Writer) {
	writers = append(writers, w)
}

// ForPath returns the writer matching the file extension of path.
func ForPath(path string) (Writer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, w := range writers {
		if w.Extension() == ext {
			return w, nil
		}
	}
	return nil, fmt.Errorf("no exporter for %q files", ext)
}

// DefaultPath returns <base>.<ext> next to the source document, or in the
// working directory when the source has no path.
func DefaultPath(src *upload.File, ext string) string {
	name := "result"
	dir := "."
	if src != nil {
		name = strings.TrimSuffix(src.Name, filepath.Ext(src.Name))
		if src.Path != "" {
			dir = filepath.Dir(src.Path)
		}
	}
	return filepath.Join(dir, name+ext)
}

// ToFile writes items to path using the writer for its extension.
func ToFile(path, source string, items []upload.ParsedItem) error {
	w, err := ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := w.Write(f, source, items); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", w.Name(), err)
	}
	return f.Close()
}

// JSONWriter writes the items as an indented JSON array.
type JSONWriter struct{}

func (JSONWriter) Name() string      { return "JSON" }
func (JSONWriter) Extension() string { return ".json" }
func (JSONWriter) Write(w io.Writer, _ string, items []upload.ParsedItem) error {
	if items == nil {
		items = []upload.ParsedItem{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// HTMLWriter writes a standalone page with one table row per item.
type HTMLWriter struct{}

func (HTMLWriter) Name() string      { return "HTML" }
func (HTMLWriter) Extension() string { return ".html" }
func (HTMLWriter) Write(w io.Writer, source string, items []upload.ParsedItem) error {
	title := "JSON Data"
	if source != "" {
		title += " - " + source
	}

	table := elem(atom.Table, nil,
		elem(atom.Thead, nil,
			elem(atom.Tr, nil, cell(atom.Th, "x"), cell(atom.Th, "y"), cell(atom.Th, "text")),
		),
	)
	body := elem(atom.Tbody, nil)
	for _, it := range items {
		body.AppendChild(elem(atom.Tr, nil,
			cell(atom.Td, formatNumber(it.X)),
			cell(atom.Td, formatNumber(it.Y)),
			cell(atom.Td, it.Text),
		))
	}
	table.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(elem(atom.Html, nil,
		elem(atom.Head, nil,
			elem(atom.Meta, []html.Attribute{{Key: "charset", Val: "utf-8"}}),
			cell(atom.Title, title),
		),
		elem(atom.Body, nil,
			cell(atom.H1, title),
			table,
		),
	))
	return html.Render(w, doc)
}

func elem(a atom.Atom, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func cell(a atom.Atom, text string) *html.Node {
	return elem(a, nil, &html.Node{Type: html.TextNode, Data: text})
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func init() {
	Register(JSONWriter{})
	Register(HTMLWriter{})
}
