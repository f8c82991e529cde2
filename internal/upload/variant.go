package upload

import (
	"fmt"
	"sort"
	"strings"
)

// Variant describes one flavour of the upload panel: where it posts, what the
// picker offers and which declared types the guard lets through.
type Variant struct {
	Name string
	// Path is appended to the configured base URL.
	Path string
	// Extensions filter the file picker.
	Extensions []string
	// Types is the guard allow-list checked by Accepts.
	Types []string
	// TracksProgress enables the progress bar.
	TracksProgress bool
	// RendersResults decodes and displays the response data field.
	RendersResults bool
	Hint           []string
}

// Accepts reports whether the file's declared content type is allowed.
func (v Variant) Accepts(f *File) bool {
	if f == nil {
		return false
	}
	for _, t := range v.Types {
		if f.Type == t {
			return true
		}
	}
	return false
}

// DefaultVariant is used when none is configured.
const DefaultVariant = "progress"

var registry = map[string]Variant{}

// Register adds a variant to the registry, replacing any with the same name.
func Register(v Variant) {
	registry[v.Name] = v
}

// Lookup returns the named variant.
func Lookup(name string) (Variant, error) {
	v, ok := registry[strings.ToLower(name)]
	if !ok {
		return Variant{}, fmt.Errorf("unknown variant %q (available: %s)", name, strings.Join(Variants(), ", "))
	}
	return v, nil
}

// Variants returns the registered variant names, sorted.
func Variants() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	pdfOnly := []string{"application/pdf"}

	Register(Variant{
		Name:       "basic",
		Path:       "/upload",
		Extensions: []string{".pdf"},
		Types:      pdfOnly,
		Hint:       []string{"Up to 100 MB for PDF files."},
	})
	Register(Variant{
		Name:           "progress",
		Path:           "/upload2",
		Extensions:     []string{".pdf"},
		Types:          pdfOnly,
		TracksProgress: true,
		RendersResults: true,
		Hint:           []string{"Up to 100 MB for PDF files."},
	})
	// The picker offers more than the guard accepts; only PDFs get through.
	Register(Variant{
		Name:           "formats",
		Path:           "/upload2",
		Extensions:     []string{".pdf", ".doc", ".docx", ".rtf", ".ppt", ".pptx", ".jpeg", ".png", ".txt"},
		Types:          pdfOnly,
		TracksProgress: true,
		RendersResults: true,
		Hint: []string{
			"Up to 100 MB for PDF files.",
			"Up to 25 MB for DOC, DOCX, RTF, PPT, PPTX, JPEG, PNG, or TXT files.",
		},
	})
}
