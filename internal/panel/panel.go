// Package panel implements the upload panel: file intake, one upload at a
// time, progress and the parsed result.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/metcalfc/pdfjson/internal/client"
	"github.com/metcalfc/pdfjson/internal/upload"
)

// Phase is the panel's lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Uploading
	Succeeded
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Succeeded:
		return "succeeded"
	}
	return "unknown"
}

// ErrBusy is returned when a file is selected while another is in flight.
var ErrBusy = errors.New("an upload is already in progress")

// Uploader sends a file to the parsing service.
type Uploader interface {
	Upload(ctx context.Context, f *upload.File, fn upload.ProgressFunc) (*client.Result, error)
}

// Snapshot is a copy of the panel's state.
type Snapshot struct {
	Phase    Phase
	File     *upload.File
	Loading  bool
	Progress int
	Items    []upload.ParsedItem
}

// Panel owns the upload state. Its methods are safe to call from the
// transport goroutine that reports progress.
type Panel struct {
	mu       sync.Mutex
	variant  upload.Variant
	notify   upload.Notifier
	phase    Phase
	file     *upload.File
	progress int
	items    []upload.ParsedItem
}

// New creates an idle panel.
func New(v upload.Variant, n upload.Notifier) *Panel {
	if n == nil {
		n = upload.NotifierFunc(func(upload.Notice) {})
	}
	return &Panel{variant: v, notify: n}
}

// Variant returns the panel's variant.
func (p *Panel) Variant() upload.Variant {
	return p.variant
}

// Select validates f and, if accepted, enters Uploading. The caller then
// issues exactly one request and reports its outcome through Progress and
// Finish. A rejected file leaves the state untouched.
func (p *Panel) Select(f *upload.File) error {
	p.mu.Lock()
	if p.phase == Uploading {
		p.mu.Unlock()
		return ErrBusy
	}
	if !p.variant.Accepts(f) {
		p.mu.Unlock()
		p.notify.Notify(upload.Notice{Message: upload.MsgUnsupportedType, Destructive: true})
		return upload.ErrUnsupportedType
	}
	p.phase = Uploading
	p.file = f
	p.progress = 0
	p.mu.Unlock()
	return nil
}

// Progress records a transport progress event.
func (p *Panel) Progress(sent, total int64) {
	pct, ok := upload.Percent(sent, total)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != Uploading || !p.variant.TracksProgress {
		return
	}
	p.progress = pct
}

// Finish completes the in-flight upload with its result or error.
func (p *Panel) Finish(res *client.Result, err error) {
	if err != nil {
		p.fail(err)
		return
	}
	var items []upload.ParsedItem
	if res != nil {
		items = res.Items
	}
	p.mu.Lock()
	if p.phase != Uploading {
		p.mu.Unlock()
		return
	}
	p.phase = Succeeded
	p.items = items
	p.mu.Unlock()
}

func (p *Panel) fail(err error) {
	p.mu.Lock()
	if p.phase != Uploading {
		p.mu.Unlock()
		return
	}
	p.phase = Idle
	p.items = nil
	p.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		p.notify.Notify(upload.Notice{Message: upload.MsgCancelled})
		return
	}
	log.Printf("panel.Finish: upload failed: %v", err)
	p.notify.Notify(upload.Notice{Message: upload.MsgFailed, Destructive: true})
}

// Reset returns to Idle, clearing the file, results and progress.
// It does nothing while an upload is in flight.
func (p *Panel) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == Uploading {
		return
	}
	p.phase = Idle
	p.file = nil
	p.items = nil
	p.progress = 0
}

// Submit selects f and, if accepted, uploads it synchronously.
func (p *Panel) Submit(ctx context.Context, u Uploader, f *upload.File) error {
	if err := p.Select(f); err != nil {
		return err
	}
	res, err := u.Upload(ctx, f, p.Progress)
	p.Finish(res, err)
	return err
}

// State returns the current phase.
func (p *Panel) State() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Snapshot returns a copy of the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Phase:    p.phase,
		File:     p.file,
		Loading:  p.phase == Uploading,
		Progress: p.progress,
	}
	if p.items != nil {
		s.Items = append([]upload.ParsedItem(nil), p.items...)
	}
	return s
}

// Render returns the results as compact JSON, "[]" when there are none.
func Render(items []upload.ParsedItem) string {
	if len(items) == 0 {
		return "[]"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "[]"
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
