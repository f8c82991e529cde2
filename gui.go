//go:build gui

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/metcalfc/pdfjson/internal/client"
	"github.com/metcalfc/pdfjson/internal/config"
	"github.com/metcalfc/pdfjson/internal/export"
	"github.com/metcalfc/pdfjson/internal/panel"
	"github.com/metcalfc/pdfjson/internal/state"
	"github.com/metcalfc/pdfjson/internal/upload"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const toastDuration = 3 * time.Second

type gui struct {
	panel    *panel.Panel
	uploader panel.Uploader
	history  *state.History
	window   fyne.Window

	idle      *fyne.Container
	uploading *fyne.Container
	results   *fyne.Container

	fileLabel    *widget.Label
	bar          *widget.ProgressBar
	barInfinite  *widget.ProgressBarInfinite
	percentLabel *widget.Label
	jsonLabel    *widget.Label
	emptyLabel   *widget.Label
	lastLabel    *widget.Label
	clearButton  *widget.Button
	noteLabel    *widget.Label
	toast        *widget.Label

	mu       sync.Mutex
	cancel   context.CancelFunc
	toastSeq int
}

func newGUI(w fyne.Window, v upload.Variant, u panel.Uploader, h *state.History) *gui {
	g := &gui{uploader: u, history: h, window: w}
	g.panel = panel.New(v, upload.NotifierFunc(g.notify))

	icon := widget.NewIcon(theme.DocumentIcon())
	dropLabel := widget.NewLabel("Drag and drop your document here to upload")
	dropLabel.Alignment = fyne.TextAlignCenter
	selectButton := widget.NewButtonWithIcon("Select from device", theme.FolderOpenIcon(), g.openPicker)
	selectButton.Importance = widget.HighImportance

	idleItems := []fyne.CanvasObject{icon, dropLabel, container.NewCenter(selectButton)}
	for _, hint := range v.Hint {
		l := widget.NewLabel(hint)
		l.Alignment = fyne.TextAlignCenter
		l.Importance = widget.LowImportance
		idleItems = append(idleItems, l)
	}
	g.lastLabel = widget.NewLabel("")
	g.lastLabel.Alignment = fyne.TextAlignCenter
	g.lastLabel.Importance = widget.LowImportance
	g.clearButton = widget.NewButtonWithIcon("Clear history", theme.DeleteIcon(), g.clearHistory)
	g.clearButton.Importance = widget.LowImportance
	idleItems = append(idleItems, g.lastLabel, container.NewCenter(g.clearButton))
	g.idle = container.NewVBox(idleItems...)

	g.fileLabel = widget.NewLabel("")
	g.fileLabel.Alignment = fyne.TextAlignCenter
	g.bar = widget.NewProgressBar()
	g.bar.Max = 100
	g.bar.TextFormatter = func() string { return "" }
	g.barInfinite = widget.NewProgressBarInfinite()
	g.percentLabel = widget.NewLabel("0%")
	cancelButton := widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), g.cancelUpload)
	var barRow fyne.CanvasObject
	if v.TracksProgress {
		barRow = container.NewBorder(nil, nil, nil, g.percentLabel, g.bar)
	} else {
		barRow = g.barInfinite
	}
	g.uploading = container.NewVBox(
		widget.NewIcon(theme.FileIcon()),
		g.fileLabel,
		barRow,
		container.NewCenter(cancelButton),
	)

	g.jsonLabel = widget.NewLabel("")
	g.jsonLabel.Wrapping = fyne.TextWrapBreak
	g.jsonLabel.TextStyle.Monospace = true
	g.emptyLabel = widget.NewLabel("No results")
	g.emptyLabel.Importance = widget.LowImportance
	header := container.NewBorder(nil, nil,
		widget.NewLabelWithStyle("JSON Data", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewButtonWithIcon("", theme.CancelIcon(), g.reset),
	)
	g.noteLabel = widget.NewLabel("")
	g.noteLabel.Importance = widget.LowImportance
	saveRow := container.NewHBox(
		widget.NewButtonWithIcon("Save JSON", theme.DocumentSaveIcon(), func() { g.export(".json") }),
		widget.NewButtonWithIcon("Save HTML", theme.DocumentSaveIcon(), func() { g.export(".html") }),
		g.noteLabel,
	)
	body := container.NewStack(container.NewVScroll(g.jsonLabel), container.NewCenter(g.emptyLabel))
	if !v.RendersResults {
		g.jsonLabel.SetText("")
		g.emptyLabel.SetText("Upload complete.")
		saveRow.Hide()
	}
	g.results = container.NewBorder(header, saveRow, nil, nil, body)

	g.toast = widget.NewLabel("")
	g.toast.Alignment = fyne.TextAlignCenter
	g.toast.Hide()

	g.refresh()
	return g
}

func (g *gui) content(endpoint string) fyne.CanvasObject {
	title := widget.NewLabelWithStyle("Convert PDF into JSON online for free", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	note := widget.NewLabel("Posting to " + endpoint + ". Integration described here may temporarily not be available.")
	note.Alignment = fyne.TextAlignCenter
	note.Importance = widget.LowImportance

	zone := container.NewStack(
		container.NewCenter(g.idle),
		container.NewCenter(g.uploading),
		container.NewPadded(g.results),
	)
	return container.NewBorder(title, container.NewVBox(g.toast, note), nil, nil, zone)
}

// refresh shows the part of the panel matching its state. Call it on the
// UI goroutine.
func (g *gui) refresh() {
	s := g.panel.Snapshot()

	g.idle.Hide()
	g.uploading.Hide()
	g.results.Hide()

	switch s.Phase {
	case panel.Uploading:
		g.fileLabel.SetText(s.File.Name)
		g.bar.SetValue(float64(s.Progress))
		g.percentLabel.SetText(fmt.Sprintf("%d%%", s.Progress))
		g.uploading.Show()
	case panel.Succeeded:
		if g.panel.Variant().RendersResults {
			g.jsonLabel.SetText(panel.Render(s.Items))
			if len(s.Items) == 0 {
				g.jsonLabel.Hide()
				g.emptyLabel.Show()
			} else {
				g.jsonLabel.Show()
				g.emptyLabel.Hide()
			}
		}
		g.results.Show()
	default:
		g.lastLabel.SetText("")
		g.clearButton.Hide()
		if g.history != nil {
			if last, ok := g.history.Last(); ok {
				g.lastLabel.SetText(fmt.Sprintf("Last upload: %s (%d items, %s)",
					last.Name, last.Items, last.UploadedAt.Format("Jan 2 15:04")))
				g.clearButton.Show()
			}
		}
		g.idle.Show()
	}
}

// notify may be called from the upload goroutine.
func (g *gui) notify(n upload.Notice) {
	fyne.Do(func() {
		g.mu.Lock()
		g.toastSeq++
		seq := g.toastSeq
		g.mu.Unlock()

		g.toast.SetText(n.Message)
		if n.Destructive {
			g.toast.Importance = widget.DangerImportance
		} else {
			g.toast.Importance = widget.MediumImportance
		}
		g.toast.Show()
		g.toast.Refresh()

		time.AfterFunc(toastDuration, func() {
			fyne.Do(func() {
				g.mu.Lock()
				current := g.toastSeq == seq
				g.mu.Unlock()
				if current {
					g.toast.Hide()
				}
			})
		})
	})
}

func (g *gui) openPicker() {
	if g.panel.State() == panel.Uploading {
		return
	}
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		g.selectPath(path)
	}, g.window)
	d.SetFilter(storage.NewExtensionFileFilter(g.panel.Variant().Extensions))
	if dir, err := os.Getwd(); err == nil {
		if lister, err := storage.ListerForURI(storage.NewFileURI(dir)); err == nil {
			d.SetLocation(lister)
		}
	}
	d.Show()
}

// selectPath is the single entry point for picked, dropped and
// command-line files. It runs on the UI goroutine.
func (g *gui) selectPath(path string) {
	f, err := upload.Open(path)
	if err != nil {
		log.Printf("gui.selectPath: %v", err)
		f = nil
	}
	if err := g.panel.Select(f); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
	g.refresh()

	go func() {
		defer cancel()
		res, err := g.uploader.Upload(ctx, f, func(sent, total int64) {
			g.panel.Progress(sent, total)
			fyne.Do(g.refresh)
		})
		g.panel.Finish(res, err)
		note := ""
		if err == nil {
			note = g.recordHistory(f)
		}

		g.mu.Lock()
		g.cancel = nil
		g.mu.Unlock()
		fyne.Do(func() {
			g.noteLabel.SetText(note)
			g.refresh()
		})
	}()
}

func (g *gui) cancelUpload() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (g *gui) reset() {
	g.panel.Reset()
	g.refresh()
}

func (g *gui) clearHistory() {
	if g.history == nil {
		return
	}
	if err := g.history.Clear(); err != nil {
		dialog.ShowError(err, g.window)
		return
	}
	g.refresh()
}

// recordHistory stores a successful upload and returns a note when the
// same content was uploaded before.
func (g *gui) recordHistory(f *upload.File) string {
	if g.history == nil {
		return ""
	}
	hash := state.ComputeHash(f.Data)
	var note string
	if prev, ok := g.history.Get(hash); ok {
		note = fmt.Sprintf("Uploaded before as %s on %s", prev.Name, prev.UploadedAt.Format("Jan 2 15:04"))
	}
	err := g.history.Record(state.Entry{
		Hash:       hash,
		Name:       f.Name,
		Items:      len(g.panel.Snapshot().Items),
		UploadedAt: time.Now(),
	})
	if err != nil {
		log.Printf("gui.recordHistory: %v", err)
	}
	return note
}

func (g *gui) export(ext string) {
	s := g.panel.Snapshot()
	path := export.DefaultPath(s.File, ext)
	source := ""
	if s.File != nil {
		source = s.File.Name
	}
	if err := export.ToFile(path, source, s.Items); err != nil {
		dialog.ShowError(err, g.window)
		return
	}
	dialog.ShowInformation("Saved", path, g.window)
}

func main() {
	fs := config.NewFlagSet("pdfjson-gui")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdfjson-gui - Convert PDF into JSON\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdfjson-gui [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nDrop a PDF onto the window or use \"Select from device\".\n")
	}

	cfg, err := config.Load(fs, os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if cfg.Version {
		fmt.Printf("pdfjson-gui %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	v, _ := cfg.PanelVariant()
	c := client.New(cfg.BaseURL, v, cfg.Timeout)

	var history *state.History
	if cfg.History {
		if h, err := state.NewHistory(); err == nil {
			history = h
		} else {
			log.Printf("main: history disabled: %v", err)
		}
	}

	a := app.New()
	w := a.NewWindow("pdfjson - Convert PDF into JSON")
	g := newGUI(w, v, c, history)

	log.Printf("main: posting to %s", c.Endpoint())
	w.SetContent(g.content(c.Endpoint()))
	w.SetOnDropped(func(_ fyne.Position, uris []fyne.URI) {
		if len(uris) == 0 {
			g.selectPath("")
			return
		}
		g.selectPath(uris[0].Path())
	})
	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeyEscape:
			g.cancelUpload()
		case fyne.KeyQ:
			g.cancelUpload()
			a.Quit()
		}
	})
	w.SetOnClosed(g.cancelUpload)
	w.Resize(fyne.NewSize(800, 600))

	if len(cfg.Args) > 0 {
		path := cfg.Args[0]
		go func() {
			time.Sleep(100 * time.Millisecond)
			fyne.Do(func() { g.selectPath(path) })
		}()
	}

	w.ShowAndRun()
}
