//go:build !gui

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

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

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#475569"))

	dropZoneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#CBD5E1")).
			Padding(1, 2)

	iconStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EA580C")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94A3B8"))

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#334155")).
			Padding(0, 1)

	destructiveStyle = toastStyle.
				Background(lipgloss.Color("#DC2626")).
				Bold(true)

	resultStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#F3F4F6")).
			Foreground(lipgloss.Color("#111827"))
)

// toaster holds the notice currently on screen. The panel notifies it
// synchronously from inside Update.
type toaster struct {
	notice    upload.Notice
	visible   bool
	seq       int
	scheduled int
}

func (t *toaster) Notify(n upload.Notice) {
	t.notice = n
	t.visible = true
	t.seq++
}

// schedule returns a timer for a notice that arrived since the last call.
func (t *toaster) schedule() tea.Cmd {
	if t.seq == t.scheduled {
		return nil
	}
	t.scheduled = t.seq
	seq := t.seq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg(seq)
	})
}

type (
	dropMsg     string
	progressMsg struct {
		sent, total int64
		next        <-chan progressMsg
	}
	toastExpiredMsg int
	uploadDoneMsg   struct {
		file *upload.File
		res  *client.Result
		err  error
	}
)

type model struct {
	panel    *panel.Panel
	uploader panel.Uploader
	history  *state.History
	toast    *toaster

	picker   filepicker.Model
	bar      progress.Model
	spinner  spinner.Model
	results  viewport.Model
	picking  bool
	start    tea.Cmd
	endpoint string
	cancel   context.CancelFunc
	note     string
	quitting bool
	width    int
	height   int
}

func newModel(v upload.Variant, u panel.Uploader, h *state.History) model {
	t := &toaster{}

	fp := filepicker.New()
	fp.AllowedTypes = v.Extensions
	fp.AutoHeight = true
	if dir, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = dir
	}

	return model{
		panel:    panel.New(v, t),
		uploader: u,
		history:  h,
		toast:    t,
		picker:   fp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		results:  viewport.New(76, 12),
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return m.start
}

// withFile treats a command-line file like a drop.
func (m model) withFile(path string) model {
	m.start = func() tea.Msg { return dropMsg(path) }
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(60, max(10, msg.Width-20))
		m.results.Width = max(20, msg.Width-4)
		m.results.Height = max(3, msg.Height-8)
		m.refreshResults()
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case dropMsg:
		return m.selectPath(string(msg))

	case progressMsg:
		m.panel.Progress(msg.sent, msg.total)
		return m, waitForProgress(msg.next)

	case uploadDoneMsg:
		m.cancel = nil
		m.panel.Finish(msg.res, msg.err)
		if msg.err == nil {
			m.note = m.recordHistory(msg.file)
			m.results.GotoTop()
			m.refreshResults()
		}
		return m, m.toast.schedule()

	case toastExpiredMsg:
		if int(msg) == m.toast.seq {
			m.toast.visible = false
		}
		return m, nil

	case spinner.TickMsg:
		if m.panel.State() != panel.Uploading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.picking {
		return m.updatePicker(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.cancel != nil {
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit
	}

	// Terminals deliver a dragged file as a pasted path.
	if msg.Paste && !m.picking {
		return m.selectPath(string(msg.Runes))
	}

	if m.picking {
		if msg.String() == "esc" {
			m.picking = false
			return m, nil
		}
		return m.updatePicker(msg)
	}

	switch m.panel.State() {
	case panel.Uploading:
		if msg.String() == "esc" && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case panel.Succeeded:
		switch msg.String() {
		case "x", "r", "backspace":
			m.panel.Reset()
			m.note = ""
			return m, nil
		case "s":
			return m.export(".json")
		case "h":
			return m.export(".html")
		case "q", "Q":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter", "o", " ":
		m.picking = true
		return m, m.picker.Init()
	case "c":
		if m.history != nil {
			if err := m.history.Clear(); err != nil {
				log.Printf("main.handleKey: clear history: %v", err)
			}
		}
		return m, nil
	case "q", "Q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.picking = false
		return m.selectPath(path)
	}
	// Let the guard reject it so the user sees why.
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.picking = false
		return m.selectPath(path)
	}
	return m, cmd
}

// selectPath is the single entry point for picked, dropped and
// command-line files.
func (m model) selectPath(path string) (tea.Model, tea.Cmd) {
	f, err := upload.Open(path)
	if err != nil {
		log.Printf("main.selectPath: %v", err)
		f = nil
	}

	if err := m.panel.Select(f); err != nil {
		return m, m.toast.schedule()
	}
	m.note = ""

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	run, events := uploadCmd(ctx, cancel, m.uploader, f)
	return m, tea.Batch(run, waitForProgress(events), m.spinner.Tick)
}

// uploadCmd runs one upload. Progress goes out on the returned channel,
// which is closed before the done message is produced.
func uploadCmd(ctx context.Context, cancel context.CancelFunc, u panel.Uploader, f *upload.File) (tea.Cmd, <-chan progressMsg) {
	events := make(chan progressMsg)
	run := func() tea.Msg {
		defer cancel()
		res, err := u.Upload(ctx, f, func(sent, total int64) {
			events <- progressMsg{sent: sent, total: total, next: events}
		})
		close(events)
		return uploadDoneMsg{file: f, res: res, err: err}
	}
	return run, events
}

// waitForProgress relays one progress event and re-arms itself until the
// upload closes the channel.
func waitForProgress(events <-chan progressMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// recordHistory stores a successful upload and returns a note when the
// same content was uploaded before.
func (m model) recordHistory(f *upload.File) string {
	if m.history == nil || f == nil {
		return ""
	}
	hash := state.ComputeHash(f.Data)
	var note string
	if prev, ok := m.history.Get(hash); ok {
		note = fmt.Sprintf("Uploaded before as %s on %s", prev.Name, prev.UploadedAt.Format("Jan 2 15:04"))
	}
	err := m.history.Record(state.Entry{
		Hash:       hash,
		Name:       f.Name,
		Items:      len(m.panel.Snapshot().Items),
		UploadedAt: time.Now(),
	})
	if err != nil {
		log.Printf("main.recordHistory: %v", err)
	}
	return note
}

func (m model) export(ext string) (tea.Model, tea.Cmd) {
	s := m.panel.Snapshot()
	path := export.DefaultPath(s.File, ext)
	source := ""
	if s.File != nil {
		source = s.File.Name
	}
	if err := export.ToFile(path, source, s.Items); err != nil {
		log.Printf("main.export: %v", err)
		m.toast.Notify(upload.Notice{Message: "Could not save " + path, Destructive: true})
		return m, m.toast.schedule()
	}
	m.note = "Saved " + path
	return m, nil
}

func (m *model) refreshResults() {
	s := m.panel.Snapshot()
	m.results.SetContent(resultStyle.Width(m.results.Width).Render(panel.Render(s.Items)))
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Convert PDF into JSON"))
	sb.WriteString("\n\n")

	if m.picking {
		sb.WriteString(m.picker.View())
		sb.WriteString("\n")
		sb.WriteString(controlsStyle.Render("ENTER: select  ESC: close"))
		return m.withToast(sb.String())
	}

	s := m.panel.Snapshot()
	v := m.panel.Variant()
	zoneWidth := max(20, m.width-4)

	switch s.Phase {
	case panel.Uploading:
		var zone strings.Builder
		zone.WriteString(iconStyle.Render("{ } ") + s.File.Name + "\n\n")
		if v.TracksProgress {
			zone.WriteString(m.bar.ViewAs(float64(s.Progress) / 100))
			zone.WriteString(fmt.Sprintf(" %d%%", s.Progress))
		} else {
			zone.WriteString(m.spinner.View() + " Uploading...")
		}
		sb.WriteString(dropZoneStyle.Width(zoneWidth).Render(zone.String()))
		sb.WriteString("\n")
		sb.WriteString(controlsStyle.Render("ESC: cancel  CTRL+C: quit"))

	case panel.Succeeded:
		if !v.RendersResults {
			sb.WriteString(dropZoneStyle.Width(zoneWidth).Render(s.File.Name + " uploaded."))
			sb.WriteString("\n")
			sb.WriteString(controlsStyle.Render("X: close  Q: quit"))
			break
		}
		sb.WriteString(titleStyle.Render("JSON Data"))
		if len(s.Items) == 0 {
			sb.WriteString(hintStyle.Render("  (no results)"))
		}
		sb.WriteString("\n")
		sb.WriteString(m.results.View())
		sb.WriteString("\n")
		if m.note != "" {
			sb.WriteString(hintStyle.Render(m.note) + "\n")
		}
		sb.WriteString(controlsStyle.Render("X: close  S: save json  H: save html  ↑/↓: scroll  Q: quit"))

	default:
		var zone strings.Builder
		zone.WriteString(iconStyle.Render("PDF") + "\n\n")
		zone.WriteString("Drag and drop your document here to upload\n\n")
		zone.WriteString("Press ENTER to select from device\n\n")
		for _, h := range v.Hint {
			zone.WriteString(hintStyle.Render(h) + "\n")
		}
		sb.WriteString(dropZoneStyle.Width(zoneWidth).Render(strings.TrimRight(zone.String(), "\n")))
		sb.WriteString("\n")
		if m.endpoint != "" {
			sb.WriteString(hintStyle.Render("Posting to " + m.endpoint))
			sb.WriteString("\n")
		}
		controls := "ENTER: browse  drop/paste a path: upload  Q: quit"
		if m.history != nil {
			if last, ok := m.history.Last(); ok {
				sb.WriteString(hintStyle.Render(fmt.Sprintf("Last upload: %s (%d items, %s)",
					last.Name, last.Items, last.UploadedAt.Format("Jan 2 15:04"))))
				sb.WriteString("\n")
				controls = "ENTER: browse  drop/paste a path: upload  C: clear history  Q: quit"
			}
		}
		sb.WriteString(controlsStyle.Render(controls))
	}

	return m.withToast(sb.String())
}

func (m model) withToast(body string) string {
	if !m.toast.visible {
		return body
	}
	style := toastStyle
	if m.toast.notice.Destructive {
		style = destructiveStyle
	}
	return body + "\n\n" + style.Render(m.toast.notice.Message)
}

// printResult uploads once without the UI. It returns the process exit code.
func printResult(ctx context.Context, v upload.Variant, u panel.Uploader, path string, out, errOut io.Writer) int {
	p := panel.New(v, upload.NotifierFunc(func(n upload.Notice) {
		fmt.Fprintf(errOut, "Error: %s\n", n.Message)
	}))

	f, err := upload.Open(path)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	if err := p.Select(f); err != nil {
		return 1
	}

	res, err := u.Upload(ctx, f, p.Progress)
	p.Finish(res, err)
	if err != nil {
		return 1
	}

	if !v.RendersResults {
		fmt.Fprintln(out, string(res.Raw))
		return 0
	}
	fmt.Fprintln(out, panel.Render(p.Snapshot().Items))
	return 0
}

func main() {
	fs := config.NewFlagSet("pdfjson")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdfjson - Convert PDF into JSON from the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdfjson [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdfjson                       Open the upload panel\n")
		fmt.Fprintf(os.Stderr, "  pdfjson cv.pdf                Upload cv.pdf right away\n")
		fmt.Fprintf(os.Stderr, "  pdfjson -p cv.pdf > cv.json   Upload without the UI\n")
		fmt.Fprintf(os.Stderr, "  pdfjson -u http://localhost:8080 --variant basic\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  PDFJSON_BASE_URL, PDFJSON_VARIANT, PDFJSON_TIMEOUT, PDFJSON_LOG_FILE\n")
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
		fmt.Printf("pdfjson %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	v, _ := cfg.PanelVariant()
	c := client.New(cfg.BaseURL, v, cfg.Timeout)

	if cfg.Print {
		if cfg.LogFile != "" {
			if f, err := tea.LogToFile(cfg.LogFile, "pdfjson"); err == nil {
				defer f.Close()
			}
		}
		log.Printf("main: posting to %s", c.Endpoint())
		code := printResult(context.Background(), v, c, cfg.Args[0], os.Stdout, os.Stderr)
		os.Exit(code)
	}

	// Anything written to stderr would tear the alt screen.
	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "pdfjson")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	var history *state.History
	if cfg.History {
		if h, err := state.NewHistory(); err == nil {
			history = h
		} else {
			log.Printf("main: history disabled: %v", err)
		}
	}

	m := newModel(v, c, history)
	m.endpoint = c.Endpoint()
	if len(cfg.Args) > 0 {
		m = m.withFile(cfg.Args[0])
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
