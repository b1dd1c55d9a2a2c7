// Package ui renders the aggregate as a full-screen terminal table with a
// status footer and a scrollable log page.
package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"spothunter/aggregate"
)

const (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorHotPink

	accentTag   = "[hotpink]"
	accentReset = "[-]"

	pageSpots = "spots"
	pageLog   = "log"

	maxLogLines        = 2000
	paneWriterMaxBytes = 64 * 1024
)

// Options tunes the dashboard.
type Options struct {
	TargetFPS int
	// OnQuit runs when the user quits from the keyboard.
	OnQuit func()
	// Recent seeds the log page, oldest first.
	Recent []string
}

// Dashboard is a tview application showing the current aggregate. It
// satisfies aggregate.Display; Publish may be called from any goroutine.
type Dashboard struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	status *tview.TextView
	logs   *tview.TextView
	footer *tview.TextView

	scheduler *frameScheduler
	onQuit    func()

	mu       sync.Mutex
	logLines []string

	stopOnce sync.Once
}

// NewDashboard builds the widgets. Nothing draws until Run.
func NewDashboard(opts Options) *Dashboard {
	app := tview.NewApplication()
	d := &Dashboard{
		app:    app,
		pages:  tview.NewPages(),
		table:  tview.NewTable().SetFixed(1, 0).SetSelectable(true, false),
		status: tview.NewTextView().SetDynamicColors(true).SetWrap(false),
		logs:   tview.NewTextView().SetDynamicColors(false).SetWrap(false).SetScrollable(true),
		footer: buildFooter(),
		onQuit: opts.OnQuit,
	}
	d.scheduler = newFrameScheduler(func(fn func()) { app.QueueUpdateDraw(fn) }, opts.TargetFPS, 0)

	d.table.SetBorder(true).SetBorderColor(uiBorderColor)
	d.table.SetTitle(accentText(" Spots ")).SetTitleAlign(tview.AlignLeft)
	fillSpotTable(d.table, nil)

	d.logs.SetBorder(true).SetBorderColor(uiBorderColor)
	d.logs.SetTitle(accentText(" Log ")).SetTitleAlign(tview.AlignLeft)
	d.logLines = append(d.logLines, opts.Recent...)
	d.logs.SetText(strings.Join(d.logLines, "\n"))

	spots := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.table, 0, 1, true).
		AddItem(d.status, 1, 0, false)
	d.pages.AddPage(pageSpots, spots, true, true)
	d.pages.AddPage(pageLog, d.logs, true, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.pages, 0, 1, true).
		AddItem(d.footer, 1, 0, false)
	app.SetRoot(root, true)
	d.installKeybindings()
	return d
}

func (d *Dashboard) installKeybindings() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			d.quit()
			return nil
		case tcell.KeyEsc:
			d.showPage(pageSpots)
			return nil
		}
		switch event.Rune() {
		case 'q', 'Q':
			d.quit()
			return nil
		case 'l', 'L':
			if name, _ := d.pages.GetFrontPage(); name == pageLog {
				d.showPage(pageSpots)
			} else {
				d.showPage(pageLog)
			}
			return nil
		}
		return event
	})
}

func (d *Dashboard) showPage(name string) {
	d.pages.SwitchToPage(name)
	if name == pageLog {
		d.logs.ScrollToEnd()
	}
}

func (d *Dashboard) quit() {
	if d.onQuit != nil {
		d.onQuit()
	}
	d.Stop()
}

// Run draws until ctx ends or the user quits.
func (d *Dashboard) Run(ctx context.Context) error {
	d.scheduler.Start()
	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return d.app.Run()
}

// Stop ends the application. Safe to call more than once.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.scheduler.Stop()
		d.app.Stop()
	})
}

// Publish replaces the table contents on the next frame.
func (d *Dashboard) Publish(spots []aggregate.DisplaySpot) {
	updated := time.Now().UTC().Format("15:04:05")
	d.scheduler.Schedule("spots", func() {
		fillSpotTable(d.table, spots)
		d.table.SetTitle(accentText(fmt.Sprintf(" Spots (%d) updated %s UTC ", len(spots), updated)))
	})
}

// SetStatus replaces the one-line status under the table.
func (d *Dashboard) SetStatus(line string) {
	d.scheduler.Schedule("status", func() {
		d.status.SetText(tview.Escape(line))
	})
}

// AppendLog adds a line to the log page, dropping the oldest beyond the
// retention limit.
func (d *Dashboard) AppendLog(line string) {
	d.mu.Lock()
	d.logLines = append(d.logLines, line)
	if excess := len(d.logLines) - maxLogLines; excess > 0 {
		d.logLines = append(d.logLines[:0], d.logLines[excess:]...)
	}
	text := strings.Join(d.logLines, "\n")
	d.mu.Unlock()

	d.scheduler.Schedule("log", func() {
		d.logs.SetText(text)
		if name, _ := d.pages.GetFrontPage(); name == pageLog {
			d.logs.ScrollToEnd()
		}
	})
}

// LogWriter returns an io.Writer feeding complete lines to AppendLog.
func (d *Dashboard) LogWriter() io.Writer {
	return &lineWriter{emit: d.AppendLog}
}

// lineWriter splits writes into lines. A partial line is held until its
// newline arrives and is bounded in size.
type lineWriter struct {
	emit func(string)
	mu   sync.Mutex
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if excess := len(w.buf) - paneWriterMaxBytes; excess > 0 {
		w.buf = w.buf[excess:]
	}
	data := w.buf
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		w.emit(string(bytes.TrimRight(data[:idx], "\r")))
		data = data[idx+1:]
	}
	w.buf = append(w.buf[:0], data...)
	return len(p), nil
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentText("L") + " Log  " + accentText("Esc") + " Spots  " + accentText("Q") + " Quit",
	)
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}
