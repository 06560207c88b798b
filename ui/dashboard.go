package ui

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"instrumon/channel"
	"instrumon/config"
	"instrumon/pipeline"
	"instrumon/render"
)

const (
	accentTag   = "[#ff69b4]"
	accentReset = "[-]"

	logPaneHeight   = 8
	maxEventBytes   = 1 << 20
	maxEventMessage = 512
)

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorHotPink
)

// DashboardOptions configures the tview dashboard.
type DashboardOptions struct {
	UI         config.UIConfig
	SampleRate int
	// PresetSeconds are the window lengths bound to keys 1..n.
	PresetSeconds []int
	// Settings seed the key map until the first frame arrives.
	Settings render.Settings
}

// Dashboard is the full-screen plot console. It implements Surface.
type Dashboard struct {
	app       *tview.Application
	pages     *tview.Pages
	scheduler *frameScheduler
	metrics   *Metrics
	events    *EventRing
	keys      keyMap

	sampleRate int
	color      bool

	ready     chan struct{}
	readyOnce sync.Once
	quit      chan struct{}
	quitOnce  sync.Once

	ctrlMu sync.Mutex
	ctrl   Controller
	width  atomic.Int64

	// Owned by the UI goroutine.
	header    *tview.TextView
	plots     [channel.Count]*plotView
	logView   *logView
	settings  render.Settings
	frame     render.Frame
	status    Status
	helpShown bool
}

// NewDashboard builds the dashboard and starts the tview event loop.
func NewDashboard(opts DashboardOptions) *Dashboard {
	app := tview.NewApplication()
	d := &Dashboard{
		app:        app,
		pages:      tview.NewPages(),
		metrics:    NewMetrics(),
		events:     NewEventRing(opts.UI.LogLines, maxEventBytes, maxEventMessage),
		keys:       newKeyMap(opts.PresetSeconds, opts.SampleRate),
		sampleRate: opts.SampleRate,
		color:      opts.UI.ColorEnabled(),
		ready:      make(chan struct{}),
		quit:       make(chan struct{}),
		settings:   opts.Settings,
	}
	d.frame.Settings = opts.Settings
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		d.markReady()
		return false
	})

	d.header = newBoxedTextView("instrumon")
	d.logView = newLogView("System", d.events, d.color)
	for _, info := range channel.All() {
		d.plots[info.ID] = newPlotView(info.ID, d.color)
	}
	top, grid, bottom := plotLayout()
	d.plots[top].onResize = d.onPlotResize

	plots := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.plots[top], 0, 2, false)
	for i := 0; i < len(grid); i += 2 {
		row := tview.NewFlex().AddItem(d.plots[grid[i]], 0, 1, false)
		if i+1 < len(grid) {
			row.AddItem(d.plots[grid[i+1]], 0, 1, false)
		}
		plots.AddItem(row, 0, 1, false)
	}
	plots.AddItem(d.plots[bottom], 0, 2, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 5, 0, false).
		AddItem(plots, 0, 1, false).
		AddItem(d.logView, logPaneHeight, 0, false).
		AddItem(buildFooter(), 1, 0, false)
	d.pages.AddPage("main", main, true, true)
	d.pages.AddPage("help", buildHelpOverlay(opts.PresetSeconds), true, false)
	d.renderHeader()

	d.scheduler = newFrameScheduler(func(fn func()) { app.QueueUpdateDraw(fn) }, opts.UI.TargetFPS, 100*time.Millisecond, d.metrics)
	d.scheduler.Start()

	d.installKeybindings()
	app.SetRoot(d.pages, true)

	go func() {
		if err := app.Run(); err != nil {
			log.Printf("UI: tview error: %v", err)
		}
		d.markReady()
		d.requestQuit()
	}()
	return d
}

// Bind connects the key map to a controller.
func (d *Dashboard) Bind(c Controller) {
	d.ctrlMu.Lock()
	d.ctrl = c
	d.ctrlMu.Unlock()
}

func (d *Dashboard) control(c pipeline.Control) {
	d.ctrlMu.Lock()
	ctrl := d.ctrl
	d.ctrlMu.Unlock()
	if ctrl == nil {
		return
	}
	if !ctrl.Control(c) {
		d.AppendSystem(fmt.Sprintf("UI: control %s dropped, pipeline busy", c))
	}
}

func (d *Dashboard) onPlotResize(cols int) {
	if int(d.width.Swap(int64(cols))) == cols {
		return
	}
	d.control(pipeline.Redraw())
}

func (d *Dashboard) installKeybindings() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if d.helpShown {
			if event.Key() == tcell.KeyEsc || event.Key() == tcell.KeyF1 || event.Rune() == 'h' || event.Rune() == '?' {
				d.toggleHelp(false)
				return nil
			}
		}
		switch event.Key() {
		case tcell.KeyF1:
			d.toggleHelp(!d.helpShown)
			return nil
		case tcell.KeyCtrlC:
			d.requestQuit()
			return nil
		}
		switch event.Rune() {
		case 'h', '?':
			d.toggleHelp(!d.helpShown)
			return nil
		case 'q':
			d.requestQuit()
			return nil
		}
		if d.logView.HandleScroll(event) {
			return nil
		}
		if c, ok := d.keys.control(event, d.settings); ok {
			d.control(c)
			return nil
		}
		return event
	})
}

func (d *Dashboard) toggleHelp(show bool) {
	d.helpShown = show
	if show {
		d.pages.ShowPage("help")
		d.pages.SendToFront("help")
		return
	}
	d.pages.HidePage("help")
}

// SetFrame hands a new frame to the UI goroutine. Frames arriving faster than
// the draw rate replace each other.
func (d *Dashboard) SetFrame(f render.Frame) {
	if d == nil {
		return
	}
	d.scheduler.Schedule("frame", func() {
		d.frame = f
		d.settings = f.Settings
		for i, p := range d.plots {
			p.setSeries(f.Series[i], f.Samples)
		}
		d.metrics.ObserveFrame(time.Since(f.At))
		d.renderHeader()
	})
}

// Width is the trace width of the widest plot, or 0 before the first layout.
func (d *Dashboard) Width() int {
	if d == nil {
		return 0
	}
	return int(d.width.Load())
}

func (d *Dashboard) SetStatus(st Status) {
	if d == nil {
		return
	}
	d.scheduler.Schedule("status", func() {
		d.status = st
		d.renderHeader()
	})
}

func (d *Dashboard) AppendSystem(line string) {
	if d == nil {
		return
	}
	d.events.AppendLine(line)
	d.scheduler.Schedule("log", func() {
		d.logView.Refresh()
	})
}

func (d *Dashboard) SystemWriter() io.Writer {
	if d == nil {
		return nil
	}
	return NewLineWriter(d.AppendSystem)
}

func (d *Dashboard) renderHeader() {
	state := d.status.State
	if state == "" {
		state = "DISCONNECTED"
	}
	source := d.status.Source
	if source == "" {
		source = "-"
	}
	stateText := state
	if d.color {
		stateText = stateColor(state) + state + "[-]"
	}
	lines := []string{
		stateText + "  " + tview.Escape(source),
		FormatCounters(d.status),
		FormatSettings(d.frame, d.sampleRate) + "  " + FormatLatency(d.metrics.FrameSnapshot(), d.metrics.DrawSnapshot()),
	}
	d.header.SetText(" " + strings.Join(lines, "\n "))
}

func (d *Dashboard) WaitReady() {
	if d == nil {
		return
	}
	<-d.ready
}

func (d *Dashboard) Done() <-chan struct{} {
	return d.quit
}

func (d *Dashboard) Stop() {
	if d == nil {
		return
	}
	d.scheduler.Stop()
	d.app.Stop()
	d.requestQuit()
}

func (d *Dashboard) markReady() {
	d.readyOnce.Do(func() { close(d.ready) })
}

func (d *Dashboard) requestQuit() {
	d.quitOnce.Do(func() { close(d.quit) })
}

func styleBox(box *tview.Box, title string) {
	box.SetBorder(true)
	box.SetBorderColor(uiBorderColor)
	box.SetTitleColor(uiTitleColor)
	box.SetTitleAlign(tview.AlignLeft)
	if title != "" {
		box.SetTitle(accentText(title))
	}
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	styleBox(tv.Box, title)
	return tv
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentText("F1") + "Help  " + accentText("1-9") + "Window  " + accentText("+/-") + "Multiplier  " +
			accentText("[/]") + "Divider  " + accentText("m") + "Method  [Q]Quit",
	)
}

func buildHelpOverlay(presetSeconds []int) tview.Primitive {
	var presets []string
	for i, sec := range presetSeconds {
		if i >= maxPresets {
			break
		}
		label := "all"
		if sec > 0 {
			label = formatSpan(time.Duration(sec) * time.Second)
		}
		presets = append(presets, fmt.Sprintf("%s%d%s %s", accentTag, i+1, accentReset, label))
	}
	help := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	help.SetText(strings.TrimSpace(fmt.Sprintf(`
KEYBOARD HELP

WINDOW
  %s

DISPLAY
  %s+%s / %s-%s  Multiplier up / down (coarser / finer)
  %s]%s / %s[%s  Divider up / down (render less / more often)
  %sm%s      Toggle min/max and mean downsampling
  %sr%s      Redraw now

SYSTEM LOG
  PageUp/Down Scroll   Home/End Top/Bottom

  %sF1%s / h Help   q / Ctrl+C Quit
`, strings.Join(presets, "   "),
		accentTag, accentReset, accentTag, accentReset,
		accentTag, accentReset, accentTag, accentReset,
		accentTag, accentReset,
		accentTag, accentReset,
		accentTag, accentReset)))
	styleBox(help.Box, "Help")
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(help, 18, 1, true).
			AddItem(nil, 0, 1, false),
			64, 1, true).
		AddItem(nil, 0, 1, false)
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}
