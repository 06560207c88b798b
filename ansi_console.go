package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"instrumon/channel"
	"instrumon/config"
	"instrumon/downsample"
	"instrumon/render"
	"instrumon/ui"
)

const (
	ansiLabelWidth    = 22
	ansiValueWidth    = 14
	ansiRangeWidth    = 24
	ansiDefaultWidth  = 80
	ansiMinTraceWidth = 8
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// ansiConsole is a lightweight console renderer that redraws the screen with
// ANSI escape codes: status lines, one sparkline row per channel and a system
// log pane. It is selected via ui.mode=ansi.
type ansiConsole struct {
	mu         sync.Mutex
	status     ui.Status
	frame      render.Frame
	haveFrame  bool
	system     ringPane
	refresh    time.Duration
	sampleRate int
	out        io.Writer
	fd         int
	color      bool
	writer     io.Writer
	renderBuf  bytes.Buffer
	snapSys    []string
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

type ringPane struct {
	lines []string
	idx   int
	count int
}

// Purpose: Construct the ANSI console renderer.
// Key aspects: Clamps refresh interval and starts the refresh loop.
// Upstream: main UI selection based on config.
// Downstream: refreshLoop goroutine.
func newANSIConsole(uiCfg config.UIConfig, sampleRate int) *ansiConsole {
	c := newANSIConsoleWriter(uiCfg, sampleRate, os.Stdout, int(os.Stdout.Fd()))
	if c.refresh > 0 {
		go c.refreshLoop()
	}
	return c
}

func newANSIConsoleWriter(uiCfg config.UIConfig, sampleRate int, out io.Writer, fd int) *ansiConsole {
	refresh := time.Duration(uiCfg.RefreshMS) * time.Millisecond
	if refresh < 0 {
		refresh = 0
	}
	const minRefresh = 16 * time.Millisecond
	if refresh > 0 && refresh < minRefresh {
		log.Printf("UI: clamping refresh interval to %dms (requested %dms too low)", minRefresh/time.Millisecond, refresh/time.Millisecond)
		refresh = minRefresh
	}
	systemLines := uiCfg.LogLines
	if systemLines <= 0 {
		systemLines = 1
	}
	c := &ansiConsole{
		system:     ringPane{lines: make([]string, systemLines)},
		refresh:    refresh,
		sampleRate: sampleRate,
		out:        out,
		fd:         fd,
		color:      uiCfg.ColorEnabled(),
		snapSys:    make([]string, systemLines),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.writer = ui.NewLineWriter(c.AppendSystem)
	return c
}

// WaitReady is a no-op; the ANSI console has no async initialization.
func (c *ansiConsole) WaitReady() {}

// Done never closes: the ANSI console has no quit key, Ctrl+C ends the
// process through the signal context.
func (c *ansiConsole) Done() <-chan struct{} {
	return c.done
}

func (c *ansiConsole) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.quit)
	})
}

// SetFrame keeps the latest frame for the next refresh tick.
func (c *ansiConsole) SetFrame(f render.Frame) {
	c.mu.Lock()
	c.frame = f
	c.haveFrame = true
	c.mu.Unlock()
}

// Width reports the sparkline columns available at the current terminal size.
func (c *ansiConsole) Width() int {
	cols := ansiDefaultWidth
	if w, _, err := term.GetSize(c.fd); err == nil && w > 0 {
		cols = w
	}
	return max(cols-ansiLabelWidth-ansiValueWidth-ansiRangeWidth, ansiMinTraceWidth)
}

func (c *ansiConsole) SetStatus(st ui.Status) {
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}

// AppendSystem appends a line to the system pane.
func (c *ansiConsole) AppendSystem(line string) {
	if c == nil {
		return
	}
	line = applyANSIMarkup(line, c.color)
	c.mu.Lock()
	pane := &c.system
	pane.lines[pane.idx] = line
	pane.idx = (pane.idx + 1) % len(pane.lines)
	if pane.count < len(pane.lines) {
		pane.count++
	}
	c.mu.Unlock()
}

func (c *ansiConsole) SystemWriter() io.Writer {
	if c == nil {
		return nil
	}
	return c.writer
}

// Purpose: Periodic render loop for ANSI console output.
// Key aspects: Recovers panics, ticks at refresh interval, exits on quit.
// Upstream: goroutine started in newANSIConsole.
// Downstream: c.render.
func (c *ansiConsole) refreshLoop() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ANSI console panic: %v\n", r)
		}
	}()
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.render()
		case <-c.quit:
			return
		}
	}
}

// Purpose: Render the current snapshot to the output.
// Key aspects: Copies state under lock, clears the screen, writes all rows in one write.
// Upstream: refreshLoop.
// Downstream: formatChannelRow, writePane.
func (c *ansiConsole) render() {
	c.mu.Lock()
	st := c.status
	frame := c.frame
	haveFrame := c.haveFrame
	system := snapshotPane(&c.system, c.snapSys)
	c.mu.Unlock()

	c.renderBuf.Reset()
	c.renderBuf.WriteString("\x1b[2J\x1b[H")
	c.renderBuf.WriteString(applyANSIMarkup(fmt.Sprintf("instrumon  %s  %s%s[-]", st.Source, stateMarkup(st.State), st.State), c.color))
	c.renderBuf.WriteByte('\n')
	c.renderBuf.WriteString(ui.FormatCounters(st))
	c.renderBuf.WriteByte('\n')
	if haveFrame {
		c.renderBuf.WriteString(ui.FormatSettings(frame, c.sampleRate))
	} else {
		c.renderBuf.WriteString("waiting for data")
	}
	c.renderBuf.WriteString("\n\n")

	width := c.Width()
	for _, info := range channel.All() {
		c.renderBuf.WriteString(formatChannelRow(info, frame.Series[info.ID], width))
		c.renderBuf.WriteByte('\n')
	}
	c.renderBuf.WriteByte('\n')
	writePane(&c.renderBuf, "---- System ----", system)

	_, _ = c.renderBuf.WriteTo(c.out)
}

// formatChannelRow lays out title, latest value, sparkline and range.
func formatChannelRow(info channel.Info, s render.Series, width int) string {
	latest := "-"
	if s.HasLatest {
		latest = ui.FormatValue(s.Latest, info.Unit)
	}
	span := ""
	if !math.IsNaN(s.MinY) && !math.IsNaN(s.MaxY) && len(s.Points) > 0 {
		span = ui.FormatValue(s.MinY, "") + ".." + ui.FormatValue(s.MaxY, info.Unit)
	}
	return fmt.Sprintf("%-*.*s %*s %s %s",
		ansiLabelWidth-1, ansiLabelWidth-1, info.Title,
		ansiValueWidth-2, latest,
		sparkline(s.Points, width, s.MinY, s.MaxY),
		span)
}

// sparkline draws points into exactly width cells of block characters. When
// there are more points than cells, each cell shows the point at its
// proportional index. A flat range draws mid-height; NaN leaves a gap.
func sparkline(points []downsample.Point, width int, lo, hi float64) string {
	if width <= 0 {
		return ""
	}
	cells := make([]rune, width)
	for i := range cells {
		cells[i] = ' '
	}
	n := len(points)
	if n == 0 || math.IsNaN(lo) || math.IsNaN(hi) {
		return string(cells)
	}
	used := min(n, width)
	top := len(sparkLevels) - 1
	for col := 0; col < used; col++ {
		idx := col
		switch {
		case n > width && width == 1:
			idx = n - 1
		case n > width:
			idx = col * (n - 1) / (width - 1)
		}
		y := points[idx].Y
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		level := top / 2
		if hi > lo {
			level = int(math.Round((y - lo) / (hi - lo) * float64(top)))
			level = min(max(level, 0), top)
		}
		cells[col] = sparkLevels[level]
	}
	return string(cells)
}

type stringByteWriter interface {
	WriteString(string) (int, error)
	WriteByte(byte) error
}

func writePane(w stringByteWriter, title string, lines []string) {
	w.WriteString(title)
	w.WriteByte('\n')
	for _, line := range lines {
		if line != "" {
			w.WriteString(line)
		}
		w.WriteByte('\n')
	}
}

// snapshotPane copies a ring pane into buf, oldest first.
func snapshotPane(p *ringPane, buf []string) []string {
	if p == nil || len(p.lines) == 0 || p.count == 0 || len(buf) == 0 {
		return buf[:0]
	}
	start := p.idx - p.count
	if start < 0 {
		start += len(p.lines)
	}
	limit := min(p.count, len(buf))
	for i := 0; i < limit; i++ {
		buf[i] = p.lines[(start+i)%len(p.lines)]
	}
	return buf[:limit]
}

func stateMarkup(state string) string {
	switch state {
	case "LIVE":
		return "[green]"
	case "IDLE":
		return "[yellow]"
	default:
		return "[red]"
	}
}

// applyANSIMarkup turns tview-style colour tags into escape codes, or strips
// them when colour is off.
func applyANSIMarkup(line string, enableColor bool) string {
	if line == "" {
		return line
	}
	if enableColor {
		hasMarkup := strings.Contains(line, "[")
		line = ansiColorReplacer.Replace(line)
		if hasMarkup {
			line += resetANSI
		}
		return line
	}
	return ansiStripReplacer.Replace(line)
}

const resetANSI = "\x1b[0m"

var ansiColorReplacer = strings.NewReplacer(
	"[red]", "\x1b[31m",
	"[green]", "\x1b[32m",
	"[yellow]", "\x1b[33m",
	"[blue]", "\x1b[34m",
	"[magenta]", "\x1b[35m",
	"[cyan]", "\x1b[36m",
	"[white]", "\x1b[37m",
	"[-]", resetANSI,
)

var ansiStripReplacer = strings.NewReplacer(
	"[red]", "",
	"[green]", "",
	"[yellow]", "",
	"[blue]", "",
	"[magenta]", "",
	"[cyan]", "",
	"[white]", "",
	"[-]", "",
)
