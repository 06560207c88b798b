package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"instrumon/render"
)

// Status is the header snapshot built by the main stats loop. It is immutable
// once handed to a Surface.
type Status struct {
	GeneratedAt time.Time
	Source      string
	State       string
	Received    uint64
	Accepted    uint64
	Dropped     uint64
	Renders     uint64
	QueueDepth  int
	QueueCap    int
	BufferKB    int
	Uptime      time.Duration
}

// FormatCounters renders the ingest half of the status line.
func FormatCounters(st Status) string {
	return fmt.Sprintf("rx %s  ok %s  drop %s  queue %d/%d  buffer %s  up %s",
		humanize.Comma(int64(st.Received)),
		humanize.Comma(int64(st.Accepted)),
		humanize.Comma(int64(st.Dropped)),
		st.QueueDepth, st.QueueCap,
		humanize.IBytes(uint64(st.BufferKB)*1024),
		st.Uptime.Truncate(time.Second))
}

// FormatSettings renders the display half of the status line from the most
// recent frame.
func FormatSettings(f render.Frame, sampleRate int) string {
	window := "all"
	if f.Settings.WindowLength > 0 {
		window = formatSpan(time.Duration(f.Settings.WindowLength) * time.Second / time.Duration(max(sampleRate, 1)))
	}
	return fmt.Sprintf("window %s (%s samples)  x%.2f  div %d  %s  factor %d",
		window,
		humanize.Comma(int64(f.Samples)),
		f.Settings.Multiplier,
		f.Settings.Divider,
		f.Settings.Method,
		f.Config.Factor)
}

// FormatLatency renders frame age and draw delay percentiles.
func FormatLatency(frame, draw LatencySnapshot) string {
	if frame.N == 0 {
		return "latency n/a"
	}
	return fmt.Sprintf("frame p50 %s p99 %s  draw p99 %s",
		roundLatency(frame.P50), roundLatency(frame.P99), roundLatency(draw.P99))
}

// FormatValue prints a sample with four significant digits.
func FormatValue(v float64, unit string) string {
	s := strings.TrimSpace(fmt.Sprintf("%.4g", v))
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func formatSpan(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func roundLatency(d time.Duration) time.Duration {
	if d >= time.Millisecond {
		return d.Round(100 * time.Microsecond)
	}
	return d
}

// stateColor maps a source state to a tview colour tag.
func stateColor(state string) string {
	switch state {
	case "LIVE":
		return "[green]"
	case "IDLE":
		return "[yellow]"
	default:
		return "[red]"
	}
}
