package ui

import (
	"sync"
	"sync/atomic"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Latency values are recorded in microseconds up to this bound; slower
// observations are clamped to it.
const maxTrackedLatency = 10 * time.Second

// LatencyTracker keeps an HDR histogram of durations for percentile
// estimates. Memory is fixed at construction.
type LatencyTracker struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		hist: hdrhistogram.New(1, maxTrackedLatency.Microseconds(), 3),
	}
}

func (t *LatencyTracker) Observe(d time.Duration) {
	if t == nil {
		return
	}
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxTrackedLatency.Microseconds() {
		us = maxTrackedLatency.Microseconds()
	}
	t.mu.Lock()
	_ = t.hist.RecordValue(us)
	t.mu.Unlock()
}

type LatencySnapshot struct {
	P50 time.Duration
	P99 time.Duration
	Max time.Duration
	N   int64
}

func (t *LatencyTracker) Snapshot() LatencySnapshot {
	if t == nil {
		return LatencySnapshot{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.hist.TotalCount()
	if n == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		P50: time.Duration(t.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99: time.Duration(t.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max: time.Duration(t.hist.Max()) * time.Microsecond,
		N:   n,
	}
}

// Reset discards every observation.
func (t *LatencyTracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.hist.Reset()
	t.mu.Unlock()
}

// Metrics tracks UI-level counters and latency distributions.
type Metrics struct {
	frameLatency *LatencyTracker
	drawDelay    *LatencyTracker
	frames       atomic.Uint64
	coalesced    atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		frameLatency: NewLatencyTracker(),
		drawDelay:    NewLatencyTracker(),
	}
}

// ObserveFrame records the age of a frame when it reached the screen.
func (m *Metrics) ObserveFrame(age time.Duration) {
	if m == nil {
		return
	}
	m.frames.Add(1)
	m.frameLatency.Observe(age)
}

// ObserveDraw records how long a queued update waited for the UI goroutine.
func (m *Metrics) ObserveDraw(d time.Duration) {
	if m == nil {
		return
	}
	m.drawDelay.Observe(d)
}

// Coalesced counts an update replaced before it was drawn.
func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.coalesced.Add(1)
}

func (m *Metrics) FrameSnapshot() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{}
	}
	return m.frameLatency.Snapshot()
}

func (m *Metrics) DrawSnapshot() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{}
	}
	return m.drawDelay.Snapshot()
}

func (m *Metrics) Frames() uint64 {
	if m == nil {
		return 0
	}
	return m.frames.Load()
}

func (m *Metrics) CoalescedFrames() uint64 {
	if m == nil {
		return 0
	}
	return m.coalesced.Load()
}
