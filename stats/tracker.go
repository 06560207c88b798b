// Package stats tracks ingestion and render counters for display in the
// dashboard, periodic console output and the optional Prometheus endpoint.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker counts what happened to every incoming record. It is safe for
// concurrent use: sources and the pipeline increment from different
// goroutines.
type Tracker struct {
	// per-reason counters live in sync.Map + atomic.Uint64 so per-record
	// increments don't fight over a mutex
	dropReasons   sync.Map // string -> *atomic.Uint64
	sourceRecords sync.Map // source name -> *atomic.Uint64
	start         atomic.Int64
	received      atomic.Uint64
	accepted      atomic.Uint64
	queueFull     atomic.Uint64
	decodeErrors  atomic.Uint64
	renders       atomic.Uint64
	reconnects    atomic.Uint64

	mirror *Collectors
}

// NewTracker creates a new stats tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// Mirror forwards every subsequent increment to c as well. Passing nil stops
// mirroring. Call before sources start.
func (t *Tracker) Mirror(c *Collectors) {
	if t == nil {
		return
	}
	t.mirror = c
}

// IncrementReceived counts a decoded record delivered by source.
func (t *Tracker) IncrementReceived(source string) {
	if t == nil {
		return
	}
	t.received.Add(1)
	incrementCounter(&t.sourceRecords, source)
	t.mirror.received(source)
}

// IncrementAccepted counts a record written to the buffers.
func (t *Tracker) IncrementAccepted() {
	if t == nil {
		return
	}
	t.accepted.Add(1)
	t.mirror.accepted()
}

// IncrementDropped counts a record rejected for reason (missing, unknown,
// non_numeric, queue_full, decode).
func (t *Tracker) IncrementDropped(reason string) {
	if t == nil {
		return
	}
	switch reason {
	case ReasonQueueFull:
		t.queueFull.Add(1)
	case ReasonDecode:
		t.decodeErrors.Add(1)
	}
	incrementCounter(&t.dropReasons, reason)
	t.mirror.dropped(reason)
}

// IncrementRenders counts a completed render cycle.
func (t *Tracker) IncrementRenders() {
	if t == nil {
		return
	}
	t.renders.Add(1)
	t.mirror.rendered()
}

// IncrementReconnects counts a source redial.
func (t *Tracker) IncrementReconnects() {
	if t == nil {
		return
	}
	t.reconnects.Add(1)
	t.mirror.reconnected()
}

// Drop reasons.
const (
	ReasonMissing    = "missing"
	ReasonUnknown    = "unknown"
	ReasonNonNumeric = "non_numeric"
	ReasonQueueFull  = "queue_full"
	ReasonDecode     = "decode"
)

// Snapshot is a point-in-time copy of the scalar counters.
type Snapshot struct {
	Received     uint64
	Accepted     uint64
	QueueFull    uint64
	DecodeErrors uint64
	Dropped      uint64
	Renders      uint64
	Reconnects   uint64
	Uptime       time.Duration
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	var dropped uint64
	t.dropReasons.Range(func(_, value any) bool {
		dropped += value.(*atomic.Uint64).Load()
		return true
	})
	return Snapshot{
		Received:     t.received.Load(),
		Accepted:     t.accepted.Load(),
		QueueFull:    t.queueFull.Load(),
		DecodeErrors: t.decodeErrors.Load(),
		Dropped:      dropped,
		Renders:      t.renders.Load(),
		Reconnects:   t.reconnects.Load(),
		Uptime:       t.GetUptime(),
	}
}

// GetDropCounts returns a copy of the per-reason drop counts.
func (t *Tracker) GetDropCounts() map[string]uint64 {
	return copyCounts(&t.dropReasons)
}

// GetSourceCounts returns a copy of the per-source record counts.
func (t *Tracker) GetSourceCounts() map[string]uint64 {
	return copyCounts(&t.sourceRecords)
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	snap := t.Snapshot()
	lines := make([]string, 0, 3)
	lines = append(lines, fmt.Sprintf("Records: received=%d accepted=%d renders=%d reconnects=%d",
		snap.Received, snap.Accepted, snap.Renders, snap.Reconnects))
	lines = append(lines, formatMapCounts("Records by source", &t.sourceRecords))
	lines = append(lines, formatMapCounts("Dropped", &t.dropReasons))
	return lines
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func formatMapCounts(label string, counts *sync.Map) string {
	snapshot := copyCounts(counts)
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", key, snapshot[key])
	}
	if len(keys) == 0 {
		builder.WriteString("(none)")
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
