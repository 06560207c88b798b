package ui

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind is the severity of a system log line.
type EventKind int

const (
	EventInfo EventKind = iota
	EventWarn
	EventError
)

func (k EventKind) Label() string {
	switch k {
	case EventWarn:
		return "WARN"
	case EventError:
		return "ERR"
	default:
		return "INFO"
	}
}

func (k EventKind) colorTag() string {
	switch k {
	case EventWarn:
		return "[yellow]"
	case EventError:
		return "[red]"
	default:
		return "[white]"
	}
}

var (
	errorMarkers = []string{"error", "failed", "fatal", "panic"}
	warnMarkers  = []string{"drop", "disconnect", "lost", "clamp", "retry", "full", "malformed", "unknown channel"}
)

// ClassifyLine guesses the severity of a free-form log line.
func ClassifyLine(line string) EventKind {
	lower := strings.ToLower(line)
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return EventError
		}
	}
	for _, m := range warnMarkers {
		if strings.Contains(lower, m) {
			return EventWarn
		}
	}
	return EventInfo
}

// StyledEvent is one system log line.
type StyledEvent struct {
	Timestamp time.Time
	Kind      EventKind
	Message   string
}

// EventSnapshot is a copy of the ring contents plus the sequence number of the
// newest event.
type EventSnapshot struct {
	Events []StyledEvent
	Seq    uint64
}

// EventRing holds the newest system log lines, bounded by count and total
// message bytes. Messages longer than maxMessage are truncated.
// Append may be called from any goroutine.
type EventRing struct {
	mu         sync.RWMutex
	events     []StyledEvent
	head       int
	count      int
	bytes      int
	maxBytes   int
	maxMessage int
	seq        atomic.Uint64
	evicted    atomic.Uint64
}

func NewEventRing(maxCount, maxBytes, maxMessage int) *EventRing {
	if maxCount <= 0 {
		maxCount = 1
	}
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &EventRing{
		events:     make([]StyledEvent, maxCount),
		maxBytes:   maxBytes,
		maxMessage: maxMessage,
	}
}

func (r *EventRing) Append(e StyledEvent) {
	if r == nil {
		return
	}
	if r.maxMessage > 0 && len(e.Message) > r.maxMessage {
		e.Message = e.Message[:r.maxMessage] + "..."
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count > 0 && (r.count == len(r.events) || (r.maxBytes > 0 && r.bytes+len(e.Message) > r.maxBytes)) {
		r.evictOldestLocked()
	}
	r.events[(r.head+r.count)%len(r.events)] = e
	r.bytes += len(e.Message)
	r.count++
	r.seq.Add(1)
}

// AppendLine classifies and timestamps a raw line.
func (r *EventRing) AppendLine(line string) {
	r.Append(StyledEvent{Timestamp: time.Now(), Kind: ClassifyLine(line), Message: line})
}

// Seq changes every time an event is appended.
func (r *EventRing) Seq() uint64 {
	if r == nil {
		return 0
	}
	return r.seq.Load()
}

// Evicted counts events pushed out by newer ones.
func (r *EventRing) Evicted() uint64 {
	if r == nil {
		return 0
	}
	return r.evicted.Load()
}

// SnapshotInto copies events oldest first into dst.
func (r *EventRing) SnapshotInto(dst []StyledEvent) EventSnapshot {
	if r == nil {
		return EventSnapshot{Events: dst[:0]}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	dst = dst[:0]
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.events[(r.head+i)%len(r.events)])
	}
	return EventSnapshot{Events: dst, Seq: r.seq.Load()}
}

func (r *EventRing) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *EventRing) evictOldestLocked() {
	old := r.events[r.head]
	r.events[r.head] = StyledEvent{}
	r.bytes -= len(old.Message)
	r.head = (r.head + 1) % len(r.events)
	r.count--
	r.evicted.Add(1)
}
