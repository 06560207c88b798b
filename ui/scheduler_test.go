package ui

import (
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func immediateQueue(fn func()) { fn() }

func TestFrameSchedulerCoalescesLatestPerID(t *testing.T) {
	metrics := NewMetrics()
	f := newFrameScheduler(immediateQueue, 60, 50*time.Millisecond, metrics)

	var seq []string
	if f.Schedule("frame", func() { seq = append(seq, "f1") }) {
		t.Fatalf("first schedule should not report a replacement")
	}
	if !f.Schedule("frame", func() { seq = append(seq, "f2") }) {
		t.Fatalf("second schedule should replace the first")
	}
	f.Schedule("status", func() { seq = append(seq, "s1") })
	if f.Pending() != 2 {
		t.Fatalf("expected 2 pending updates, got %d", f.Pending())
	}

	f.flush()

	sort.Strings(seq)
	if len(seq) != 2 || seq[0] != "f2" || seq[1] != "s1" {
		t.Fatalf("unexpected callbacks: %v", seq)
	}
	if metrics.CoalescedFrames() != 1 {
		t.Fatalf("expected one coalesced update, got %d", metrics.CoalescedFrames())
	}
	if metrics.DrawSnapshot().N != 1 {
		t.Fatalf("expected one draw delay observation")
	}

	f.flush()
	if len(seq) != 2 {
		t.Fatalf("expected no additional callbacks after empty flush, got %v", seq)
	}

	// Maps are swapped on flush; new updates must still land.
	f.Schedule("frame", func() { seq = append(seq, "f3") })
	f.flush()
	if len(seq) != 3 || seq[2] != "f3" {
		t.Fatalf("expected update after swap, got %v", seq)
	}
}

func TestFrameSchedulerFlushesPendingOnStop(t *testing.T) {
	f := newFrameScheduler(immediateQueue, 1, 50*time.Millisecond, nil)
	var called atomic.Uint64

	f.Start()
	f.Schedule("frame", func() { called.Add(1) })
	f.Stop()

	if called.Load() != 1 {
		t.Fatalf("expected pending callback to flush on stop, got %d", called.Load())
	}
}

func TestFrameSchedulerStopIdempotent(t *testing.T) {
	f := newFrameScheduler(immediateQueue, 60, 50*time.Millisecond, nil)
	f.Start()
	f.Stop()
	f.Stop()
}

func TestFrameSchedulerNilSafe(t *testing.T) {
	var f *frameScheduler
	if f.Schedule("frame", func() {}) || f.Pending() != 0 {
		t.Fatalf("nil scheduler should ignore updates")
	}
}
