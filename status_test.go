package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"instrumon/config"
	"instrumon/ingest"
	"instrumon/stats"
)

type fakeHealth struct {
	snap ingest.HealthSnapshot
}

func (f fakeHealth) Health() ingest.HealthSnapshot { return f.snap }

type fakeGauges struct{ depth, kb int }

func (f fakeGauges) QueueDepth() int { return f.depth }
func (f fakeGauges) BufferKB() int   { return f.kb }

func TestStatusReporterBuildStatus(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	tracker := stats.NewTracker()
	tracker.IncrementReceived("WebSocket")
	tracker.IncrementReceived("WebSocket")
	tracker.IncrementAccepted()
	tracker.IncrementDropped(stats.ReasonMissing)

	r := &statusReporter{
		label:     "WebSocket ws://localhost:8888/websocket",
		tracker:   tracker,
		source:    fakeHealth{ingest.HealthSnapshot{Connected: true, LastRecordAt: now.Add(-time.Second)}},
		pipe:      fakeGauges{depth: 3, kb: 2048},
		queueCap:  8192,
		idleAfter: 2 * time.Second,
	}
	st := r.buildStatus(now)
	if st.State != "LIVE" || st.Received != 2 || st.Accepted != 1 || st.Dropped != 1 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.QueueDepth != 3 || st.QueueCap != 8192 || st.BufferKB != 2048 {
		t.Fatalf("unexpected gauges %+v", st)
	}

	r.source = nil
	if st := r.buildStatus(now); st.State != "DISCONNECTED" {
		t.Fatalf("missing source should read as disconnected, got %q", st.State)
	}
}

func TestStatusReporterStatsLines(t *testing.T) {
	r := &statusReporter{tracker: stats.NewTracker()}
	lines := r.statsLines()
	if len(lines) == 0 || !strings.HasPrefix(lines[len(lines)-1], "Runtime: heap=") {
		t.Fatalf("expected runtime line last, got %v", lines)
	}
}

func TestStatusReporterLogStatsRouting(t *testing.T) {
	dir := t.TempDir()
	plog, err := setupLogging(config.LoggingConfig{Dir: dir}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	defer plog.Close()
	var pane bytes.Buffer
	plog.SetConsole(&pane, false)

	r := &statusReporter{tracker: stats.NewTracker(), plog: plog, surface: newANSIConsoleWriter(config.Default().UI, 1000, io.Discard, -1)}
	r.logStats()
	if pane.Len() != 0 {
		t.Fatalf("stats should stay out of the pane while a surface is up, got %q", pane.String())
	}
	file := readSessionFile(t, dir, time.Now().UTC().Format(logDayLayout))
	if !strings.Contains(file, "Runtime: heap=") {
		t.Fatalf("stats should land in the session file, got %q", file)
	}

	r.surface = nil
	r.logStats()
	if !strings.Contains(pane.String(), "Runtime: heap=") {
		t.Fatalf("headless stats should be echoed, got %q", pane.String())
	}
}
