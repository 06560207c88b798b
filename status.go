package main

import (
	"context"
	"log"
	"runtime"
	"time"

	"instrumon/ingest"
	"instrumon/stats"
	"instrumon/ui"
)

const (
	statusInterval   = time.Second
	statsLogInterval = time.Minute
)

type pipelineGauges interface {
	QueueDepth() int
	BufferKB() int
}

// statusReporter feeds the surface header once a second and writes the
// periodic stats block to the log.
type statusReporter struct {
	label     string
	tracker   *stats.Tracker
	source    ingestHealthSource
	pipe      pipelineGauges
	queueCap  int
	idleAfter time.Duration
	surface   ui.Surface
	plog      *processLog
	gc        gcPauseWindow
}

// Purpose: Drive header refreshes and periodic stats output.
// Key aspects: Header every second; stats lines every minute go file-only when a UI owns the console.
// Upstream: main.
// Downstream: buildStatus, logStats.
func (r *statusReporter) run(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	lastLog := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if r.surface != nil {
				r.surface.SetStatus(r.buildStatus(now.UTC()))
			}
			if now.Sub(lastLog) >= statsLogInterval {
				lastLog = now
				r.logStats()
			}
		}
	}
}

func (r *statusReporter) buildStatus(now time.Time) ui.Status {
	snap := r.tracker.Snapshot()
	st := ui.Status{
		GeneratedAt: now,
		Source:      r.label,
		State:       ingest.StateDisconnected.String(),
		Received:    snap.Received,
		Accepted:    snap.Accepted,
		Dropped:     snap.Dropped,
		Renders:     snap.Renders,
		QueueCap:    r.queueCap,
		Uptime:      snap.Uptime,
	}
	if r.source != nil {
		st.State = r.source.Health().State(now, r.idleAfter).String()
	}
	if r.pipe != nil {
		st.QueueDepth = r.pipe.QueueDepth()
		st.BufferKB = r.pipe.BufferKB()
	}
	return st
}

func (r *statusReporter) statsLines() []string {
	lines := r.tracker.SnapshotLines()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return append(lines, runtimeStatsLine(&mem, &r.gc))
}

// logStats keeps the block out of the system pane when a surface is up and a
// session file can take it.
func (r *statusReporter) logStats() {
	lines := r.statsLines()
	if r.plog == nil {
		for _, line := range lines {
			log.Print(line)
		}
		return
	}
	r.plog.Record(lines, r.surface != nil)
}
