package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"instrumon/ingest"
)

const (
	ingestHealthInterval  = 5 * time.Second
	ingestHealthLogPrefix = "Ingest Health: "
)

type ingestHealthSource interface {
	Health() ingest.HealthSnapshot
}

// Purpose: Periodically log ingest state transitions with low noise.
// Key aspects: Reports only when LIVE/IDLE/DISCONNECTED changes.
// Upstream: main startup after the ingestor is created.
// Downstream: log.Printf.
func runIngestHealthMonitor(ctx context.Context, src ingestHealthSource, idleAfter time.Duration) {
	if src == nil {
		return
	}
	ticker := time.NewTicker(ingestHealthInterval)
	defer ticker.Stop()
	var m ingestHealthMonitor
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if line, ok := m.observe(src.Health(), time.Now().UTC(), idleAfter); ok {
				log.Printf("%s%s", ingestHealthLogPrefix, line)
			}
		}
	}
}

// ingestHealthMonitor remembers the last reported state.
type ingestHealthMonitor struct {
	last        ingest.State
	initialized bool
}

func (m *ingestHealthMonitor) observe(snap ingest.HealthSnapshot, now time.Time, idleAfter time.Duration) (string, bool) {
	state := snap.State(now, idleAfter)
	if m.initialized && state == m.last {
		return "", false
	}
	m.last = state
	m.initialized = true
	return formatIngestHealthLine(snap, state, now), true
}

func formatIngestHealthLine(snap ingest.HealthSnapshot, state ingest.State, now time.Time) string {
	var b strings.Builder
	b.WriteString(snap.Name)
	b.WriteString(" ")
	b.WriteString(state.String())
	if !snap.LastMessageAt.IsZero() {
		b.WriteString(" last_msg=")
		b.WriteString(ageString(now, snap.LastMessageAt))
	}
	if !snap.LastRecordAt.IsZero() {
		b.WriteString(" last_record=")
		b.WriteString(ageString(now, snap.LastRecordAt))
	}
	fmt.Fprintf(&b, " msgs=%d records=%d", snap.Messages, snap.Records)
	var dropParts []string
	if snap.DecodeErrors > 0 {
		dropParts = append(dropParts, fmt.Sprintf("decode=%d", snap.DecodeErrors))
	}
	if snap.SinkDrops > 0 {
		dropParts = append(dropParts, fmt.Sprintf("queue_full=%d", snap.SinkDrops))
	}
	if len(dropParts) > 0 {
		b.WriteString(" drops=")
		b.WriteString(strings.Join(dropParts, ","))
	}
	return b.String()
}

func ageString(now time.Time, at time.Time) string {
	if at.IsZero() {
		return "never"
	}
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	if age < time.Second {
		return "0s"
	}
	return age.Truncate(time.Second).String()
}
