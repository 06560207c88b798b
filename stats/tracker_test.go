package stats

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerCountsConcurrently(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				tr.IncrementReceived("websocket")
				tr.IncrementAccepted()
			}
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if snap.Received != 8000 || snap.Accepted != 8000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if got := tr.GetSourceCounts()["websocket"]; got != 8000 {
		t.Fatalf("expected 8000 websocket records, got %d", got)
	}
}

func TestTrackerDropReasons(t *testing.T) {
	tr := NewTracker()
	tr.IncrementDropped(ReasonQueueFull)
	tr.IncrementDropped(ReasonQueueFull)
	tr.IncrementDropped(ReasonDecode)
	tr.IncrementDropped(ReasonMissing)

	snap := tr.Snapshot()
	if snap.QueueFull != 2 || snap.DecodeErrors != 1 || snap.Dropped != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	lines := tr.SnapshotLines()
	if lines[2] != "Dropped: decode=1, missing=1, queue_full=2" {
		t.Fatalf("unexpected dropped line %q", lines[2])
	}
}

func TestTrackerNilSafe(t *testing.T) {
	var tr *Tracker
	tr.IncrementAccepted()
	tr.IncrementDropped(ReasonUnknown)
	if snap := tr.Snapshot(); snap.Accepted != 0 {
		t.Fatalf("nil tracker should report zero")
	}
}

func TestTrackerMirrorsToCollectors(t *testing.T) {
	tr := NewTracker()
	c := NewCollectors()
	tr.Mirror(c)

	tr.IncrementReceived("mqtt")
	tr.IncrementAccepted()
	tr.IncrementDropped(ReasonNonNumeric)
	tr.IncrementRenders()

	if got := testutil.ToFloat64(c.recordsAccepted); got != 1 {
		t.Fatalf("accepted counter = %v", got)
	}
	if got := testutil.ToFloat64(c.recordsDropped.WithLabelValues(ReasonNonNumeric)); got != 1 {
		t.Fatalf("dropped counter = %v", got)
	}
	if got := testutil.ToFloat64(c.recordsReceived.WithLabelValues("mqtt")); got != 1 {
		t.Fatalf("received counter = %v", got)
	}

	expected := `
# HELP instrumon_renders_total Completed render cycles
# TYPE instrumon_renders_total counter
instrumon_renders_total 1
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "instrumon_renders_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
