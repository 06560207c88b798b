// Package render decides when to redraw and builds the frames the display
// shows. Everything here runs on the pipeline goroutine.
package render

// Decision is the scheduler's verdict for one ingested batch.
type Decision int

const (
	// Skip means keep accumulating samples.
	Skip Decision = iota
	// Render means run a full render cycle now.
	Render
)

func (d Decision) String() string {
	if d == Render {
		return "render"
	}
	return "skip"
}

// MaxDivider bounds the divider so the display never goes stale for more
// than about a second at 1 kHz.
const MaxDivider = 1000

// Scheduler gates render cycles on ingestion: with divider d a render happens
// on batches d+1, 2(d+1), and so on. A divider of 0 renders every batch.
type Scheduler struct {
	divider int
	counter int
}

// NewScheduler returns a scheduler with the divider clamped to [0, MaxDivider].
func NewScheduler(divider int) *Scheduler {
	s := &Scheduler{}
	s.SetDivider(divider)
	return s
}

// OnSampleBatch records one ingested batch and reports whether to render.
func (s *Scheduler) OnSampleBatch() Decision {
	s.counter++
	if s.counter > s.divider {
		s.counter = 0
		return Render
	}
	return Skip
}

// SetDivider changes the divider for subsequent batches. It reports whether
// d had to be clamped. The batch counter is preserved, so lowering the
// divider below the current count renders on the next batch.
func (s *Scheduler) SetDivider(d int) bool {
	clamped := clampInt(d, 0, MaxDivider)
	s.divider = clamped
	return clamped != d
}

// Divider returns the current divider.
func (s *Scheduler) Divider() int {
	return s.divider
}

// Pending returns the number of batches accumulated since the last render.
func (s *Scheduler) Pending() int {
	return s.counter
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
