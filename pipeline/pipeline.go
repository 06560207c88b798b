// Package pipeline runs the single goroutine that owns every channel buffer.
// Sources hand records over through a bounded queue; the display hands
// settings changes over through a second one. Nothing else touches the
// buffers, so they are never locked.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"instrumon/internal/ratelimit"
	"instrumon/render"
	"instrumon/router"
	"instrumon/stats"
)

// Display receives finished frames. SetFrame is called from the pipeline
// goroutine and must not block; Width may be called at any time.
type Display interface {
	SetFrame(render.Frame)
	// Width is the current plot width in columns, or 0 when unknown.
	Width() int
}

// Config sizes the pipeline.
type Config struct {
	// Capacity is the per-channel ring size in samples.
	Capacity int
	// QueueSize bounds the records waiting for the pipeline goroutine.
	QueueSize int
	Router    router.Options
	Settings  render.Settings
	// MinFrameInterval caps how often scheduled renders build a frame. A
	// render due sooner is held and built once the interval has passed.
	// Controls always build at once. 0 disables the cap.
	MinFrameInterval time.Duration
}

const (
	defaultQueueSize   = 8192
	controlQueueSize   = 64
	clampLogInterval   = 5 * time.Second
	droppedLogInterval = 10 * time.Second
)

// Pipeline is the consumer side of ingestion.
type Pipeline struct {
	records  chan router.Record
	controls chan Control

	router    *router.Router
	scheduler *render.Scheduler
	cycle     *render.Cycle
	settings  render.Settings
	bufferKB  int

	minFrame  time.Duration
	lastBuild time.Time
	held      bool
	now       func() time.Time

	display     Display
	tracker     *stats.Tracker
	collectors  *stats.Collectors
	onMalformed func(error)

	queueFullLog *ratelimit.Counter
	malformedLog *ratelimit.Counter
	clampLog     *ratelimit.Counter
}

// New allocates every channel buffer up front. display may be nil for a
// headless run; tracker may be nil when counters are not wanted.
func New(cfg Config, display Display, tracker *stats.Tracker) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	r := router.New(cfg.Capacity, cfg.Router)
	p := &Pipeline{
		records:      make(chan router.Record, cfg.QueueSize),
		controls:     make(chan Control, controlQueueSize),
		router:       r,
		cycle:        render.NewCycle(r),
		bufferKB:     r.SizeKB(),
		minFrame:     max(cfg.MinFrameInterval, 0),
		now:          time.Now,
		display:      display,
		tracker:      tracker,
		queueFullLog: ratelimit.NewCounter(droppedLogInterval),
		malformedLog: ratelimit.NewCounter(droppedLogInterval),
		clampLog:     ratelimit.NewCounter(clampLogInterval),
	}
	p.settings = p.clamp(cfg.Settings)
	p.scheduler = render.NewScheduler(p.settings.Divider)
	return p
}

// SetCollectors attaches Prometheus collectors. Call before Run.
func (p *Pipeline) SetCollectors(c *stats.Collectors) {
	p.collectors = c
}

// SetMalformedHandler replaces the default rate-limited log line for rejected
// records. fn runs on the pipeline goroutine. Call before Run.
func (p *Pipeline) SetMalformedHandler(fn func(error)) {
	p.onMalformed = fn
}

// Submit queues rec without blocking. When the queue is full the record is
// dropped, counted, and false is returned; network reads never wait on the
// renderer.
func (p *Pipeline) Submit(rec router.Record) bool {
	select {
	case p.records <- rec:
		return true
	default:
		p.tracker.IncrementDropped(stats.ReasonQueueFull)
		if total, ok := p.queueFullLog.Inc(); ok {
			log.Printf("Pipeline: record queue full, dropping record (total dropped=%d)", total)
		}
		return false
	}
}

// Control queues a settings change without blocking. It reports false when
// the control queue is full.
func (p *Pipeline) Control(c Control) bool {
	select {
	case p.controls <- c:
		return true
	default:
		return false
	}
}

// QueueDepth returns the number of records waiting.
func (p *Pipeline) QueueDepth() int {
	return len(p.records)
}

// BufferKB returns the memory held by all channel buffers.
func (p *Pipeline) BufferKB() int {
	return p.bufferKB
}

// Capacity returns the per-channel ring size.
func (p *Pipeline) Capacity() int {
	return p.router.Capacity()
}

// Run consumes records and controls until ctx is cancelled. It is the only
// goroutine that may touch the buffers.
func (p *Pipeline) Run(ctx context.Context) error {
	var flush <-chan time.Time
	if p.minFrame > 0 {
		ticker := time.NewTicker(p.minFrame)
		defer ticker.Stop()
		flush = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flush:
			p.flushHeld()
		case c := <-p.controls:
			p.applyControl(c)
		case rec := <-p.records:
			p.ingest(rec)
		}
	}
}

// ingest appends one record and, when the scheduler says so, renders. One
// record is one batch.
func (p *Pipeline) ingest(rec router.Record) {
	if err := p.router.Append(rec); err != nil {
		p.reportMalformed(err)
		return
	}
	p.tracker.IncrementAccepted()
	if p.scheduler.OnSampleBatch() == render.Render {
		p.renderScheduled()
	}
}

// renderScheduled builds a frame unless the last one is younger than
// minFrame, in which case the render is held for flushHeld.
func (p *Pipeline) renderScheduled() {
	if p.minFrame > 0 && !p.lastBuild.IsZero() && p.now().Sub(p.lastBuild) < p.minFrame {
		p.held = true
		return
	}
	p.render()
}

func (p *Pipeline) flushHeld() {
	if p.held && p.now().Sub(p.lastBuild) >= p.minFrame {
		p.render()
	}
}

func (p *Pipeline) applyControl(c Control) {
	next := p.clamp(c.apply(p.settings))
	p.settings = next
	p.scheduler.SetDivider(next.Divider)
	p.render()
}

func (p *Pipeline) render() {
	if p.display != nil {
		w := p.display.Width()
		if w >= render.MinWidth && w <= render.MaxWidth {
			p.settings.Width = w
		}
	}
	p.held = false
	p.lastBuild = p.now()
	started := time.Now()
	frame := p.cycle.Build(p.settings)
	p.collectors.ObserveRenderCycle(time.Since(started))
	p.collectors.ObserveQueue(len(p.records))
	p.collectors.ObserveBuffer(frame.Samples)
	p.tracker.IncrementRenders()
	if p.display != nil {
		p.display.SetFrame(frame)
	}
}

func (p *Pipeline) clamp(s render.Settings) render.Settings {
	clamped, err := s.Clamp(p.router.Capacity())
	if err != nil {
		if _, ok := p.clampLog.Inc(); ok {
			log.Printf("Pipeline: %v", err)
		}
	}
	return clamped
}

func (p *Pipeline) reportMalformed(err error) {
	reason := "other"
	var malformed *router.MalformedRecordError
	if errors.As(err, &malformed) {
		reason = malformed.Reason()
	}
	p.tracker.IncrementDropped(reason)
	if p.onMalformed != nil {
		p.onMalformed(err)
		return
	}
	if total, ok := p.malformedLog.Inc(); ok {
		log.Printf("Pipeline: dropped record: %v (total malformed=%d)", err, total)
	}
}
