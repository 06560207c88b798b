package ui

import (
	"sync"
	"time"
)

// frameScheduler coalesces UI updates by key and caps the draw rate. Only the
// newest update per key survives until the next tick.
type frameScheduler struct {
	queue        func(func())
	mu           sync.Mutex
	pending      map[string]func()
	spare        map[string]func()
	quit         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
	frameTime    time.Duration
	drainTimeout time.Duration
	metrics      *Metrics
}

func newFrameScheduler(queue func(func()), targetFPS int, drainTimeout time.Duration, metrics *Metrics) *frameScheduler {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	if drainTimeout <= 0 {
		drainTimeout = 100 * time.Millisecond
	}
	return &frameScheduler{
		queue:        queue,
		pending:      make(map[string]func()),
		spare:        make(map[string]func()),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		frameTime:    time.Second / time.Duration(targetFPS),
		drainTimeout: drainTimeout,
		metrics:      metrics,
	}
}

func (f *frameScheduler) Start() {
	go f.run()
}

// Stop flushes what is pending, waiting at most drainTimeout.
func (f *frameScheduler) Stop() {
	f.stopOnce.Do(func() { close(f.quit) })
	select {
	case <-f.done:
	case <-time.After(f.drainTimeout):
	}
}

// Schedule queues fn under id, replacing any update not yet drawn. It reports
// whether an earlier update was replaced.
func (f *frameScheduler) Schedule(id string, fn func()) bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	_, replaced := f.pending[id]
	f.pending[id] = fn
	f.mu.Unlock()
	if replaced {
		f.metrics.Coalesced()
	}
	return replaced
}

// Pending returns the number of queued updates.
func (f *frameScheduler) Pending() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *frameScheduler) run() {
	defer close(f.done)

	ticker := time.NewTicker(f.frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flush()
		case <-f.quit:
			f.flush()
			return
		}
	}
}

// flush hands every pending update to the UI goroutine as one batch.
func (f *frameScheduler) flush() {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return
	}
	batch := make([]func(), 0, len(f.pending))
	for _, fn := range f.pending {
		batch = append(batch, fn)
	}
	clear(f.spare)
	f.pending, f.spare = f.spare, f.pending
	f.mu.Unlock()

	queuedAt := time.Now()
	f.queue(func() {
		for _, fn := range batch {
			fn()
		}
		f.metrics.ObserveDraw(time.Since(queuedAt))
	})
}
