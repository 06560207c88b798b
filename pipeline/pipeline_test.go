package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"instrumon/channel"
	"instrumon/downsample"
	"instrumon/render"
	"instrumon/router"
	"instrumon/stats"
)

type fakeDisplay struct {
	frames chan render.Frame
	width  atomic.Int64
}

func newFakeDisplay(width int) *fakeDisplay {
	d := &fakeDisplay{frames: make(chan render.Frame, 64)}
	d.width.Store(int64(width))
	return d
}

func (d *fakeDisplay) SetFrame(f render.Frame) {
	select {
	case d.frames <- f:
	default:
	}
}

func (d *fakeDisplay) Width() int { return int(d.width.Load()) }

func (d *fakeDisplay) next(t *testing.T) render.Frame {
	t.Helper()
	select {
	case f := <-d.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return render.Frame{}
	}
}

func record(v float64) router.Record {
	rec := make(router.Record, channel.Count)
	for _, info := range channel.All() {
		rec[info.Name] = v
	}
	return rec
}

func testSettings(divider int) render.Settings {
	s := render.DefaultSettings()
	s.Divider = divider
	return s
}

func start(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestPipelineRendersEveryDividerPlusOneRecords(t *testing.T) {
	display := newFakeDisplay(60)
	tracker := stats.NewTracker()
	p := New(Config{Capacity: 100, QueueSize: 16, Settings: testSettings(2)}, display, tracker)
	start(t, p)

	for i := 1; i <= 7; i++ {
		if !p.Submit(record(float64(i))) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	first := display.next(t)
	second := display.next(t)
	if first.Written != 3 || second.Written != 6 {
		t.Fatalf("expected frames after records 3 and 6, got %d and %d", first.Written, second.Written)
	}
	if second.Series[channel.Thrust].Latest != 6 {
		t.Fatalf("unexpected latest thrust %v", second.Series[channel.Thrust].Latest)
	}
	if second.Settings.Width != 60 {
		t.Fatalf("expected display width to be picked up, got %d", second.Settings.Width)
	}
	select {
	case f := <-display.frames:
		t.Fatalf("unexpected third frame at written=%d", f.Written)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPipelineDropsMalformedRecords(t *testing.T) {
	display := newFakeDisplay(0)
	tracker := stats.NewTracker()
	p := New(Config{Capacity: 10, Settings: testSettings(0)}, display, tracker)
	malformed := make(chan error, 4)
	p.SetMalformedHandler(func(err error) { malformed <- err })
	start(t, p)

	bad := record(1)
	delete(bad, channel.RunTankMass.Name())
	p.Submit(bad)
	p.Submit(record(2))

	f := display.next(t)
	if f.Written != 1 || f.Series[0].Latest != 2 {
		t.Fatalf("expected only the valid record to be written, got written=%d latest=%v", f.Written, f.Series[0].Latest)
	}
	select {
	case err := <-malformed:
		if err == nil {
			t.Fatalf("expected an error")
		}
	case <-time.After(time.Second):
		t.Fatalf("malformed handler not called")
	}
	if got := tracker.GetDropCounts()[stats.ReasonMissing]; got != 1 {
		t.Fatalf("expected one missing-channel drop, got %d", got)
	}
	if tracker.Snapshot().Accepted != 1 {
		t.Fatalf("expected one accepted record")
	}
}

func TestPipelineSubmitDropsWhenQueueFull(t *testing.T) {
	tracker := stats.NewTracker()
	p := New(Config{Capacity: 10, QueueSize: 2, Settings: testSettings(0)}, nil, tracker)

	if !p.Submit(record(1)) || !p.Submit(record(2)) {
		t.Fatalf("queue should accept two records")
	}
	if p.Submit(record(3)) {
		t.Fatalf("third record should be dropped")
	}
	if p.QueueDepth() != 2 {
		t.Fatalf("expected depth 2, got %d", p.QueueDepth())
	}
	if tracker.Snapshot().QueueFull != 1 {
		t.Fatalf("expected queue_full count 1")
	}
}

func TestPipelineControlsClampAndRender(t *testing.T) {
	display := newFakeDisplay(0)
	tracker := stats.NewTracker()
	p := New(Config{Capacity: 50, Settings: testSettings(1000)}, display, tracker)
	start(t, p)

	for i := 0; i < 20; i++ {
		p.Submit(record(float64(i)))
	}
	deadline := time.Now().Add(2 * time.Second)
	for tracker.Snapshot().Accepted < 20 {
		if time.Now().After(deadline) {
			t.Fatalf("records not consumed")
		}
		time.Sleep(time.Millisecond)
	}
	p.Control(SetWindow(5))
	f := display.next(t)
	if f.Settings.WindowLength != 5 {
		t.Fatalf("expected window 5, got %d", f.Settings.WindowLength)
	}

	p.Control(SetMultiplier(99))
	f = display.next(t)
	if f.Settings.Multiplier != downsample.MaxMultiplier {
		t.Fatalf("expected multiplier clamped to %v, got %v", downsample.MaxMultiplier, f.Settings.Multiplier)
	}

	p.Control(SetMethod(downsample.Mean))
	f = display.next(t)
	if f.Settings.Method != downsample.Mean {
		t.Fatalf("expected mean method")
	}

	p.Control(SetWindow(500))
	f = display.next(t)
	if f.Settings.WindowLength != 50 {
		t.Fatalf("expected window clamped to capacity, got %d", f.Settings.WindowLength)
	}
	if f.Samples != 20 || f.Written != 20 {
		t.Fatalf("expected all 20 records visible, got samples=%d written=%d", f.Samples, f.Written)
	}
}

func TestPipelineHoldsRendersUnderFrameInterval(t *testing.T) {
	display := newFakeDisplay(60)
	p := New(Config{Capacity: 100, Settings: testSettings(0), MinFrameInterval: 100 * time.Millisecond}, display, stats.NewTracker())
	clock := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	for i := 1; i <= 5; i++ {
		p.ingest(record(float64(i)))
	}
	if f := display.next(t); f.Written != 1 {
		t.Fatalf("first render should build at once, got written=%d", f.Written)
	}
	if len(display.frames) != 0 || !p.held {
		t.Fatalf("renders inside the interval should be held, frames=%d held=%v", len(display.frames), p.held)
	}

	clock = clock.Add(50 * time.Millisecond)
	p.flushHeld()
	if len(display.frames) != 0 {
		t.Fatalf("held render must wait out the interval")
	}

	clock = clock.Add(50 * time.Millisecond)
	p.flushHeld()
	if f := display.next(t); f.Written != 5 || f.Series[channel.Thrust].Latest != 5 {
		t.Fatalf("flushed frame should show the newest record, got written=%d", f.Written)
	}
	p.flushHeld()
	if len(display.frames) != 0 {
		t.Fatalf("nothing held, nothing to flush")
	}

	p.applyControl(Redraw())
	if f := display.next(t); f.Written != 5 {
		t.Fatalf("controls render regardless of the interval, got written=%d", f.Written)
	}
}
