package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"instrumon/router"
	"instrumon/stats"
)

// Handler receives connection events and raw messages from a Source. Calls
// for one source never overlap.
type Handler interface {
	OnConnect()
	OnMessage(payload []byte)
	OnDisconnect(err error)
}

// Source reads raw telemetry messages from one transport.
type Source interface {
	Name() string
	// Run connects and delivers messages until the connection fails or ctx
	// is done. It returns nil only when ctx ended the session.
	Run(ctx context.Context, h Handler) error
}

// Sink accepts decoded records. It must not block; the pipeline's Submit is
// the usual sink.
type Sink func(router.Record) bool

// Backoff bounds for redialing a source.
const (
	initialRetryDelay = 5 * time.Second
	maxRetryDelay     = 60 * time.Second
)

// Ingestor supervises one Source: it decodes and converts every message,
// hands records to the sink, tracks health, and redials with exponential
// backoff when the session ends.
type Ingestor struct {
	src       Source
	decoder   *Decoder
	converter *Converter
	sink      Sink
	tracker   *stats.Tracker
	onError   func(source string, err error)

	initialDelay time.Duration
	maxDelay     time.Duration

	connected     atomic.Bool
	lastMessageAt atomic.Int64
	lastRecordAt  atomic.Int64
	messages      atomic.Uint64
	records       atomic.Uint64
	decodeErrors  atomic.Uint64
	sinkDrops     atomic.Uint64
}

// NewIngestor wires src to sink. converter and tracker may be nil.
func NewIngestor(src Source, converter *Converter, sink Sink, tracker *stats.Tracker) *Ingestor {
	return &Ingestor{
		src:          src,
		decoder:      NewDecoder(),
		converter:    converter,
		sink:         sink,
		tracker:      tracker,
		initialDelay: initialRetryDelay,
		maxDelay:     maxRetryDelay,
	}
}

// SetErrorHandler receives every decode failure. Without one, failures are
// only counted.
func (in *Ingestor) SetErrorHandler(fn func(source string, err error)) {
	in.onError = fn
}

// Name returns the supervised source's name.
func (in *Ingestor) Name() string {
	return in.src.Name()
}

// Run keeps the source connected until ctx is done.
func (in *Ingestor) Run(ctx context.Context) {
	delay := in.initialDelay
	for {
		before := in.messages.Load()
		err := in.src.Run(ctx, in)
		in.connected.Store(false)
		if ctx.Err() != nil {
			log.Printf("%s: stopped", in.Name())
			return
		}
		if in.messages.Load() != before {
			// The session delivered data, so this is a fresh failure.
			delay = in.initialDelay
		}
		if err == nil {
			err = errors.New("session ended")
		}
		log.Printf("%s: session ended: %v (retry in %s)", in.Name(), err, delay)
		in.tracker.IncrementReconnects()
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
		delay *= 2
		if delay > in.maxDelay {
			delay = in.maxDelay
		}
	}
}

// OnConnect marks the source connected.
func (in *Ingestor) OnConnect() {
	in.connected.Store(true)
	log.Printf("%s: connected", in.Name())
}

// OnDisconnect marks the source disconnected. Sources with their own
// reconnect logic call it while Run keeps going.
func (in *Ingestor) OnDisconnect(err error) {
	in.connected.Store(false)
	if err != nil {
		log.Printf("%s: connection lost: %v", in.Name(), err)
	}
}

// OnMessage decodes, converts and forwards one message.
func (in *Ingestor) OnMessage(payload []byte) {
	now := time.Now().UTC().UnixNano()
	in.messages.Add(1)
	in.lastMessageAt.Store(now)

	rec, err := in.decoder.Decode(payload)
	if err != nil {
		in.decodeErrors.Add(1)
		in.tracker.IncrementDropped(stats.ReasonDecode)
		if in.onError != nil {
			in.onError(in.Name(), err)
		}
		return
	}
	in.converter.Apply(rec)
	in.tracker.IncrementReceived(in.Name())
	in.records.Add(1)
	in.lastRecordAt.Store(now)
	if in.sink != nil && !in.sink(rec) {
		in.sinkDrops.Add(1)
	}
}

// HealthSnapshot is a point-in-time view of one source.
type HealthSnapshot struct {
	Name          string
	Connected     bool
	LastMessageAt time.Time
	LastRecordAt  time.Time
	Messages      uint64
	Records       uint64
	DecodeErrors  uint64
	SinkDrops     uint64
}

// Health returns the source's current counters.
func (in *Ingestor) Health() HealthSnapshot {
	return HealthSnapshot{
		Name:          in.Name(),
		Connected:     in.connected.Load(),
		LastMessageAt: unixNanoTime(in.lastMessageAt.Load()),
		LastRecordAt:  unixNanoTime(in.lastRecordAt.Load()),
		Messages:      in.messages.Load(),
		Records:       in.records.Load(),
		DecodeErrors:  in.decodeErrors.Load(),
		SinkDrops:     in.sinkDrops.Load(),
	}
}

// State classifies the source for the status line.
type State int

const (
	StateDisconnected State = iota
	StateIdle
	StateLive
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "LIVE"
	case StateIdle:
		return "IDLE"
	default:
		return "DISCONNECTED"
	}
}

// State reports LIVE when a record arrived within idleAfter, IDLE when
// connected but quiet, and DISCONNECTED otherwise.
func (h HealthSnapshot) State(now time.Time, idleAfter time.Duration) State {
	if !h.Connected {
		return StateDisconnected
	}
	if h.LastRecordAt.IsZero() || now.Sub(h.LastRecordAt) > idleAfter {
		return StateIdle
	}
	return StateLive
}

func unixNanoTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func sessionError(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}
