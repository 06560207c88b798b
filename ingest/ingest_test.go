package ingest

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"instrumon/router"
	"instrumon/stats"
)

func TestDecodeRecord(t *testing.T) {
	d := NewDecoder()
	rec, err := d.Decode([]byte(`{"time": 12, "data": {"P_RUN_TANK": 101325.5, "T_RUN_TANK": -3, "L_THRUST": "n/a", "L_RUN_TANK": null}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["P_RUN_TANK"] != 101325.5 || rec["T_RUN_TANK"] != -3 {
		t.Fatalf("unexpected values: %v", rec)
	}
	if !math.IsNaN(rec["L_THRUST"]) || !math.IsNaN(rec["L_RUN_TANK"]) {
		t.Fatalf("non-numeric values should decode to NaN: %v", rec)
	}
	if len(rec) != 4 {
		t.Fatalf("expected 4 keys, got %d", len(rec))
	}

	// The decoder is reused across messages.
	rec, err = d.Decode([]byte(`{"data":{"P_INJECTOR":1}}`))
	if err != nil || len(rec) != 1 || rec["P_INJECTOR"] != 1 {
		t.Fatalf("second decode: %v %v", rec, err)
	}
}

func TestDecodeEmptyKeys(t *testing.T) {
	d := NewDecoder()
	rec, err := d.Decode([]byte(`{"":0,"data":{"P_RUN_TANK":1}}`))
	if err != nil || rec["P_RUN_TANK"] != 1 {
		t.Fatalf("empty top-level key should be ignored: %v %v", rec, err)
	}
	rec, err = d.Decode([]byte(`{"data":{"":1,"P_RUN_TANK":2,"T_RUN_TANK":3}}`))
	if err != nil {
		t.Fatalf("empty key inside data should still decode: %v", err)
	}
	if len(rec) != 3 || rec[""] != 1 || rec["P_RUN_TANK"] != 2 || rec["T_RUN_TANK"] != 3 {
		t.Fatalf("every key should be kept for the router to judge: %v", rec)
	}
}

func TestDecodeFailures(t *testing.T) {
	d := NewDecoder()
	for _, msg := range []string{
		``,
		`[1,2]`,
		`{"data": [1]}`,
		`{"other": {}}`,
		`{"data": {"P_RUN_TANK": 1`,
		`not json`,
	} {
		if _, err := d.Decode([]byte(msg)); !errors.Is(err, ErrDecode) {
			t.Fatalf("Decode(%q) = %v, want ErrDecode", msg, err)
		}
	}
	if _, err := d.Decode([]byte(`{"data":{"P_N2_FLOW":2}}`)); err != nil {
		t.Fatalf("decoder should recover after errors: %v", err)
	}
}

func TestConverterDefaults(t *testing.T) {
	conv := NewConverter(DefaultConversions())
	rec := router.Record{
		"P_RUN_TANK": 6895,
		"T_INJECTOR": 0,
		"L_RUN_TANK": 98.1,
		"L_THRUST":   42,
		"EXTRA":      7,
		"P_N2_FLOW":  math.NaN(),
	}
	conv.Apply(rec)
	if math.Abs(rec["P_RUN_TANK"]-1) > 1e-9 {
		t.Fatalf("pressure: %v", rec["P_RUN_TANK"])
	}
	if rec["T_INJECTOR"] != 273.15 {
		t.Fatalf("temperature: %v", rec["T_INJECTOR"])
	}
	if math.Abs(rec["L_RUN_TANK"]-10) > 1e-9 {
		t.Fatalf("mass: %v", rec["L_RUN_TANK"])
	}
	if rec["L_THRUST"] != 42 || rec["EXTRA"] != 7 {
		t.Fatalf("unexpected passthrough values: %v", rec)
	}
	if !math.IsNaN(rec["P_N2_FLOW"]) {
		t.Fatalf("NaN must stay NaN")
	}
}

func strconvFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type recordSink struct {
	mu      sync.Mutex
	records []router.Record
	notify  chan struct{}
	accept  bool
}

func newRecordSink() *recordSink {
	return &recordSink{notify: make(chan struct{}, 128), accept: true}
}

func (s *recordSink) submit(rec router.Record) bool {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return s.accept
}

func (s *recordSink) waitFor(t *testing.T, n int) []router.Record {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		s.mu.Lock()
		if len(s.records) >= n {
			out := append([]router.Record(nil), s.records...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		select {
		case <-s.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d records", n)
		}
	}
}

func TestIngestorHandlesMessages(t *testing.T) {
	sink := newRecordSink()
	sink.accept = false
	tracker := stats.NewTracker()
	in := NewIngestor(NewTCPSource("unused:0", "", 0, 0), NewConverter(DefaultConversions()), sink.submit, tracker)
	var decodeErrs []error
	in.SetErrorHandler(func(source string, err error) {
		if source != "TCP" {
			t.Errorf("unexpected source %q", source)
		}
		decodeErrs = append(decodeErrs, err)
	})

	in.OnConnect()
	in.OnMessage([]byte(`{"data":{"P_RUN_TANK":13790}}`))
	in.OnMessage([]byte(`garbage`))

	records := sink.waitFor(t, 1)
	if math.Abs(records[0]["P_RUN_TANK"]-2) > 1e-9 {
		t.Fatalf("expected converted value, got %v", records[0])
	}
	if len(decodeErrs) != 1 || !errors.Is(decodeErrs[0], ErrDecode) {
		t.Fatalf("expected one decode error, got %v", decodeErrs)
	}
	h := in.Health()
	if !h.Connected || h.Messages != 2 || h.Records != 1 || h.DecodeErrors != 1 || h.SinkDrops != 1 {
		t.Fatalf("unexpected health %+v", h)
	}
	if got := h.State(h.LastRecordAt.Add(time.Second), 2*time.Second); got != StateLive {
		t.Fatalf("expected LIVE, got %s", got)
	}
	if got := h.State(h.LastRecordAt.Add(time.Minute), 2*time.Second); got != StateIdle {
		t.Fatalf("expected IDLE, got %s", got)
	}
	in.OnDisconnect(nil)
	if got := in.Health().State(time.Now(), time.Hour); got != StateDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", got)
	}
	if tracker.Snapshot().DecodeErrors != 1 || tracker.GetSourceCounts()["TCP"] != 1 {
		t.Fatalf("tracker not updated: %+v", tracker.Snapshot())
	}
}

func TestWebSocketSourceDeliversMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"L_THRUST":`+strconvFloat(float64(i))+`}}`)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	sink := newRecordSink()
	src := NewWebSocketSource("ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	in := NewIngestor(src, nil, sink.submit, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()

	records := sink.waitFor(t, 3)
	for i, rec := range records {
		if rec["L_THRUST"] != float64(i) {
			t.Fatalf("record %d out of order: %v", i, rec)
		}
	}
	if !in.Health().Connected {
		t.Fatalf("expected connected source")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ingestor did not stop")
	}
}

func TestTCPSourceScansLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("{\"data\":{\"T_POST_COMB\":1}}\n\n{\"data\":{\"T_POST_COMB\":2}}\n"))
		_ = conn.Close()
	}()

	sink := newRecordSink()
	in := NewIngestor(NewTCPSource(ln.Addr().String(), TransportNative, time.Second, 0), nil, sink.submit, nil)
	err = NewTCPSource(ln.Addr().String(), TransportNative, time.Second, 0).Run(context.Background(), in)
	if err == nil {
		t.Fatalf("expected an error once the server closed the stream")
	}
	records := sink.waitFor(t, 2)
	if records[0]["T_POST_COMB"] != 1 || records[1]["T_POST_COMB"] != 2 {
		t.Fatalf("unexpected records %v", records)
	}
	if in.Health().Connected {
		t.Fatalf("source should be disconnected after EOF")
	}
}

type flakySource struct {
	mu    sync.Mutex
	calls int
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Run(ctx context.Context, h Handler) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("refused")
}

func (f *flakySource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestIngestorRetriesWithBackoff(t *testing.T) {
	src := &flakySource{}
	tracker := stats.NewTracker()
	in := NewIngestor(src, nil, nil, tracker)
	in.initialDelay = time.Millisecond
	in.maxDelay = 4 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for src.count() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated redials, got %d", src.count())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if tracker.Snapshot().Reconnects < 4 {
		t.Fatalf("expected reconnects to be counted, got %d", tracker.Snapshot().Reconnects)
	}
}

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "instrumon/telemetry" }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTMessageHandlerForwardsPayload(t *testing.T) {
	sink := newRecordSink()
	src := NewMQTTSource(MQTTOptions{Broker: "tcp://127.0.0.1:1", Topic: "instrumon/telemetry"})
	if !strings.HasPrefix(src.clientID, "instrumon-") {
		t.Fatalf("expected generated client id, got %q", src.clientID)
	}
	in := NewIngestor(src, nil, sink.submit, nil)
	src.messageHandler(in)(nil, fakeMessage{payload: []byte(`{"data":{"P_COMB_CHMBR":5}}`)})
	records := sink.waitFor(t, 1)
	if records[0]["P_COMB_CHMBR"] != 5 {
		t.Fatalf("unexpected record %v", records[0])
	}
	if in.Health().Records != 1 {
		t.Fatalf("expected health to count the record")
	}
}
