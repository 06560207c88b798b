// mocksource serves synthetic instrumentation telemetry so the client can be
// exercised without the test stand. It speaks the node's WebSocket endpoint
// and can also serve newline-delimited JSON over TCP or publish to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
)

const (
	tickInterval     = 10 * time.Millisecond
	subscriberBuffer = 4096
)

func main() {
	var (
		wsAddr     = flag.String("ws", ":8888", "WebSocket listen address (serves /websocket); empty disables")
		tcpAddr    = flag.String("tcp", "", "TCP line server listen address; empty disables")
		mqttBroker = flag.String("mqtt-broker", "", "MQTT broker to publish to, e.g. tcp://localhost:1883")
		mqttTopic  = flag.String("mqtt-topic", "instrumon/telemetry", "MQTT topic")
		rate       = flag.Int("rate", 1000, "samples per second")
		seed       = flag.Uint64("seed", 1, "noise seed")
	)
	flag.Parse()
	if *rate <= 0 {
		log.Fatalf("rate must be >0 (got %d)", *rate)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := newHub()
	var wg sync.WaitGroup
	if *wsAddr != "" {
		srv := &http.Server{Addr: *wsAddr, Handler: h.routes(), ReadHeaderTimeout: 5 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("mocksource: WebSocket on ws://%s/websocket", *wsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("mocksource: websocket server: %v", err)
				stop()
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	if *tcpAddr != "" {
		ln, err := net.Listen("tcp", *tcpAddr)
		if err != nil {
			log.Fatalf("mocksource: tcp listen: %v", err)
		}
		log.Printf("mocksource: TCP lines on %s", ln.Addr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.serveTCP(ctx, ln)
		}()
	}
	if *mqttBroker != "" {
		client := mqtt.NewClient(mqtt.NewClientOptions().
			AddBroker(*mqttBroker).
			SetClientID("instrumon-mocksource").
			SetAutoReconnect(true))
		tok := client.Connect()
		if !tok.WaitTimeout(10 * time.Second) {
			log.Fatalf("mocksource: mqtt connect to %s timed out", *mqttBroker)
		}
		if err := tok.Error(); err != nil {
			log.Fatalf("mocksource: mqtt connect: %v", err)
		}
		defer client.Disconnect(250)
		log.Printf("mocksource: publishing to %s topic %s", *mqttBroker, *mqttTopic)
		ch := h.subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer h.unsubscribe(ch)
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-ch:
					client.Publish(*mqttTopic, 0, false, payload)
				}
			}
		}()
	}

	h.produce(ctx, newGenerator(*rate, *seed), *rate)
	wg.Wait()
	log.Printf("mocksource: stopped after %d samples (%d dropped for slow clients)", h.sent.Load(), h.dropped.Load())
}

// hub fans generated payloads out to every connected client. A client that
// cannot keep up loses samples rather than stalling the others.
type hub struct {
	mu      sync.Mutex
	subs    map[chan []byte]struct{}
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func newHub() *hub {
	return &hub{subs: make(map[chan []byte]struct{})}
}

func (h *hub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent.Add(1)
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.dropped.Add(1)
		}
	}
}

// produce emits rate samples per second in tickInterval batches until ctx
// is done.
func (h *hub) produce(ctx context.Context, g *generator, rate int) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	start := time.Now()
	var emitted int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due := int64(now.Sub(start).Seconds() * float64(rate))
			for ; emitted < due; emitted++ {
				payload, err := g.encode()
				if err != nil {
					log.Printf("mocksource: encode: %v", err)
					continue
				}
				h.broadcast(payload)
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (h *hub) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", h.serveWebSocket)
	return mux
}

func (h *hub) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mocksource: upgrade: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("mocksource: websocket client %s connected", r.RemoteAddr)
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-gone:
			log.Printf("mocksource: websocket client %s disconnected", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case payload := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("mocksource: websocket client %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

func (h *hub) serveTCP(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("mocksource: tcp accept: %v", err)
			}
			return
		}
		go h.serveTCPConn(ctx, conn)
	}
}

func (h *hub) serveTCPConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	ch := h.subscribe()
	defer h.unsubscribe(ch)
	log.Printf("mocksource: tcp client %s connected", conn.RemoteAddr())
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			line := make([]byte, len(payload)+1)
			copy(line, payload)
			line[len(payload)] = '\n'
			if _, err := conn.Write(line); err != nil {
				log.Printf("mocksource: tcp client %s: %v", conn.RemoteAddr(), err)
				return
			}
		}
	}
}
