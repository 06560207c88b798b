package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWebSocketURL is where the instrumentation node serves telemetry.
const DefaultWebSocketURL = "ws://localhost:8888/websocket"

// maxMessageBytes bounds one telemetry message; real records are well under
// a kilobyte.
const maxMessageBytes = 64 * 1024

// WebSocketSource reads one JSON record per text message.
type WebSocketSource struct {
	url         string
	dialTimeout time.Duration
	dialer      *websocket.Dialer
}

// NewWebSocketSource dials url on every session.
func NewWebSocketSource(url string, dialTimeout time.Duration) *WebSocketSource {
	if url == "" {
		url = DefaultWebSocketURL
	}
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &WebSocketSource{
		url:         url,
		dialTimeout: dialTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
			ReadBufferSize:   16 * 1024,
		},
	}
}

func (s *WebSocketSource) Name() string {
	return "WebSocket"
}

// Run dials the server and reads until the connection drops or ctx ends.
func (s *WebSocketSource) Run(ctx context.Context, h Handler) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	conn, _, err := s.dialer.DialContext(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return sessionError(s.Name(), fmt.Errorf("dial %s: %w", s.url, err))
	}
	conn.SetReadLimit(maxMessageBytes)
	h.OnConnect()

	stop := context.AfterFunc(ctx, func() {
		// Closing unblocks ReadMessage; the server is not told.
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.OnDisconnect(err)
			return sessionError(s.Name(), fmt.Errorf("read: %w", err))
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		h.OnMessage(payload)
	}
}
