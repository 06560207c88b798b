package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	ztelnet "github.com/ziutek/telnet"
)

// TCP transports.
const (
	TransportNative = "native"
	TransportZiutek = "ziutek"
)

// TCPSource reads newline-delimited JSON records from a plain TCP stream.
// The ziutek transport strips telnet option negotiation for nodes that sit
// behind a telnet-style serial bridge.
type TCPSource struct {
	addr        string
	transport   string
	dialTimeout time.Duration
	idleTimeout time.Duration
}

// NewTCPSource dials addr (host:port) with the given transport.
func NewTCPSource(addr, transport string, dialTimeout, idleTimeout time.Duration) *TCPSource {
	transport = strings.ToLower(strings.TrimSpace(transport))
	if transport != TransportZiutek {
		transport = TransportNative
	}
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &TCPSource{addr: addr, transport: transport, dialTimeout: dialTimeout, idleTimeout: idleTimeout}
}

func (s *TCPSource) Name() string {
	return "TCP"
}

// Run dials and scans lines until the stream ends or ctx is done.
func (s *TCPSource) Run(ctx context.Context, h Handler) error {
	var (
		conn   net.Conn
		reader io.Reader
		err    error
	)
	switch s.transport {
	case TransportZiutek:
		var tconn *ztelnet.Conn
		tconn, err = ztelnet.DialTimeout("tcp", s.addr, s.dialTimeout)
		conn, reader = tconn, tconn
	default:
		d := net.Dialer{Timeout: s.dialTimeout}
		conn, err = d.DialContext(ctx, "tcp", s.addr)
		reader = conn
	}
	if err != nil {
		return sessionError(s.Name(), fmt.Errorf("dial %s: %w", s.addr, err))
	}
	h.OnConnect()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	return s.scan(ctx, conn, reader, h)
}

func (s *TCPSource) scan(ctx context.Context, conn net.Conn, r io.Reader, h Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageBytes)
	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		h.OnMessage(line)
	}
	if ctx.Err() != nil {
		return nil
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	h.OnDisconnect(err)
	return sessionError(s.Name(), fmt.Errorf("read: %w", err))
}
