package ui

import (
	"bytes"
	"io"
	"strconv"
	"sync"
	"time"
)

// lineWriterMaxBytes bounds the partial line kept while waiting for a newline.
const lineWriterMaxBytes = 64 * 1024

// NewLineWriter returns an io.Writer that calls emit once per complete line,
// without the trailing newline. It is safe for concurrent use, which lets it
// back a log.Logger.
func NewLineWriter(emit func(line string)) io.Writer {
	return &lineWriter{emit: emit}
}

type lineWriter struct {
	emit         func(string)
	mu           sync.Mutex
	buf          []byte
	droppedBytes uint64
	lastDropLog  time.Time
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if w == nil || w.emit == nil {
		return len(p), nil
	}
	var lines []string
	var logDrop bool
	var dropBytes, totalDropped uint64

	w.mu.Lock()
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(w.buf[:idx], "\r")))
		w.buf = w.buf[idx+1:]
	}
	if excess := len(w.buf) - lineWriterMaxBytes; excess > 0 {
		w.buf = w.buf[excess:]
		w.droppedBytes += uint64(excess)
		dropBytes, totalDropped = uint64(excess), w.droppedBytes
		now := time.Now()
		if w.lastDropLog.IsZero() || now.Sub(w.lastDropLog) >= 30*time.Second {
			w.lastDropLog = now
			logDrop = true
		}
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.emit(line)
	}
	if logDrop {
		// The standard logger may be writing into w.
		w.emit("UI: line writer dropped " + strconv.FormatUint(dropBytes, 10) + " bytes (total " + strconv.FormatUint(totalDropped, 10) + ") waiting for newline")
	}
	return len(p), nil
}
