package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"instrumon/config"
)

const (
	logStampLayout  = "2006-01-02 15:04:05.000"
	logDayLayout    = "2006-01-02"
	logFilePrefix   = "instrumon-"
	logFileSuffix   = ".log"
	maxPartialLine  = 16 * 1024
	defaultKeepDays = 7
)

// processLog is the standard logger's output. Complete lines are echoed to
// the console and appended to the current day's session file.
type processLog struct {
	mu      sync.Mutex
	partial []byte
	console io.Writer
	stamp   bool
	files   *sessionFiles
}

// Purpose: Build the process log from config without blocking startup.
// Key aspects: Returns a console-only log when the directory is empty or unusable.
// Upstream: main startup.
// Downstream: openSessionFiles.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*processLog, error) {
	p := &processLog{console: console, stamp: true}
	if strings.TrimSpace(cfg.Dir) == "" {
		return p, nil
	}
	files, err := openSessionFiles(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return p, err
	}
	p.files = files
	return p, nil
}

// SetConsole redirects echoed lines, e.g. to the UI system pane, which stamps
// lines itself. A nil writer silences the console.
func (p *processLog) SetConsole(w io.Writer, stamp bool) {
	p.mu.Lock()
	p.console, p.stamp = w, stamp
	p.mu.Unlock()
}

// SetBanner sets the lines written at the top of every new session file.
func (p *processLog) SetBanner(fn func() []string) {
	if p.files != nil {
		p.files.setBanner(fn)
	}
}

// HasFile reports whether lines are also kept on disk.
func (p *processLog) HasFile() bool {
	return p != nil && p.files != nil
}

// Write implements io.Writer. A partial line waits for its newline unless it
// outgrows maxPartialLine.
func (p *processLog) Write(b []byte) (int, error) {
	p.mu.Lock()
	data := append(p.partial, b...)
	var lines []string
	for {
		line, rest, ok := bytes.Cut(data, []byte{'\n'})
		if !ok {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
		data = rest
	}
	if len(data) > maxPartialLine {
		lines = append(lines, string(data))
		data = nil
	}
	p.partial = append(p.partial[:0], data...)
	console, stamp := p.console, p.stamp
	p.mu.Unlock()

	now := time.Now()
	for _, line := range lines {
		if console != nil {
			if stamp {
				line = stampLine(now, line)
			}
			_, _ = io.WriteString(console, line+"\n")
		}
	}
	for _, line := range lines {
		p.files.write(now, line)
	}
	return len(b), nil
}

// Record writes a block of lines. A quiet block skips the console when a
// session file can hold it, so periodic stats stay out of the system pane.
func (p *processLog) Record(lines []string, quiet bool) {
	if quiet && p.files != nil {
		now := time.Now()
		for _, line := range lines {
			p.files.write(now, line)
		}
		return
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(p, line)
	}
}

func (p *processLog) Close() error {
	if p == nil {
		return nil
	}
	return p.files.close()
}

// sessionFiles appends to one file per UTC day. Opening a day's file writes
// the banner first and prunes files older than keepDays.
type sessionFiles struct {
	mu       sync.Mutex
	dir      string
	keepDays int
	banner   func() []string
	day      string
	f        *os.File
	errAt    time.Time
}

func openSessionFiles(dir string, keepDays int) (*sessionFiles, error) {
	dir = strings.TrimSpace(dir)
	if keepDays <= 0 {
		keepDays = defaultKeepDays
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}
	return &sessionFiles{dir: dir, keepDays: keepDays}, nil
}

func (s *sessionFiles) setBanner(fn func() []string) {
	s.mu.Lock()
	s.banner = fn
	s.mu.Unlock()
}

func (s *sessionFiles) write(now time.Time, line string) {
	if s == nil {
		return
	}
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if day := now.Format(logDayLayout); s.f == nil || day != s.day {
		s.openDayLocked(now, day)
	}
	if s.f == nil {
		return
	}
	if _, err := s.f.WriteString(stampLine(now, line) + "\n"); err != nil {
		s.complainLocked(now, err)
	}
}

func (s *sessionFiles) openDayLocked(now time.Time, day string) {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	path := filepath.Join(s.dir, logFilePrefix+day+logFileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.complainLocked(now, err)
		return
	}
	s.f, s.day = f, day

	var head strings.Builder
	head.WriteString(stampLine(now, fmt.Sprintf("==== session file opened (pid %d) ====", os.Getpid())) + "\n")
	if s.banner != nil {
		for _, line := range s.banner() {
			head.WriteString(stampLine(now, line) + "\n")
		}
	}
	if _, err := f.WriteString(head.String()); err != nil {
		s.complainLocked(now, err)
	}
	if err := pruneSessionFiles(s.dir, now, s.keepDays); err != nil {
		s.complainLocked(now, err)
	}
}

// complainLocked reports file trouble on stderr at most once a minute; the
// console may be the UI, which is itself fed from this log.
func (s *sessionFiles) complainLocked(now time.Time, err error) {
	if !s.errAt.IsZero() && now.Sub(s.errAt) < time.Minute {
		return
	}
	s.errAt = now
	fmt.Fprintf(os.Stderr, "Logging: %s: %v\n", s.dir, err)
}

func (s *sessionFiles) close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f, s.day = nil, ""
	return err
}

func stampLine(now time.Time, line string) string {
	return now.UTC().Format(logStampLayout) + " " + line
}

// sessionFileDay extracts the UTC day from a session file name.
func sessionFileDay(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, logFilePrefix)
	if !ok {
		return time.Time{}, false
	}
	if rest, ok = strings.CutSuffix(rest, logFileSuffix); !ok {
		return time.Time{}, false
	}
	day, err := time.Parse(logDayLayout, rest)
	return day, err == nil
}

// pruneSessionFiles removes session files more than keepDays-1 days before
// today. Other files in dir are left alone.
func pruneSessionFiles(dir string, now time.Time, keepDays int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	y, m, d := now.UTC().Date()
	oldest := time.Date(y, m, d-(keepDays-1), 0, 0, 0, 0, time.UTC)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if day, ok := sessionFileDay(e.Name()); ok && day.Before(oldest) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
