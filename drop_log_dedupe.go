package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"instrumon/router"
)

const defaultDropLogDedupeMaxKeys = 512

// dropLogDeduper collapses repeated rejection lines. The first line for a key
// is emitted; repeats within the window are counted and reported with the
// next emitted line.
type dropLogDeduper struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	now     func() time.Time
	entries map[uint64]dropLogDedupeEntry
}

type dropLogDedupeEntry struct {
	nextEmit   time.Time
	lastSeen   time.Time
	suppressed uint64
}

// newDropLogDeduper returns nil, which passes every line through, when the
// window or key budget is not positive.
func newDropLogDeduper(window time.Duration, maxKeys int) *dropLogDeduper {
	if window <= 0 || maxKeys <= 0 {
		return nil
	}
	return &dropLogDeduper{
		window:  window,
		maxKeys: maxKeys,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[uint64]dropLogDedupeEntry, maxKeys),
	}
}

// Process reports whether line should be logged now, and the text to log.
func (d *dropLogDeduper) Process(key, line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if d == nil || key == "" {
		return line, true
	}
	h := xxh3.HashString(key)
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, found := d.entries[h]
	if !found {
		d.evictOneIfNeededLocked()
		d.entries[h] = dropLogDedupeEntry{nextEmit: now.Add(d.window), lastSeen: now}
		return line, true
	}
	entry.lastSeen = now
	if now.Before(entry.nextEmit) {
		entry.suppressed++
		d.entries[h] = entry
		return "", false
	}
	suppressed := entry.suppressed
	entry.suppressed = 0
	entry.nextEmit = now.Add(d.window)
	d.entries[h] = entry
	if suppressed > 0 {
		line = fmt.Sprintf("%s (suppressed=%d over %s)", line, suppressed, d.window)
	}
	return line, true
}

func (d *dropLogDeduper) evictOneIfNeededLocked() {
	if len(d.entries) < d.maxKeys {
		return
	}
	var oldestKey uint64
	var oldestSeen time.Time
	haveOldest := false
	for key, entry := range d.entries {
		if !haveOldest || entry.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen, haveOldest = key, entry.lastSeen, true
		}
	}
	if haveOldest {
		delete(d.entries, oldestKey)
	}
}

// malformedDedupeKey identifies a rejected record by the shape of its
// failure, so a sender repeating the same mistake produces one key.
func malformedDedupeKey(err error) string {
	var malformed *router.MalformedRecordError
	if !errors.As(err, &malformed) {
		return "other:" + err.Error()
	}
	fields := make([]string, 0, len(malformed.Missing)+len(malformed.NonNumeric)+len(malformed.Unknown))
	fields = append(fields, malformed.Missing...)
	fields = append(fields, malformed.NonNumeric...)
	for _, u := range malformed.Unknown {
		fields = append(fields, u.Name)
	}
	slices.Sort(fields)
	return malformed.Reason() + ":" + strings.Join(fields, ",")
}

// decodeDedupeKey groups decode failures per source.
func decodeDedupeKey(source string) string {
	return "decode:" + source
}
