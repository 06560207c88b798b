package main

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
)

// gcPauseWindow tracks GC pauses between stats ticks.
// Ownership: the stats loop owns the instance and calls snapshot serially.
type gcPauseWindow struct {
	lastNumGC   uint32
	initialized bool
	scratch     []uint64
}

// snapshot returns the p99 pause for GCs since the previous call and how many
// pauses it considered. When more GCs ran than the runtime's pause ring holds,
// only the newest are used and truncated is set.
func (w *gcPauseWindow) snapshot(mem *runtime.MemStats) (p99 time.Duration, count int, truncated bool) {
	if mem == nil {
		return 0, 0, false
	}
	if !w.initialized {
		w.lastNumGC = mem.NumGC
		w.initialized = true
		return 0, 0, false
	}
	if mem.NumGC <= w.lastNumGC {
		// No new GCs, or a MemStats older than the last one seen.
		w.lastNumGC = mem.NumGC
		return 0, 0, false
	}
	ringLen := len(mem.PauseNs)
	if ringLen == 0 {
		w.lastNumGC = mem.NumGC
		return 0, 0, false
	}
	diff := mem.NumGC - w.lastNumGC
	w.lastNumGC = mem.NumGC
	if diff > uint32(ringLen) {
		diff = uint32(ringLen)
		truncated = true
	}
	delta := int(diff)
	pauses := w.scratch[:0]
	for i := 0; i < delta; i++ {
		// PauseNs[(NumGC+255)%256] is the most recent pause.
		idx := (int(mem.NumGC) - 1 - i + ringLen*2) % ringLen
		if v := mem.PauseNs[idx]; v > 0 {
			pauses = append(pauses, v)
		}
	}
	w.scratch = pauses
	if len(pauses) == 0 {
		return 0, 0, truncated
	}
	slices.Sort(pauses)
	return time.Duration(pauses[int(float64(len(pauses)-1)*0.99)]), len(pauses), truncated
}

// runtimeStatsLine summarises heap and GC for the periodic stats log.
func runtimeStatsLine(mem *runtime.MemStats, w *gcPauseWindow) string {
	p99, count, truncated := w.snapshot(mem)
	gc := "gc_p99=n/a"
	if count > 0 {
		gc = fmt.Sprintf("gc_p99=%s over %d", p99, count)
		if truncated {
			gc += "+"
		}
	}
	return fmt.Sprintf("Runtime: heap=%s sys=%s goroutines=%d gc=%d %s",
		humanize.IBytes(mem.HeapAlloc),
		humanize.IBytes(mem.Sys),
		runtime.NumGoroutine(),
		mem.NumGC,
		gc)
}
