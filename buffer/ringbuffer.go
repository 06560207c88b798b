// Package buffer provides the fixed-capacity sample ring that backs each
// telemetry channel, plus window extraction over it. A ring is owned by a
// single goroutine (the pipeline); nothing in this package locks, so callers
// must not share a ring across goroutines without their own hand-off.
package buffer

import "unsafe"

// Position is a snapshot of a ring's write state. Index is the next slot to be
// written; Written counts every sample ever written and is what distinguishes
// real data from the zero fill before the first wrap.
type Position struct {
	Index   int
	Written uint64
}

// ChannelBuffer is a circular store of float64 samples for one channel.
// Storage is allocated once and never resized.
type ChannelBuffer struct {
	storage    []float64
	writeIndex int
	written    uint64
}

// New allocates a ring with the given capacity. Capacity below 1 is clamped
// to 1 so Write never divides by zero.
func New(capacity int) *ChannelBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelBuffer{storage: make([]float64, capacity)}
}

// Write overwrites the slot at the write index and advances it, wrapping to
// zero after the last slot. O(1), no allocation.
func (b *ChannelBuffer) Write(v float64) {
	b.storage[b.writeIndex] = v
	b.writeIndex++
	if b.writeIndex == len(b.storage) {
		b.writeIndex = 0
	}
	b.written++
}

// Cap returns the fixed capacity.
func (b *ChannelBuffer) Cap() int {
	return len(b.storage)
}

// Len returns the number of live samples (at most Cap).
func (b *ChannelBuffer) Len() int {
	if b.written >= uint64(len(b.storage)) {
		return len(b.storage)
	}
	return int(b.written)
}

// Wrapped reports whether at least one full pass over storage has completed.
func (b *ChannelBuffer) Wrapped() bool {
	return b.written >= uint64(len(b.storage))
}

// Position returns the current write position.
func (b *ChannelBuffer) Position() Position {
	return Position{Index: b.writeIndex, Written: b.written}
}

// Latest returns the newest sample, or false if nothing was written yet.
func (b *ChannelBuffer) Latest() (float64, bool) {
	if b.written == 0 {
		return 0, false
	}
	idx := b.writeIndex - 1
	if idx < 0 {
		idx = len(b.storage) - 1
	}
	return b.storage[idx], true
}

// SizeKB returns the approximate memory held by the ring's storage.
func (b *ChannelBuffer) SizeKB() int {
	return len(b.storage) * int(unsafe.Sizeof(float64(0))) / 1024
}
