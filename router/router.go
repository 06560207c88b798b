// Package router appends decoded telemetry records to the per-channel rings.
// Every record lands in the same slot of every ring, which is what makes
// cross-channel plots line up. A record that does not carry exactly the known
// channel set is rejected before anything is written.
package router

import (
	"math"
	"sort"

	"instrumon/buffer"
	"instrumon/channel"
)

// Record maps wire keys to values already converted to display units.
type Record map[string]float64

// Options tune validation.
type Options struct {
	// AllowUnknown accepts records carrying keys outside the channel set. The
	// extra keys are ignored; missing channels are still rejected.
	AllowUnknown bool
}

// Router owns one ring per channel and the shared write position. It is not
// safe for concurrent use; the pipeline goroutine is its only caller.
type Router struct {
	buffers  [channel.Count]*buffer.ChannelBuffer
	capacity int
	opts     Options
	pos      buffer.Position
	samples  uint64

	scratch [channel.Count]float64
}

// New allocates rings of the given capacity for every channel.
func New(capacity int, opts Options) *Router {
	r := &Router{opts: opts}
	for i := range r.buffers {
		r.buffers[i] = buffer.New(capacity)
	}
	r.capacity = r.buffers[0].Cap()
	return r
}

// Append validates rec and writes one value to every ring. On error the
// record is dropped and no ring is touched.
func (r *Router) Append(rec Record) error {
	if err := r.validate(rec); err != nil {
		return err
	}
	for i := range r.buffers {
		r.buffers[i].Write(r.scratch[i])
	}
	// All rings advance in lockstep; publish the shared position only once
	// every channel holds the new sample.
	r.pos = r.buffers[0].Position()
	r.samples++
	return nil
}

// validate resolves every channel into scratch so Append can write without
// failing halfway.
func (r *Router) validate(rec Record) error {
	var seen [channel.Count]bool
	var malformed *MalformedRecordError
	note := func() *MalformedRecordError {
		if malformed == nil {
			malformed = &MalformedRecordError{}
		}
		return malformed
	}

	for key, value := range rec {
		id, ok := channel.Lookup(key)
		if !ok {
			if !r.opts.AllowUnknown {
				m := note()
				m.Unknown = append(m.Unknown, UnknownField{Name: key, Suggestion: channel.Suggest(key)})
			}
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			m := note()
			m.NonNumeric = append(m.NonNumeric, key)
			continue
		}
		seen[id] = true
		r.scratch[id] = value
	}
	for i, ok := range seen {
		if ok {
			continue
		}
		name := channel.ID(i).Name()
		if v, present := rec[name]; present && (math.IsNaN(v) || math.IsInf(v, 0)) {
			continue
		}
		m := note()
		m.Missing = append(m.Missing, name)
	}
	if malformed == nil {
		return nil
	}
	sort.Strings(malformed.NonNumeric)
	sort.Slice(malformed.Unknown, func(i, j int) bool { return malformed.Unknown[i].Name < malformed.Unknown[j].Name })
	return malformed
}

// Buffer returns the ring for id. The ring must only be read from the
// goroutine that calls Append.
func (r *Router) Buffer(id channel.ID) *buffer.ChannelBuffer {
	if !id.Valid() {
		return nil
	}
	return r.buffers[id]
}

// Position returns the shared write position, identical for every ring.
func (r *Router) Position() buffer.Position {
	return r.pos
}

// Samples returns the number of records accepted so far.
func (r *Router) Samples() uint64 {
	return r.samples
}

// Capacity returns the per-channel ring capacity.
func (r *Router) Capacity() int {
	return r.capacity
}

// SizeKB returns the approximate memory held by all rings.
func (r *Router) SizeKB() int {
	total := 0
	for _, b := range r.buffers {
		total += b.SizeKB()
	}
	return total
}
