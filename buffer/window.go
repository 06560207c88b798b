package buffer

// Window is an ordered, oldest-to-newest view of the most recent samples of a
// ring. It aliases ring storage: Older is read before Newer, and either may be
// empty. A Window is only valid until the next Write on the ring it came from.
type Window struct {
	Older []float64
	Newer []float64
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return len(w.Older) + len(w.Newer)
}

// At returns the i-th sample, counting from the oldest.
func (w Window) At(i int) float64 {
	if i < len(w.Older) {
		return w.Older[i]
	}
	return w.Newer[i-len(w.Older)]
}

// AppendTo appends the window's samples to dst in order and returns it.
func (w Window) AppendTo(dst []float64) []float64 {
	dst = append(dst, w.Older...)
	return append(dst, w.Newer...)
}

// Extract returns the last length samples of b that end just before pos.Index.
// A length of 0, or one at or above capacity, selects every live sample. The
// result never includes slots that were not written yet: pos.Written bounds
// it before the first wrap. At most two contiguous views are returned and no
// samples are copied.
func Extract(b *ChannelBuffer, length int, pos Position) Window {
	capacity := len(b.storage)
	if capacity == 0 || pos.Written == 0 {
		return Window{}
	}
	live := capacity
	if pos.Written < uint64(capacity) {
		live = int(pos.Written)
	}
	n := length
	if n <= 0 || n > live {
		n = live
	}

	end := pos.Index
	if end < 0 || end >= capacity {
		end = 0
	}
	start := end - n
	if start >= 0 {
		return Window{Newer: b.storage[start:end]}
	}
	// Wraparound: the tail of storage holds the older part.
	return Window{
		Older: b.storage[capacity+start:],
		Newer: b.storage[:end],
	}
}

// ExtractLatest is Extract at the ring's own current position.
func ExtractLatest(b *ChannelBuffer, length int) Window {
	return Extract(b, length, b.Position())
}
