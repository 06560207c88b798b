// Package downsample reduces a window of samples to a bounded number of
// display points so plot cost depends on display width, not window length.
package downsample

import (
	"fmt"
	"math"
	"strings"

	"instrumon/buffer"
)

// Point is one plotted vertex. X is the sample offset from the start of the
// window the point was reduced from.
type Point struct {
	X float64
	Y float64
}

// Method selects the bucket reduction rule. One method is applied to every
// channel of a frame.
type Method int

const (
	// MinMax emits each bucket's minimum and maximum in the order they occur,
	// so a one-sample spike survives any amount of reduction.
	MinMax Method = iota
	// Mean emits each bucket's arithmetic mean at the bucket centre. Spikes
	// narrower than a bucket are attenuated.
	Mean
)

func (m Method) String() string {
	switch m {
	case MinMax:
		return "minmax"
	case Mean:
		return "mean"
	default:
		return "unknown"
	}
}

// ParseMethod maps a config string to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minmax", "min-max", "peak":
		return MinMax, nil
	case "mean", "average":
		return Mean, nil
	default:
		return MinMax, fmt.Errorf("unknown downsample method %q", s)
	}
}

// Reduce appends at most target points describing w to dst[:0] and returns
// the result. When the window already fits, every sample is emitted
// unchanged. The output length is always min(w.Len(), target). Reduce makes a
// single pass over w and allocates only when dst is too small.
func Reduce(dst []Point, w buffer.Window, target int, method Method) []Point {
	dst = dst[:0]
	n := w.Len()
	if n == 0 || target <= 0 {
		return dst
	}
	if n <= target {
		dst = grow(dst, n)
		for i, v := range w.Older {
			dst = append(dst, Point{X: float64(i), Y: v})
		}
		off := len(w.Older)
		for i, v := range w.Newer {
			dst = append(dst, Point{X: float64(off + i), Y: v})
		}
		return dst
	}
	dst = grow(dst, target)
	switch method {
	case Mean:
		return reduceMean(dst, w, n, target)
	default:
		return reduceMinMax(dst, w, n, target)
	}
}

// reduceMinMax splits the window into target/2 buckets; an odd target leaves
// room for the newest sample, which is appended last.
func reduceMinMax(dst []Point, w buffer.Window, n, target int) []Point {
	buckets := target / 2
	it := newCursor(w)
	for b := 0; b < buckets; b++ {
		lo, hi := bucketBounds(b, buckets, n)
		minIdx, maxIdx := lo, lo
		minV := it.next()
		maxV := minV
		for i := lo + 1; i < hi; i++ {
			v := it.next()
			if v < minV {
				minV, minIdx = v, i
			}
			if v > maxV {
				maxV, maxIdx = v, i
			}
		}
		if minIdx <= maxIdx {
			dst = append(dst, Point{X: float64(minIdx), Y: minV}, Point{X: float64(maxIdx), Y: maxV})
		} else {
			dst = append(dst, Point{X: float64(maxIdx), Y: maxV}, Point{X: float64(minIdx), Y: minV})
		}
	}
	if target%2 == 1 {
		dst = append(dst, Point{X: float64(n - 1), Y: w.At(n - 1)})
	}
	return dst
}

func reduceMean(dst []Point, w buffer.Window, n, target int) []Point {
	it := newCursor(w)
	for b := 0; b < target; b++ {
		lo, hi := bucketBounds(b, target, n)
		sum := 0.0
		for i := lo; i < hi; i++ {
			sum += it.next()
		}
		count := hi - lo
		dst = append(dst, Point{X: float64(lo) + float64(count-1)/2, Y: sum / float64(count)})
	}
	return dst
}

// bucketBounds returns the half-open sample range of bucket b out of buckets
// over n samples. Buckets tile [0, n) and differ in size by at most one. The
// caller guarantees n > buckets, so no bucket is empty.
func bucketBounds(b, buckets, n int) (int, int) {
	lo := b * n / buckets
	hi := (b + 1) * n / buckets
	return lo, hi
}

func grow(dst []Point, n int) []Point {
	if cap(dst) < n {
		return make([]Point, 0, n)
	}
	return dst
}

// cursor walks the two views of a window in order without copying.
type cursor struct {
	w   buffer.Window
	seg []float64
	idx int
	two bool
}

func newCursor(w buffer.Window) cursor {
	return cursor{w: w, seg: w.Older}
}

func (c *cursor) next() float64 {
	for c.idx >= len(c.seg) {
		if c.two {
			return math.NaN()
		}
		c.seg = c.w.Newer
		c.idx = 0
		c.two = true
	}
	v := c.seg[c.idx]
	c.idx++
	return v
}
