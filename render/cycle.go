package render

import (
	"math"
	"time"

	"instrumon/buffer"
	"instrumon/channel"
	"instrumon/downsample"
	"instrumon/router"
)

// Series is one channel's reduced trace.
type Series struct {
	Channel channel.ID
	Points  []downsample.Point
	// MinY and MaxY bound Points; both are NaN when Points is empty.
	MinY float64
	MaxY float64
	// Latest is the newest raw sample, valid when HasLatest is set.
	Latest    float64
	HasLatest bool
}

// Frame is the complete state of one render. Frames are built fresh and are
// never modified after Build returns, so the display may hold one for as long
// as it likes.
type Frame struct {
	Generation uint64
	At         time.Time
	Settings   Settings
	// Samples is the number of samples each series was reduced from.
	Samples int
	// Written is the total accepted record count at render time.
	Written uint64
	Config  downsample.Config
	Series  [channel.Count]Series
}

// Span returns the frame's window duration for the given sample rate.
func (f Frame) Span(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples) * time.Second / time.Duration(sampleRate)
}

// Cycle turns the router's rings into frames.
type Cycle struct {
	router     *router.Router
	generation uint64
	now        func() time.Time
}

// NewCycle builds frames from r.
func NewCycle(r *router.Router) *Cycle {
	return &Cycle{router: r, now: time.Now}
}

// Build extracts the configured window from every channel at one shared
// position, reduces each to the target resolution and returns the frame.
func (c *Cycle) Build(s Settings) Frame {
	pos := c.router.Position()
	c.generation++
	frame := Frame{
		Generation: c.generation,
		At:         c.now(),
		Settings:   s,
		Written:    pos.Written,
	}
	for i := 0; i < channel.Count; i++ {
		id := channel.ID(i)
		ring := c.router.Buffer(id)
		w := buffer.Extract(ring, s.WindowLength, pos)
		if i == 0 {
			frame.Samples = w.Len()
			frame.Config = downsample.ComputeConfig(w.Len(), s.Width, s.Multiplier)
		}
		series := Series{Channel: id, MinY: math.NaN(), MaxY: math.NaN()}
		if w.Len() > 0 {
			series.Points = downsample.Reduce(nil, w, frame.Config.TargetResolution, s.Method)
			series.Latest = w.At(w.Len() - 1)
			series.HasLatest = true
			series.MinY, series.MaxY = bounds(series.Points)
		}
		frame.Series[i] = series
	}
	return frame
}

// Generation returns the number of frames built so far.
func (c *Cycle) Generation() uint64 {
	return c.generation
}

func bounds(points []downsample.Point) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if p.Y < lo {
			lo = p.Y
		}
		if p.Y > hi {
			hi = p.Y
		}
	}
	return lo, hi
}
