package pipeline

import (
	"fmt"

	"instrumon/downsample"
	"instrumon/render"
)

// Op identifies a settings change requested by the display.
type Op int

const (
	OpSetWindow Op = iota
	OpSetMultiplier
	OpSetDivider
	OpSetMethod
	OpSetWidth
	// OpRedraw renders with unchanged settings.
	OpRedraw
)

// Control is one settings update. Only the field matching Op is read.
type Control struct {
	Op     Op
	Int    int
	Float  float64
	Method downsample.Method
}

// SetWindow selects the newest n samples; 0 shows the whole buffer.
func SetWindow(n int) Control { return Control{Op: OpSetWindow, Int: n} }

// SetMultiplier changes the downsample multiplier.
func SetMultiplier(m float64) Control { return Control{Op: OpSetMultiplier, Float: m} }

// SetDivider changes the render divider.
func SetDivider(d int) Control { return Control{Op: OpSetDivider, Int: d} }

// SetMethod changes the reduction method for every channel.
func SetMethod(m downsample.Method) Control { return Control{Op: OpSetMethod, Method: m} }

// SetWidth changes the plot width in columns.
func SetWidth(w int) Control { return Control{Op: OpSetWidth, Int: w} }

// Redraw requests a render without changing anything.
func Redraw() Control { return Control{Op: OpRedraw} }

func (c Control) String() string {
	switch c.Op {
	case OpSetWindow:
		return fmt.Sprintf("window=%d", c.Int)
	case OpSetMultiplier:
		return fmt.Sprintf("multiplier=%.2f", c.Float)
	case OpSetDivider:
		return fmt.Sprintf("divider=%d", c.Int)
	case OpSetMethod:
		return "method=" + c.Method.String()
	case OpSetWidth:
		return fmt.Sprintf("width=%d", c.Int)
	case OpRedraw:
		return "redraw"
	default:
		return fmt.Sprintf("op(%d)", int(c.Op))
	}
}

// apply returns s with c applied. Range checks happen afterwards in
// render.Settings.Clamp.
func (c Control) apply(s render.Settings) render.Settings {
	switch c.Op {
	case OpSetWindow:
		s.WindowLength = c.Int
	case OpSetMultiplier:
		s.Multiplier = c.Float
	case OpSetDivider:
		s.Divider = c.Int
	case OpSetMethod:
		s.Method = c.Method
	case OpSetWidth:
		s.Width = c.Int
	}
	return s
}
