package ui

import (
	"math"

	"instrumon/downsample"
)

// brailleCanvas is a dot matrix backed by Unicode braille cells: every
// terminal cell holds 2x4 dots, so a plot gets twice the horizontal and four
// times the vertical resolution of plain characters.
type brailleCanvas struct {
	cols  int
	rows  int
	cells []uint8
}

// Dot bits per (x, y) position inside one cell.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

const brailleBase = 0x2800

func newBrailleCanvas(cols, rows int) *brailleCanvas {
	c := &brailleCanvas{}
	c.Reset(cols, rows)
	return c
}

// Reset clears the canvas and resizes it, reusing storage when possible.
func (c *brailleCanvas) Reset(cols, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	c.cols, c.rows = cols, rows
	n := cols * rows
	if cap(c.cells) < n {
		c.cells = make([]uint8, n)
		return
	}
	c.cells = c.cells[:n]
	for i := range c.cells {
		c.cells[i] = 0
	}
}

// Width and Height are in dots.
func (c *brailleCanvas) Width() int  { return c.cols * 2 }
func (c *brailleCanvas) Height() int { return c.rows * 4 }

// Set turns on the dot at (x, y); (0, 0) is top left. Out-of-range dots are
// ignored.
func (c *brailleCanvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= c.Width() || y >= c.Height() {
		return
	}
	c.cells[(y/4)*c.cols+x/2] |= brailleBits[x%2][y%4]
}

// Line draws a straight segment between two dots.
func (c *brailleCanvas) Line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Cell returns the rune for a cell and whether any dot in it is set.
func (c *brailleCanvas) Cell(col, row int) (rune, bool) {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return ' ', false
	}
	bits := c.cells[row*c.cols+col]
	if bits == 0 {
		return ' ', false
	}
	return rune(brailleBase + int(bits)), true
}

// Plot draws points as a connected trace. X spans [0, span-1] across the
// canvas width; Y spans [lo, hi] bottom to top. NaN values break the trace.
func (c *brailleCanvas) Plot(points []downsample.Point, span int, lo, hi float64) {
	w, h := c.Width(), c.Height()
	if w == 0 || h == 0 || len(points) == 0 {
		return
	}
	xScale := 0.0
	if span > 1 {
		xScale = float64(w-1) / float64(span-1)
	}
	yRange := hi - lo
	prevOK := false
	var px, py int
	for _, p := range points {
		if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			prevOK = false
			continue
		}
		x := w - 1
		if span > 1 {
			x = int(math.Round(p.X * xScale))
		}
		y := h / 2
		if yRange > 0 {
			y = (h - 1) - int(math.Round((p.Y-lo)/yRange*float64(h-1)))
		}
		if prevOK {
			c.Line(px, py, x, y)
		} else {
			c.Set(x, y)
		}
		px, py, prevOK = x, y, true
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
