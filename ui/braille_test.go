package ui

import (
	"math"
	"testing"

	"instrumon/downsample"
)

func TestBrailleCanvasDots(t *testing.T) {
	c := newBrailleCanvas(2, 1)
	if c.Width() != 4 || c.Height() != 4 {
		t.Fatalf("unexpected size %dx%d", c.Width(), c.Height())
	}
	if _, ok := c.Cell(0, 0); ok {
		t.Fatalf("new canvas should be blank")
	}
	c.Set(0, 0)
	c.Set(1, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	if r, ok := c.Cell(0, 0); !ok || r != '⢁' {
		t.Fatalf("expected U+2881, got %U", r)
	}
	if _, ok := c.Cell(1, 0); ok {
		t.Fatalf("out-of-range dots must be ignored")
	}
	c.Reset(2, 1)
	if _, ok := c.Cell(0, 0); ok {
		t.Fatalf("Reset should clear the canvas")
	}
}

func TestBrailleCanvasLineIsContinuous(t *testing.T) {
	c := newBrailleCanvas(10, 2)
	c.Line(0, 7, 19, 0)
	for col := 0; col < 10; col++ {
		lit := false
		for row := 0; row < 2; row++ {
			if _, ok := c.Cell(col, row); ok {
				lit = true
			}
		}
		if !lit {
			t.Fatalf("column %d has a gap", col)
		}
	}
}

func TestBrailleCanvasPlotMapsExtremes(t *testing.T) {
	c := newBrailleCanvas(5, 2)
	points := []downsample.Point{{X: 0, Y: 0}, {X: 99, Y: 10}}
	c.Plot(points, 100, 0, 10)

	// Y=0 lands on the bottom dot row, Y=10 on the top one.
	if r, ok := c.Cell(0, 1); !ok || r&0x40 == 0 {
		t.Fatalf("expected bottom-left dot, got %U", r)
	}
	if r, ok := c.Cell(4, 0); !ok || r&0x08 == 0 {
		t.Fatalf("expected top-right dot, got %U", r)
	}
}

func TestBrailleCanvasPlotSkipsNaN(t *testing.T) {
	c := newBrailleCanvas(4, 1)
	points := []downsample.Point{{X: 0, Y: 1}, {X: 1, Y: math.NaN()}, {X: 3, Y: 1}}
	c.Plot(points, 4, 0, 2)
	// Without the NaN break the trace would fill the middle columns.
	if _, ok := c.Cell(1, 0); ok {
		t.Fatalf("NaN should break the trace")
	}
	if _, ok := c.Cell(0, 0); !ok {
		t.Fatalf("expected first point")
	}
	if _, ok := c.Cell(3, 0); !ok {
		t.Fatalf("expected last point")
	}
}

func TestBrailleCanvasFlatSeriesCentered(t *testing.T) {
	c := newBrailleCanvas(1, 2)
	c.Plot([]downsample.Point{{X: 0, Y: 5}}, 1, 5, 5)
	if _, ok := c.Cell(0, 1); !ok {
		t.Fatalf("flat series should be drawn mid-height")
	}
}
