package ui

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"instrumon/channel"
	"instrumon/render"
)

// Width of the y-axis label gutter, in columns.
const plotLabelWidth = 9

var plotColors = [...]tcell.Color{
	tcell.ColorAqua,
	tcell.ColorLime,
	tcell.ColorYellow,
	tcell.ColorFuchsia,
	tcell.ColorOrange,
}

// plotView draws one channel's series as a braille trace with min/max labels.
// setSeries and Draw run on the UI goroutine.
type plotView struct {
	*tview.Box

	info    channel.Info
	series  render.Series
	samples int
	canvas  *brailleCanvas
	style   tcell.Style
	// onResize is told the trace width in columns after every layout change.
	onResize func(cols int)
	cols     int
}

func newPlotView(id channel.ID, color bool) *plotView {
	info := id.Info()
	p := &plotView{
		Box:    tview.NewBox(),
		info:   info,
		canvas: newBrailleCanvas(0, 0),
		style:  tcell.StyleDefault,
	}
	if color {
		p.style = p.style.Foreground(plotColors[int(id)%len(plotColors)])
	}
	p.series.MinY, p.series.MaxY = math.NaN(), math.NaN()
	styleBox(p.Box, plotTitle(info, p.series))
	return p
}

func (p *plotView) setSeries(s render.Series, samples int) {
	p.series = s
	p.samples = samples
	p.SetTitle(accentText(plotTitle(p.info, s)))
}

func plotTitle(info channel.Info, s render.Series) string {
	title := info.Title + " (" + info.Unit + ")"
	if s.HasLatest {
		title += "  " + FormatValue(s.Latest, info.Unit)
	}
	return title
}

func (p *plotView) Draw(screen tcell.Screen) {
	p.Box.DrawForSubclass(screen, p)
	x, y, width, height := p.GetInnerRect()
	cols := width - plotLabelWidth
	if cols <= 0 || height <= 0 {
		return
	}
	if cols != p.cols {
		p.cols = cols
		if p.onResize != nil {
			p.onResize(cols)
		}
	}

	lo, hi := p.series.MinY, p.series.MaxY
	if math.IsNaN(lo) || math.IsNaN(hi) {
		tview.Print(screen, "[gray]no data", x+plotLabelWidth, y+height/2, cols, tview.AlignCenter, tcell.ColorGray)
		return
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	tview.Print(screen, tview.Escape(FormatValue(hi, "")), x, y, plotLabelWidth-1, tview.AlignRight, tcell.ColorGray)
	if height > 1 {
		tview.Print(screen, tview.Escape(FormatValue(lo, "")), x, y+height-1, plotLabelWidth-1, tview.AlignRight, tcell.ColorGray)
	}

	p.canvas.Reset(cols, height)
	p.canvas.Plot(p.series.Points, p.samples, lo, hi)
	for row := 0; row < height; row++ {
		for col := 0; col < cols; col++ {
			if r, ok := p.canvas.Cell(col, row); ok {
				screen.SetContent(x+plotLabelWidth+col, y+row, r, nil, p.style)
			}
		}
	}
}

// plotLayout is the order plots are arranged in: the run tank pressure spans
// the top row, the run tank mass the bottom row, and the rest fill a
// two-column grid between them.
func plotLayout() (top channel.ID, grid []channel.ID, bottom channel.ID) {
	top, bottom = channel.RunTankPressure, channel.RunTankMass
	for _, info := range channel.All() {
		if info.ID != top && info.ID != bottom {
			grid = append(grid, info.ID)
		}
	}
	return top, grid, bottom
}
