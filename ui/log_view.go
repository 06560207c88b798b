package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// logView draws the tail of an EventRing and lets the operator scroll back.
// Refresh, Draw and HandleScroll run on the UI goroutine only.
type logView struct {
	*tview.Box

	ring   *EventRing
	rows   []StyledEvent
	seq    uint64
	offset int
	follow bool
	color  bool
}

func newLogView(title string, ring *EventRing, color bool) *logView {
	v := &logView{
		Box:    tview.NewBox(),
		ring:   ring,
		follow: true,
		color:  color,
	}
	styleBox(v.Box, title)
	return v
}

// Refresh pulls new events from the ring. It reports whether anything changed.
func (v *logView) Refresh() bool {
	if v.ring.Seq() == v.seq {
		return false
	}
	snap := v.ring.SnapshotInto(v.rows)
	v.rows = snap.Events
	v.seq = snap.Seq
	return true
}

func (v *logView) Draw(screen tcell.Screen) {
	v.Box.DrawForSubclass(screen, v)
	x, y, width, height := v.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	start := v.clampOffset(height)
	for i := 0; i < height && start+i < len(v.rows); i++ {
		e := v.rows[start+i]
		ts := e.Timestamp.Format("15:04:05")
		if v.color {
			line := "[gray]" + ts + " " + e.Kind.colorTag() + tview.Escape(e.Message)
			tview.Print(screen, line, x+1, y+i, width-1, tview.AlignLeft, tcell.ColorWhite)
			continue
		}
		tview.Print(screen, tview.Escape(ts+" "+e.Message), x+1, y+i, width-1, tview.AlignLeft, tcell.ColorWhite)
	}
}

// clampOffset returns the first visible row, pinning to the tail when
// following.
func (v *logView) clampOffset(height int) int {
	maxOffset := len(v.rows) - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if v.follow || v.offset > maxOffset {
		v.offset = maxOffset
	}
	if v.offset < 0 {
		v.offset = 0
	}
	return v.offset
}

// HandleScroll applies PgUp/PgDn/Home/End. It reports whether the key was
// consumed.
func (v *logView) HandleScroll(event *tcell.EventKey) bool {
	if event == nil {
		return false
	}
	_, _, _, height := v.GetInnerRect()
	if height < 1 {
		height = 1
	}
	maxOffset := len(v.rows) - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	next := v.clampOffset(height)
	switch event.Key() {
	case tcell.KeyPgUp:
		next -= height
	case tcell.KeyPgDn:
		next += height
	case tcell.KeyHome:
		next = 0
	case tcell.KeyEnd:
		next = maxOffset
	default:
		return false
	}
	if next < 0 {
		next = 0
	}
	if next > maxOffset {
		next = maxOffset
	}
	v.offset = next
	v.follow = next == maxOffset
	return true
}
