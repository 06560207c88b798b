package ui

import (
	"github.com/gdamore/tcell/v2"

	"instrumon/downsample"
	"instrumon/pipeline"
	"instrumon/render"
)

const (
	multiplierStep = 1.25
	maxPresets     = 9
)

// keyMap turns key presses into pipeline controls relative to the current
// settings.
type keyMap struct {
	// presets are window lengths in samples bound to keys 1..n; 0 selects the
	// whole buffer.
	presets []int
}

func newKeyMap(presetSeconds []int, sampleRate int) keyMap {
	k := keyMap{}
	for i, sec := range presetSeconds {
		if i >= maxPresets {
			break
		}
		k.presets = append(k.presets, sec*sampleRate)
	}
	return k
}

// control returns the control bound to event, if any.
func (k keyMap) control(event *tcell.EventKey, cur render.Settings) (pipeline.Control, bool) {
	if event == nil || event.Key() != tcell.KeyRune {
		return pipeline.Control{}, false
	}
	r := event.Rune()
	switch {
	case r >= '1' && r <= '9':
		idx := int(r - '1')
		if idx >= len(k.presets) {
			return pipeline.Control{}, false
		}
		return pipeline.SetWindow(k.presets[idx]), true
	case r == '+' || r == '=':
		return pipeline.SetMultiplier(min(cur.Multiplier*multiplierStep, downsample.MaxMultiplier)), true
	case r == '-' || r == '_':
		return pipeline.SetMultiplier(max(cur.Multiplier/multiplierStep, downsample.MinMultiplier)), true
	case r == '[':
		return pipeline.SetDivider(cur.Divider / 2), true
	case r == ']':
		next := cur.Divider * 2
		if next == 0 {
			next = 1
		}
		return pipeline.SetDivider(min(next, render.MaxDivider)), true
	case r == 'm':
		if cur.Method == downsample.MinMax {
			return pipeline.SetMethod(downsample.Mean), true
		}
		return pipeline.SetMethod(downsample.MinMax), true
	case r == 'r':
		return pipeline.Redraw(), true
	}
	return pipeline.Control{}, false
}
