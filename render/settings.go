package render

import (
	"fmt"
	"math"
	"strings"

	"instrumon/downsample"
)

// Width bounds for the plot area, in display columns.
const (
	MinWidth = 8
	MaxWidth = 4096
)

// Settings are the user-adjustable display parameters. The pipeline owns the
// live copy; the UI only proposes changes.
type Settings struct {
	// WindowLength is the number of newest samples to show. 0 means the whole
	// buffer.
	WindowLength int
	// Multiplier scales the downsample factor; 1 gives one min/max pair per
	// column.
	Multiplier float64
	// Divider is the number of batches skipped between renders.
	Divider int
	// Width is the plot width in display columns.
	Width  int
	Method downsample.Method
}

// DefaultSettings shows the full buffer at multiplier 1 and renders every
// eleventh batch.
func DefaultSettings() Settings {
	return Settings{
		WindowLength: 0,
		Multiplier:   1,
		Divider:      10,
		Width:        80,
		Method:       downsample.MinMax,
	}
}

// OutOfRangeError names the fields Clamp had to adjust.
type OutOfRangeError struct {
	Fields []string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("settings out of range, clamped: %s", strings.Join(e.Fields, ", "))
}

// Clamp returns s with every field inside its valid range for a buffer of the
// given capacity. When any field changed it also returns an *OutOfRangeError;
// the returned settings are usable either way.
func (s Settings) Clamp(capacity int) (Settings, error) {
	var fields []string
	if s.WindowLength < 0 {
		s.WindowLength = 0
		fields = append(fields, "window_length")
	} else if capacity > 0 && s.WindowLength > capacity {
		s.WindowLength = capacity
		fields = append(fields, "window_length")
	}
	switch {
	case math.IsNaN(s.Multiplier) || s.Multiplier == 0:
		s.Multiplier = 1
		fields = append(fields, "multiplier")
	case s.Multiplier < downsample.MinMultiplier:
		s.Multiplier = downsample.MinMultiplier
		fields = append(fields, "multiplier")
	case s.Multiplier > downsample.MaxMultiplier:
		s.Multiplier = downsample.MaxMultiplier
		fields = append(fields, "multiplier")
	}
	if d := clampInt(s.Divider, 0, MaxDivider); d != s.Divider {
		s.Divider = d
		fields = append(fields, "divider")
	}
	if w := clampInt(s.Width, MinWidth, MaxWidth); w != s.Width {
		s.Width = w
		fields = append(fields, "width")
	}
	if s.Method != downsample.MinMax && s.Method != downsample.Mean {
		s.Method = downsample.MinMax
		fields = append(fields, "method")
	}
	if len(fields) > 0 {
		return s, &OutOfRangeError{Fields: fields}
	}
	return s, nil
}
