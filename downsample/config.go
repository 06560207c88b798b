package downsample

// Config is the reduction applied to one window at one display width.
type Config struct {
	// Factor is the number of samples merged into one output point.
	Factor int
	// TargetResolution is the number of output points.
	TargetResolution int
}

// ComputeConfig derives the reduction for a window of samples drawn into a
// plot width columns wide. A multiplier of 1 yields two points per column,
// one min/max pair; larger multipliers reduce more aggressively. Non-positive
// inputs are treated as their smallest valid value.
func ComputeConfig(samples, width int, multiplier float64) Config {
	if samples < 0 {
		samples = 0
	}
	if width < 1 {
		width = 1
	}
	if !(multiplier > 0) {
		multiplier = MinMultiplier
	}
	factor := int(multiplier * float64(samples) / float64(2*width))
	if factor < 1 {
		factor = 1
	}
	target := (samples + factor - 1) / factor
	return Config{Factor: factor, TargetResolution: target}
}

// Multiplier bounds. The lower bound keeps the point count finite for any
// width; the upper bound still leaves a visible trace on a narrow plot.
const (
	MinMultiplier = 0.1
	MaxMultiplier = 10.0
)
