package ui

import (
	"math"
	"strings"
)

var sparks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws values as a single row of block characters, resampled to
// at most width columns. Flat series render at mid height.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	values = resample(values, width)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	top := len(sparks) - 1
	for _, v := range values {
		idx := top / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		b.WriteRune(sparks[idx])
	}
	return b.String()
}

// Chart renders a sparkline colored by the direction of the whole series.
func Chart(values []float64, width int) string {
	line := Sparkline(values, width)
	if len(values) < 2 {
		return NeutralStyle.Render(line)
	}
	if values[len(values)-1] >= values[0] {
		return PositiveStyle.Render(line)
	}
	return NegativeStyle.Render(line)
}

// resample keeps the last point and picks evenly spaced points before it.
func resample(values []float64, width int) []float64 {
	if len(values) <= width {
		return values
	}
	if width == 1 {
		return values[len(values)-1:]
	}
	out := make([]float64, width)
	step := float64(len(values)-1) / float64(width-1)
	for i := range out {
		out[i] = values[int(math.Round(float64(i)*step))]
	}
	return out
}
