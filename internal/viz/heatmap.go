package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/phasecube/internal/lattice"
)

// shades is the uncolored fallback ramp.
const shades = " .:-=+*#%@"

// rampIndex maps v in [0,1] onto one of n levels.
func rampIndex(v float64, n int) int {
	idx := int(lattice.Clamp01(v) * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Heatmap renders an n×n row-major slice, two columns per cell. Rows are
// drawn with y increasing downward.
func Heatmap(slice []float64, n int, theme Theme, color bool) string {
	var b strings.Builder
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := 0.0
			if i := y*n + x; i < len(slice) {
				v = slice[i]
			}
			if color && len(theme.Ramp) > 0 {
				c := theme.Ramp[rampIndex(v, len(theme.Ramp))]
				b.WriteString(lipgloss.NewStyle().Foreground(c).Render("██"))
			} else {
				ch := shades[rampIndex(v, len(shades))]
				b.WriteByte(ch)
				b.WriteByte(ch)
			}
		}
		if y < n-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Gauge renders v's position within [lo,hi] as a bar of width cells.
func Gauge(v, lo, hi float64, width int) string {
	frac := 0.0
	if hi > lo {
		frac = lattice.Clamp01((v - lo) / (hi - lo))
	}
	filled := int(frac*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Sparkline renders the last width values scaled to their own range.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	var b strings.Builder
	for _, v := range values {
		b.WriteRune(chars[rampIndex((v-lo)/span, len(chars))])
	}
	return b.String()
}
