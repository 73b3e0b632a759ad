package export

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Series is one named line of a trace plot.
type Series struct {
	Name   string
	Values []float64
	Color  string
}

var palette = []string{"#00ff9c", "#ffb000", "#4fc3f7", "#ff5370", "#c792ea", "#f5f5f5"}

// thermal ramp used for slice cells, cold to hot.
var ramp = []string{"#000004", "#320a5e", "#781c6d", "#bc3754", "#ed6925", "#fbb61a", "#fcffa4"}

// TraceToSVG draws each series as a polyline sharing one y range. Series
// with fewer than two points are skipped. It returns an empty string when
// nothing can be drawn.
func TraceToSVG(series []Series, width, height int) string {
	minY, maxY := math.Inf(1), math.Inf(-1)
	maxLen := 0
	for _, s := range series {
		if len(s.Values) < 2 {
			continue
		}
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
		if len(s.Values) > maxLen {
			maxLen = len(s.Values)
		}
	}
	if maxLen < 2 || math.IsInf(minY, 0) {
		return ""
	}

	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	// Add padding
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY
	rangeX := float64(maxLen - 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	legend := 0
	for i, s := range series {
		if len(s.Values) < 2 {
			continue
		}
		color := s.Color
		if color == "" {
			color = palette[i%len(palette)]
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, color)
		pen := "M"
		for j, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				pen = "M"
				continue
			}
			x := float64(j) / rangeX * float64(width)
			y := float64(height) - (v-minY)/rangeY*float64(height)
			if j > 0 && pen == "M" {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%s%.1f,%.1f", pen, x, y)
			pen = " L"
		}
		sb.WriteString("\"/>\n")
		if s.Name != "" {
			fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+legend*14, color, escape(s.Name))
			legend++
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SliceToSVG renders an n x n slice of values in [0,1] as colored cells of
// the given pixel size. Index is y*n + x, matching a z slice of the lattice.
func SliceToSVG(slice []float64, n int, cell float64) string {
	if n <= 0 || len(slice) < n*n {
		return ""
	}
	side := float64(n) * cell

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, side, side, side, side)

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, float64(x)*cell, float64(y)*cell, cell, cell, shade(slice[y*n+x]))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func shade(v float64) string {
	if math.IsNaN(v) {
		return ramp[0]
	}
	v = math.Max(0, math.Min(1, v))
	return ramp[int(math.Round(v*float64(len(ramp)-1)))]
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// WriteSVG writes doc to w, failing on an empty document.
func WriteSVG(w io.Writer, doc string) error {
	if doc == "" {
		return fmt.Errorf("export: nothing to draw")
	}
	_, err := io.WriteString(w, doc)
	return err
}
