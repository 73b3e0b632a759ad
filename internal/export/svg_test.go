package export

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestTraceToSVG(t *testing.T) {
	doc := TraceToSVG([]Series{
		{Name: "energy", Values: []float64{0.1, 0.4, 0.2}},
		{Name: "a<b", Values: []float64{0.3, 0.3, 0.3}, Color: "#123456"},
		{Name: "short", Values: []float64{1}},
	}, 200, 100)

	if !strings.HasPrefix(doc, "<?xml") || !strings.HasSuffix(doc, "</svg>") {
		t.Fatalf("not an svg document: %q", doc[:min(len(doc), 40)])
	}
	if got := strings.Count(doc, "<path"); got != 2 {
		t.Errorf("paths = %d, want 2", got)
	}
	if !strings.Contains(doc, `stroke="#123456"`) {
		t.Error("explicit color missing")
	}
	if !strings.Contains(doc, "a&lt;b") {
		t.Error("legend not escaped")
	}
	if strings.Contains(doc, "short") {
		t.Error("single-point series should be skipped")
	}
}

func TestTraceToSVG_Gaps(t *testing.T) {
	doc := TraceToSVG([]Series{{Values: []float64{0, math.NaN(), 1, 2}}}, 100, 100)
	if strings.Count(doc, "M") < 2 {
		t.Errorf("NaN should break the line: %s", doc)
	}
}

func TestTraceToSVG_Empty(t *testing.T) {
	if doc := TraceToSVG(nil, 10, 10); doc != "" {
		t.Errorf("expected empty document, got %q", doc)
	}
	if err := WriteSVG(&bytes.Buffer{}, ""); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestSliceToSVG(t *testing.T) {
	doc := SliceToSVG([]float64{0, 1, 0.5, math.NaN()}, 2, 10)
	// background plus four cells
	if got := strings.Count(doc, "<rect"); got != 5 {
		t.Errorf("rects = %d, want 5", got)
	}
	if !strings.Contains(doc, ramp[len(ramp)-1]) || !strings.Contains(doc, ramp[0]) {
		t.Error("expected both ends of the ramp")
	}
	if SliceToSVG([]float64{1}, 2, 10) != "" {
		t.Error("short slice should render nothing")
	}
}
