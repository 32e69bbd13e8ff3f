package export

import (
	"strings"
	"testing"
)

func TestSeriesToSVG(t *testing.T) {
	svg := SeriesToSVG([]string{"E0", "E1", "E2"}, []float64{1.0, 0.5, 2.0}, 400, 200)

	if !strings.HasPrefix(svg, `<?xml version="1.0"`) {
		t.Fatalf("missing XML declaration:\n%s", svg)
	}
	if !strings.Contains(svg, `width="400" height="200"`) {
		t.Errorf("dimensions not applied")
	}
	if !strings.Contains(svg, "<path") {
		t.Errorf("no path element")
	}
	for _, label := range []string{">E0<", ">E2<"} {
		if !strings.Contains(svg, label) {
			t.Errorf("missing axis label %s", label)
		}
	}
	if !strings.HasSuffix(svg, "</svg>") {
		t.Errorf("unterminated document")
	}
}

func TestSeriesToSVGTooFewPoints(t *testing.T) {
	if got := SeriesToSVG(nil, []float64{1.0}, 400, 200); got != "" {
		t.Errorf("single point should produce no plot, got %q", got)
	}
	if got := SeriesToSVG(nil, nil, 400, 200); got != "" {
		t.Errorf("empty series should produce no plot, got %q", got)
	}
}

func TestSeriesToSVGConstantSeries(t *testing.T) {
	svg := SeriesToSVG(nil, []float64{3.0, 3.0, 3.0}, 100, 100)
	if svg == "" {
		t.Fatal("constant series should still plot")
	}
	// No labels were given, so none should appear.
	if strings.Contains(svg, "<text") {
		t.Errorf("unexpected labels:\n%s", svg)
	}
}

func TestSeriesToSVGEscapesLabels(t *testing.T) {
	svg := SeriesToSVG([]string{"a<b", "c&d"}, []float64{0, 1}, 100, 100)
	if strings.Contains(svg, ">a<b<") || !strings.Contains(svg, "a&lt;b") {
		t.Errorf("label not escaped:\n%s", svg)
	}
	if !strings.Contains(svg, "c&amp;d") {
		t.Errorf("ampersand not escaped:\n%s", svg)
	}
}
