package analysis

import (
	"testing"

	"lineagecore/pkg/lineage"
)

// cell builds a quantized position, keeping test tables compact.
func cell(x, y, z float64, timePoint int) lineage.Position {
	return lineage.NewPosition(x, y, z, timePoint)
}

// chain links the given positions in order and fails the test on error.
func chain(t *testing.T, g *lineage.Graph, positions ...lineage.Position) {
	t.Helper()
	for i := 1; i < len(positions); i++ {
		if err := g.AddLink(positions[i-1], positions[i]); err != nil {
			t.Fatalf("link %v to %v: %v", positions[i-1], positions[i], err)
		}
	}
}

func mustSetAttr(t *testing.T, g *lineage.Graph, p lineage.Position, name string, value any) {
	t.Helper()
	if err := g.SetAttribute(p, name, value); err != nil {
		t.Fatalf("set %s on %v: %v", name, p, err)
	}
}

func wantMarker(t *testing.T, g *lineage.Graph, p lineage.Position, want Error) {
	t.Helper()
	got, ok := ErrorMarkerOf(g, p)
	if !ok {
		t.Fatalf("no error marker on %v, want %v", p, want)
	}
	if got != want {
		t.Fatalf("error marker on %v = %d (%s), want %d (%s)", p, got, got.Message(), want, want.Message())
	}
}

func wantNoMarker(t *testing.T, g *lineage.Graph, p lineage.Position) {
	t.Helper()
	if got, ok := ErrorMarkerOf(g, p); ok {
		t.Fatalf("unexpected error marker on %v: %d (%s)", p, got, got.Message())
	}
}
