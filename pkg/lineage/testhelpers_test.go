package lineage

import (
	"sort"
	"testing"
)

// cell builds a quantized position, keeping test tables compact.
func cell(x, y, z float64, timePoint int) Position {
	return NewPosition(x, y, z, timePoint)
}

// chain links the given positions in order and fails the test on error.
func chain(t *testing.T, g *Graph, positions ...Position) {
	t.Helper()
	for i := 1; i < len(positions); i++ {
		if err := g.AddLink(positions[i-1], positions[i]); err != nil {
			t.Fatalf("link %v to %v: %v", positions[i-1], positions[i], err)
		}
	}
}

func mustSane(t *testing.T, g *Graph) {
	t.Helper()
	if err := g.DebugSanityCheck(); err != nil {
		t.Fatalf("sanity check: %v", err)
	}
}

func sortPositions(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch {
		case a.T != b.T:
			return a.T < b.T
		case a.X != b.X:
			return a.X < b.X
		case a.Y != b.Y:
			return a.Y < b.Y
		default:
			return a.Z < b.Z
		}
	})
}

func samePositions(a, b []Position) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]Position(nil), a...)
	bs := append([]Position(nil), b...)
	sortPositions(as)
	sortPositions(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// recordingLogger captures warning messages emitted by the graph.
type recordingLogger struct{ warnings []string }

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, args ...any) {
	l.warnings = append(l.warnings, msg)
}
func (l *recordingLogger) Error(string, ...any) {}
