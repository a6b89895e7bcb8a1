package analysis

import "lineagecore/pkg/lineage"

// Attribute names used by the marker helpers. They are part of the file
// format shared with other tracking tools.
const (
	endingAttr     = "ending"
	startingAttr   = "starting"
	errorAttr      = "error"
	suppressedAttr = "suppressed_error"
	uncertainAttr  = "uncertain"
)

// EndMarker explains why a track ends: the stored string doubles as the
// wire format in the "ending" attribute.
type EndMarker string

const (
	EndDead           EndMarker = "dead"
	EndOutOfView      EndMarker = "out_of_view"
	EndShed           EndMarker = "shed"
	EndShedOutside    EndMarker = "shed_outside"
	EndStimulatedShed EndMarker = "stimulated_shed"
)

// IsShed reports whether the marker is one of the shedding variants.
func (m EndMarker) IsShed() bool {
	return m == EndShed || m == EndShedOutside || m == EndStimulatedShed
}

func validEndMarker(m EndMarker) bool {
	switch m {
	case EndDead, EndOutOfView, EndShed, EndShedOutside, EndStimulatedShed:
		return true
	}
	return false
}

// StartMarker explains why a track starts in the middle of an experiment.
type StartMarker string

const (
	StartGoesIntoView StartMarker = "goes_into_view"
	StartUnsure       StartMarker = "unsure"
)

func validStartMarker(m StartMarker) bool {
	return m == StartGoesIntoView || m == StartUnsure
}

// EndMarkerOf returns the end marker of the position, if a valid one is
// stored.
func EndMarkerOf(g *lineage.Graph, p lineage.Position) (EndMarker, bool) {
	v, ok := g.Attribute(p, endingAttr)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || !validEndMarker(EndMarker(s)) {
		return "", false
	}
	return EndMarker(s), true
}

// SetEndMarker records why the track ends at the given position. An empty
// marker deletes the record.
func SetEndMarker(g *lineage.Graph, p lineage.Position, m EndMarker) error {
	if m == "" {
		return g.SetAttribute(p, endingAttr, nil)
	}
	return g.SetAttribute(p, endingAttr, string(m))
}

// StartMarkerOf returns the start marker of the position, if a valid one
// is stored.
func StartMarkerOf(g *lineage.Graph, p lineage.Position) (StartMarker, bool) {
	v, ok := g.Attribute(p, startingAttr)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || !validStartMarker(StartMarker(s)) {
		return "", false
	}
	return StartMarker(s), true
}

// SetStartMarker records why the track starts at the given position. An
// empty marker deletes the record.
func SetStartMarker(g *lineage.Graph, p lineage.Position, m StartMarker) error {
	if m == "" {
		return g.SetAttribute(p, startingAttr, nil)
	}
	return g.SetAttribute(p, startingAttr, string(m))
}

// IsLive reports whether the cell at p is still alive: not marked dead and
// not shed. Cells that merely went out of view count as live.
func IsLive(g *lineage.Graph, p lineage.Position) bool {
	m, ok := EndMarkerOf(g, p)
	if !ok {
		return true
	}
	return m != EndDead && !m.IsShed()
}

// DeathAndShedPositions returns the positions where a cell actually died or
// was shed: marked accordingly and without any future positions. Markers on
// positions that do have futures are stale and skipped.
func DeathAndShedPositions(g *lineage.Graph) []lineage.Position {
	var out []lineage.Position
	for p := range g.PositionsWithAttribute(endingAttr) {
		m, ok := EndMarkerOf(g, p)
		if !ok {
			continue
		}
		if m != EndDead && !m.IsShed() {
			continue
		}
		if len(g.FindFutures(p)) > 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// MarkUncertain flags a detection a human was not sure about; the error
// checker reports such positions. Pass false to clear the flag.
func MarkUncertain(g *lineage.Graph, p lineage.Position, uncertain bool) error {
	if !uncertain {
		return g.SetAttribute(p, uncertainAttr, nil)
	}
	return g.SetAttribute(p, uncertainAttr, true)
}

// IsUncertain reports whether the detection was flagged as uncertain.
func IsUncertain(g *lineage.Graph, p lineage.Position) bool {
	v, ok := g.Attribute(p, uncertainAttr)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ErrorMarkerOf returns the current error marker of the position. A
// suppressed error is reported as absent.
func ErrorMarkerOf(g *lineage.Graph, p lineage.Position) (Error, bool) {
	v, ok := g.Attribute(p, errorAttr)
	if !ok {
		return 0, false
	}
	code, ok := numberValue(v)
	if !ok {
		return 0, false
	}
	if suppressed, ok := g.Attribute(p, suppressedAttr); ok {
		if sCode, ok := numberValue(suppressed); ok && sCode == code {
			return 0, false
		}
	}
	return Error(int(code)), true
}

// SetErrorMarker stores an error marker on the position.
func SetErrorMarker(g *lineage.Graph, p lineage.Position, e Error) error {
	return g.SetAttribute(p, errorAttr, int(e))
}

// ClearErrorMarker removes the error marker, if any.
func ClearErrorMarker(g *lineage.Graph, p lineage.Position) error {
	return g.SetAttribute(p, errorAttr, nil)
}

// SuppressError hides an error: even if the same error is set again later,
// ErrorMarkerOf will not report it.
func SuppressError(g *lineage.Graph, p lineage.Position, e Error) error {
	return g.SetAttribute(p, suppressedAttr, int(e))
}

// IsErrorSuppressed reports whether exactly the given error is suppressed
// on the position.
func IsErrorSuppressed(g *lineage.Graph, p lineage.Position, e Error) bool {
	v, ok := g.Attribute(p, suppressedAttr)
	if !ok {
		return false
	}
	code, ok := numberValue(v)
	return ok && int(code) == int(e)
}

// ErroredPositions returns the positions carrying a non-suppressed error
// within [minTimePoint, maxTimePoint].
func ErroredPositions(g *lineage.Graph, minTimePoint, maxTimePoint int) []lineage.Position {
	var out []lineage.Position
	for p := range g.PositionsWithAttribute(errorAttr) {
		if p.T < minTimePoint || p.T > maxTimePoint {
			continue
		}
		if _, ok := ErrorMarkerOf(g, p); ok {
			out = append(out, p)
		}
	}
	return out
}

// numberValue widens the numeric types that attribute values can arrive
// in. Values written in this process are ints; values loaded from JSON are
// float64.
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
