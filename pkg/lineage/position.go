// Package lineage implements the linking graph used to follow cells through
// a time-lapse experiment. Detected positions are connected by links into
// tracks (maximal runs of the same cell at consecutive time points) and
// tracks are connected into lineage trees at divisions and merges.
//
// The graph is deliberately single-threaded: no method locks. Code that
// needs an isolated view takes a Copy and works on that; the persistence
// drivers in internal/infra do exactly this.
package lineage

import (
	"encoding/json"
	"fmt"
	"math"
)

// Coordinates snap to a 1/1024 pixel grid at construction so that equality,
// map hashing and serialization agree on a single identity for a detection.
const coordGridSteps = 1024

func quantize(v float64) float64 {
	return math.Round(v*coordGridSteps) / coordGridSteps
}

// Position is a detected cell center: a 3D point plus the time point number
// it was observed at. Positions are immutable comparable values; two
// positions refer to the same detection exactly when == reports true.
type Position struct {
	X float64
	Y float64
	Z float64
	T int
}

// NewPosition builds a position with the coordinates snapped to the storage
// grid. All positions entering a graph must come through here (or through
// JSON decoding, which does the same).
func NewPosition(x, y, z float64, timePoint int) Position {
	return Position{X: quantize(x), Y: quantize(y), Z: quantize(z), T: timePoint}
}

// WithTimePoint returns the same location observed at another time point.
func (p Position) WithTimePoint(timePoint int) Position {
	p.T = timePoint
	return p
}

// DistanceSquared returns the squared spatial distance to other. Time is
// ignored.
func (p Position) DistanceSquared(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Distance returns the spatial distance to other. Time is ignored.
func (p Position) Distance(other Position) float64 {
	return math.Sqrt(p.DistanceSquared(other))
}

func (p Position) String() string {
	return fmt.Sprintf("cell at (%.2f, %.2f, %.2f) at time point %d", p.X, p.Y, p.Z, p.T)
}

// positionJSON matches the field names of the node-link interchange format.
type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	T int     `json:"_time_point_number"`
}

// MarshalJSON encodes the position with the interchange field names,
// including the underscore-prefixed time point number.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionJSON{X: p.X, Y: p.Y, Z: p.Z, T: p.T})
}

// UnmarshalJSON decodes a position and re-applies coordinate quantization,
// so hand-written files land on the same grid as constructed positions.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw positionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewPosition(raw.X, raw.Y, raw.Z, raw.T)
	return nil
}
