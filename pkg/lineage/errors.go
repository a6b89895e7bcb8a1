package lineage

import (
	"errors"
	"fmt"
)

// Invalid-argument errors. These reject bad input before anything changes.
var (
	// ErrSameTimePoint rejects a link between two positions at the same
	// time point.
	ErrSameTimePoint = errors.New("lineage: cannot link two positions at the same time point")

	// ErrTimePointMismatch rejects a position replacement that would move
	// the detection to another time point.
	ErrTimePointMismatch = errors.New("lineage: replacement position must keep the same time point")

	// ErrReservedAttribute rejects the attribute name "id", which the
	// serialization layer uses for the position itself.
	ErrReservedAttribute = errors.New(`lineage: attribute name "id" is reserved`)

	// ErrReservedPrefix rejects lineage data names starting with "__",
	// which the serialization layer uses to mark lineage entries on edges.
	ErrReservedPrefix = errors.New(`lineage: lineage data names must not start with "__"`)
)

// ConsistencyError reports a broken structural invariant found by
// DebugSanityCheck. It indicates a bug in this package or direct tampering
// with unexported state, never bad input. TrackID is -1 when the problem is
// not tied to a single track.
type ConsistencyError struct {
	TrackID TrackID
	Problem string
}

func (e *ConsistencyError) Error() string {
	if e.TrackID < 0 {
		return "lineage: inconsistent graph: " + e.Problem
	}
	return fmt.Sprintf("lineage: inconsistent graph: track %d: %s", e.TrackID, e.Problem)
}
