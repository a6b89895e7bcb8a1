package lineage

import "iter"

// TrackID indexes a track in its graph's arena. IDs are stable for the
// lifetime of a graph (slots of merged-away tracks become tombstones and are
// never reused) but are not preserved across Copy, which compacts the arena.
type TrackID int

// slot is one time point inside a track: either an occupied position or a
// gap where the cell went undetected for a while.
type slot struct {
	pos Position
	ok  bool
}

// Track is a maximal run of positions at consecutive time points that belong
// to the same cell. The first and last slot are always occupied; gaps only
// appear strictly inside. Connections to earlier and later tracks are kept
// as arena indices and resolved through the owning Graph.
//
// Tracks are owned by their graph. External code reads them through the
// methods below and mutates them only through Graph operations.
type Track struct {
	minTime int
	slots   []slot // index 0 corresponds to minTime
	next    []TrackID
	prev    []TrackID

	// lineageData has contents only on tracks without previous tracks; it
	// travels to the surviving track when tracks merge.
	lineageData map[string]any
}

func newTrack(first Position) *Track {
	return &Track{minTime: first.T, slots: []slot{{pos: first, ok: true}}}
}

// MinTimePoint returns the time point of the first position.
func (t *Track) MinTimePoint() int { return t.minTime }

// MaxTimePoint returns the time point of the last position.
func (t *Track) MaxTimePoint() int { return t.minTime + len(t.slots) - 1 }

// Span returns the number of time points the track covers, gaps included.
func (t *Track) Span() int { return len(t.slots) }

// Len returns the number of occupied positions.
func (t *Track) Len() int {
	n := 0
	for _, s := range t.slots {
		if s.ok {
			n++
		}
	}
	return n
}

// FirstPosition returns the earliest position of the track. It panics on an
// empty track, which cannot be produced through the public Graph API.
func (t *Track) FirstPosition() Position {
	if len(t.slots) == 0 || !t.slots[0].ok {
		panic("lineage: track has no first position")
	}
	return t.slots[0].pos
}

// LastPosition returns the latest position of the track. It panics on an
// empty track, which cannot be produced through the public Graph API.
func (t *Track) LastPosition() Position {
	if len(t.slots) == 0 || !t.slots[len(t.slots)-1].ok {
		panic("lineage: track has no last position")
	}
	return t.slots[len(t.slots)-1].pos
}

// Age returns how many time points the track had been going when the given
// position was recorded: 0 for the first position.
func (t *Track) Age(p Position) int { return p.T - t.minTime }

// PositionAt returns the position at the given time point. The second
// return is false both for gaps and for time points outside the track.
func (t *Track) PositionAt(timePoint int) (Position, bool) {
	i := timePoint - t.minTime
	if i < 0 || i >= len(t.slots) || !t.slots[i].ok {
		return Position{}, false
	}
	return t.slots[i].pos, true
}

// Positions yields the occupied positions in time order. The sequence is
// lazy and can be ranged over any number of times.
func (t *Track) Positions() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		for _, s := range t.slots {
			if !s.ok {
				continue
			}
			if !yield(s.pos) {
				return
			}
		}
	}
}

// NextIDs returns the ids of the tracks this one continues into. The slice
// is a copy.
func (t *Track) NextIDs() []TrackID { return append([]TrackID(nil), t.next...) }

// PreviousIDs returns the ids of the tracks this one continues from. The
// slice is a copy.
func (t *Track) PreviousIDs() []TrackID { return append([]TrackID(nil), t.prev...) }

// WillDivide reports whether the cell divides at the end of this track.
func (t *Track) WillDivide() bool { return len(t.next) >= 2 }

func removeID(ids []TrackID, id TrackID) []TrackID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func replaceID(ids []TrackID, from, to TrackID) {
	for i, v := range ids {
		if v == from {
			ids[i] = to
		}
	}
}

func containsID(ids []TrackID, id TrackID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
