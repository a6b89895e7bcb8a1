package lineage

import "iter"

// FindFutures returns the positions the cell at p continues into: the next
// detection inside its own track (skipping gaps), or the first positions of
// the next tracks when p ends its track. Unknown positions yield an empty
// result, never an error.
func (g *Graph) FindFutures(p Position) []Position {
	id, ok := g.byPosition[p]
	if !ok {
		return nil
	}
	return g.futuresAt(g.tracks[id], p.T)
}

// FindPasts returns the positions the cell at p came from, mirroring
// FindFutures.
func (g *Graph) FindPasts(p Position) []Position {
	id, ok := g.byPosition[p]
	if !ok {
		return nil
	}
	return g.pastsAt(g.tracks[id], p.T)
}

// futuresAt scans forward from one step past the given time point, skipping
// gaps; when the scan runs off the track it falls through to the first
// positions of the next tracks.
func (g *Graph) futuresAt(t *Track, timePoint int) []Position {
	for i := timePoint + 1 - t.minTime; i < len(t.slots); i++ {
		if t.slots[i].ok {
			return []Position{t.slots[i].pos}
		}
	}
	out := make([]Position, 0, len(t.next))
	for _, nid := range t.next {
		out = append(out, g.tracks[nid].FirstPosition())
	}
	return out
}

func (g *Graph) pastsAt(t *Track, timePoint int) []Position {
	for i := timePoint - 1 - t.minTime; i >= 0; i-- {
		if t.slots[i].ok {
			return []Position{t.slots[i].pos}
		}
	}
	out := make([]Position, 0, len(t.prev))
	for _, pid := range t.prev {
		out = append(out, g.tracks[pid].LastPosition())
	}
	return out
}

// FindSingleFuture returns the sole future of p, if there is exactly one.
func (g *Graph) FindSingleFuture(p Position) (Position, bool) {
	futures := g.FindFutures(p)
	if len(futures) != 1 {
		return Position{}, false
	}
	return futures[0], true
}

// FindSinglePast returns the sole past of p, if there is exactly one.
func (g *Graph) FindSinglePast(p Position) (Position, bool) {
	pasts := g.FindPasts(p)
	if len(pasts) != 1 {
		return Position{}, false
	}
	return pasts[0], true
}

// FindLinksOf returns every position directly linked to p, pasts first.
func (g *Graph) FindLinksOf(p Position) []Position {
	return append(g.FindPasts(p), g.FindFutures(p)...)
}

// ContainsLink reports whether p1 and p2 are directly linked.
func (g *Graph) ContainsLink(p1, p2 Position) bool {
	if p1.T == p2.T {
		return false
	}
	if p2.T < p1.T {
		p1, p2 = p2, p1
	}
	for _, future := range g.FindFutures(p1) {
		if future == p2 {
			return true
		}
	}
	return false
}

// ContainsPosition reports whether p takes part in any track.
func (g *Graph) ContainsPosition(p Position) bool {
	_, ok := g.byPosition[p]
	return ok
}

// AllPositions yields every tracked position, in no particular order.
func (g *Graph) AllPositions() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		for p := range g.byPosition {
			if !yield(p) {
				return
			}
		}
	}
}

// PositionCount returns the number of tracked positions.
func (g *Graph) PositionCount() int { return len(g.byPosition) }

// AllLinks yields every link exactly once as an (earlier, later) pair: the
// consecutive detections inside each track, skipping over gaps, plus the
// hand-off to each next track.
func (g *Graph) AllLinks() iter.Seq2[Position, Position] {
	return func(yield func(Position, Position) bool) {
		for _, t := range g.Tracks() {
			var prev Position
			havePrev := false
			for _, s := range t.slots {
				if !s.ok {
					continue
				}
				if havePrev && !yield(prev, s.pos) {
					return
				}
				prev = s.pos
				havePrev = true
			}
			for _, nid := range t.next {
				if !yield(prev, g.tracks[nid].FirstPosition()) {
					return
				}
			}
		}
	}
}

// LinkCount returns the total number of links.
func (g *Graph) LinkCount() int {
	n := 0
	for range g.AllLinks() {
		n++
	}
	return n
}

// HasLinks reports whether any tracking data is present at all.
func (g *Graph) HasLinks() bool {
	for _, t := range g.tracks {
		if t != nil {
			return true
		}
	}
	return false
}

// OfTimePoint yields the links touching the given time point, paired as
// (position at that time point, linked position at another one).
func (g *Graph) OfTimePoint(timePoint int) iter.Seq2[Position, Position] {
	return func(yield func(Position, Position) bool) {
		for _, t := range g.Tracks() {
			p, ok := t.PositionAt(timePoint)
			if !ok {
				continue
			}
			for _, past := range g.pastsAt(t, timePoint) {
				if !yield(p, past) {
					return
				}
			}
			for _, future := range g.futuresAt(t, timePoint) {
				if !yield(p, future) {
					return
				}
			}
		}
	}
}

// Tracks yields every live track with its id, in arena order.
func (g *Graph) Tracks() iter.Seq2[TrackID, *Track] {
	return func(yield func(TrackID, *Track) bool) {
		for i, t := range g.tracks {
			if t == nil {
				continue
			}
			if !yield(TrackID(i), t) {
				return
			}
		}
	}
}

// TrackCount returns the number of live tracks.
func (g *Graph) TrackCount() int {
	n := 0
	for _, t := range g.tracks {
		if t != nil {
			n++
		}
	}
	return n
}

// TrackOf returns the track containing p.
func (g *Graph) TrackOf(p Position) (*Track, bool) {
	id, ok := g.byPosition[p]
	if !ok {
		return nil, false
	}
	return g.tracks[id], true
}

// TrackByID resolves an arena id. Tombstones of merged-away tracks resolve
// to false.
func (g *Graph) TrackByID(id TrackID) (*Track, bool) {
	if id < 0 || int(id) >= len(g.tracks) || g.tracks[id] == nil {
		return nil, false
	}
	return g.tracks[id], true
}

// IDOf returns the arena id of a track owned by this graph.
func (g *Graph) IDOf(t *Track) (TrackID, bool) {
	for i, candidate := range g.tracks {
		if candidate == t {
			return TrackID(i), true
		}
	}
	return 0, false
}

// NextTracks resolves the tracks t continues into.
func (g *Graph) NextTracks(t *Track) []*Track {
	out := make([]*Track, 0, len(t.next))
	for _, id := range t.next {
		out = append(out, g.tracks[id])
	}
	return out
}

// PreviousTracks resolves the tracks t continues from.
func (g *Graph) PreviousTracks(t *Track) []*Track {
	out := make([]*Track, 0, len(t.prev))
	for _, id := range t.prev {
		out = append(out, g.tracks[id])
	}
	return out
}

// StartingTracks returns the tracks that begin a lineage: those without any
// previous track.
func (g *Graph) StartingTracks() []*Track {
	var out []*Track
	for _, t := range g.Tracks() {
		if len(t.prev) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// EndingTracks returns the tracks without any next track.
func (g *Graph) EndingTracks() []*Track {
	var out []*Track
	for _, t := range g.Tracks() {
		if len(t.next) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// TracksInTimePoint yields the tracks whose time range covers the given
// time point, whether or not the cell was detected right then.
func (g *Graph) TracksInTimePoint(timePoint int) iter.Seq[*Track] {
	return func(yield func(*Track) bool) {
		for _, t := range g.Tracks() {
			if timePoint < t.minTime || timePoint > t.MaxTimePoint() {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// FindAppearedPositions returns the first position of every track without a
// history, except tracks starting at ignoreTimePoint: cells present from
// the start of the imaging window did not really appear. Pass a time point
// outside the experiment to keep them all.
func (g *Graph) FindAppearedPositions(ignoreTimePoint int) []Position {
	var out []Position
	for _, t := range g.Tracks() {
		if len(t.prev) != 0 || t.minTime == ignoreTimePoint {
			continue
		}
		out = append(out, t.FirstPosition())
	}
	return out
}

// FindDisappearedPositions returns the last position of every track without
// a future, except tracks ending at ignoreTimePoint.
func (g *Graph) FindDisappearedPositions(ignoreTimePoint int) []Position {
	var out []Position
	for _, t := range g.Tracks() {
		if len(t.next) != 0 || t.MaxTimePoint() == ignoreTimePoint {
			continue
		}
		out = append(out, t.LastPosition())
	}
	return out
}

// MinTimePoint returns the earliest time point with tracking data.
func (g *Graph) MinTimePoint() (int, bool) {
	found := false
	lowest := 0
	for _, t := range g.Tracks() {
		if !found || t.minTime < lowest {
			lowest = t.minTime
			found = true
		}
	}
	return lowest, found
}

// MaxTimePoint returns the latest time point with tracking data.
func (g *Graph) MaxTimePoint() (int, bool) {
	found := false
	highest := 0
	for _, t := range g.Tracks() {
		if !found || t.MaxTimePoint() > highest {
			highest = t.MaxTimePoint()
			found = true
		}
	}
	return highest, found
}
