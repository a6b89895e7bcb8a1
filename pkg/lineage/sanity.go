package lineage

import "fmt"

// DebugSanityCheck walks the whole structure and verifies every invariant:
// track shape, index agreement, link symmetry, time ordering, the
// no-unmerged-neighbors rule and lineage data placement. It is meant for
// tests and import validation, not for the hot path. The first problem
// found is returned as a *ConsistencyError.
func (g *Graph) DebugSanityCheck() error {
	for id, t := range g.Tracks() {
		if len(t.slots) == 0 {
			return &ConsistencyError{TrackID: id, Problem: "track has no positions"}
		}
		if !t.slots[0].ok {
			return &ConsistencyError{TrackID: id, Problem: "track starts with a gap"}
		}
		if !t.slots[len(t.slots)-1].ok {
			return &ConsistencyError{TrackID: id, Problem: "track ends with a gap"}
		}
		for i, s := range t.slots {
			if !s.ok {
				continue
			}
			if s.pos.T != t.minTime+i {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"%v sits in the slot of time point %d", s.pos, t.minTime+i)}
			}
			owner, ok := g.byPosition[s.pos]
			if !ok {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"%v is missing from the position index", s.pos)}
			}
			if owner != id {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"%v is indexed to track %d instead", s.pos, owner)}
			}
		}

		for _, nid := range t.next {
			next, ok := g.TrackByID(nid)
			if !ok {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"next track %d does not exist", nid)}
			}
			if !containsID(next.prev, id) {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"next track %d does not link back", nid)}
			}
			if t.MaxTimePoint() >= next.MinTimePoint() {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"next track %d does not start after this track ends", nid)}
			}
		}
		for _, pid := range t.prev {
			prev, ok := g.TrackByID(pid)
			if !ok {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"previous track %d does not exist", pid)}
			}
			if !containsID(prev.next, id) {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"previous track %d does not link forward", pid)}
			}
		}

		if len(t.next) == 1 {
			if next := g.tracks[t.next[0]]; next != nil && len(next.prev) == 1 {
				return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
					"track and its only continuation %d should have been merged", t.next[0])}
			}
		}
		if len(t.prev) > 0 && len(t.lineageData) > 0 {
			return &ConsistencyError{
				TrackID: id,
				Problem: "lineage data stored on a track that does not start a lineage",
			}
		}
	}

	for p, id := range g.byPosition {
		t, ok := g.TrackByID(id)
		if !ok {
			return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
				"%v is indexed to a track that does not exist", p)}
		}
		stored, ok := t.PositionAt(p.T)
		if !ok || stored != p {
			return &ConsistencyError{TrackID: id, Problem: fmt.Sprintf(
				"%v is indexed to a track that does not contain it", p)}
		}
	}
	return nil
}
