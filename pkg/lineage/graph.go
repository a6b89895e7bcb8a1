package lineage

// Graph holds every link of one experiment, organized into tracks. Nothing
// in here locks: the graph belongs to one goroutine, and Copy is the way to
// hand tracking data to another one.
type Graph struct {
	tracks     []*Track // arena; nil entries are tombstones of merged tracks
	byPosition map[Position]TrackID
	attributes map[string]map[Position]any
	logger     Logger
}

// GraphOption customizes graph construction.
type GraphOption func(*Graph)

// WithLogger routes the soft structural warnings (a cell with more than two
// daughters, a cell with more than one past) to the given logger. Such
// links stay allowed; downstream rule checks flag them as well.
func WithLogger(l Logger) GraphOption {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGraph returns an empty linking graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		byPosition: make(map[Position]TrackID),
		attributes: make(map[string]map[Position]any),
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) addTrack(t *Track) TrackID {
	g.tracks = append(g.tracks, t)
	return TrackID(len(g.tracks) - 1)
}

func (g *Graph) indexTrack(id TrackID, t *Track) {
	for _, s := range t.slots {
		if s.ok {
			g.byPosition[s.pos] = id
		}
	}
}

// AddLink records that p1 and p2 are the same cell (or mother and daughter)
// observed at two different time points. Linking an already linked pair is a
// no-op. The only rejected input is two positions at the same time point; a
// link spanning more than one time point is legal and shows up as gap slots
// once both sides merge into one track.
func (g *Graph) AddLink(p1, p2 Position) error {
	if p1.T == p2.T {
		return ErrSameTimePoint
	}
	if p2.T < p1.T {
		p1, p2 = p2, p1
	}
	if g.ContainsLink(p1, p2) {
		return nil
	}

	id1, ok1 := g.byPosition[p1]
	id2, ok2 := g.byPosition[p2]

	// Common case while building tracks front to back: p1 ends an open
	// track and p2 is the brand-new detection one step later.
	if ok1 && !ok2 {
		t1 := g.tracks[id1]
		if t1.MaxTimePoint() == p1.T && len(t1.next) == 0 && p2.T == p1.T+1 {
			t1.slots = append(t1.slots, slot{pos: p2, ok: true})
			g.byPosition[p2] = id1
			return nil
		}
	}

	if !ok1 {
		id1 = g.addTrack(newTrack(p1))
		g.byPosition[p1] = id1
	}
	if !ok2 {
		id2 = g.addTrack(newTrack(p2))
		g.byPosition[p2] = id2
	}

	// Cut the tracks so that p1 ends one and p2 starts one, then connect.
	if t1 := g.tracks[id1]; p1.T < t1.MaxTimePoint() {
		g.splitTrack(id1, t1.Age(p1)+1)
	}
	id2 = g.byPosition[p2] // the first split may have moved p2 to a new track
	if t2 := g.tracks[id2]; p2.T > t2.minTime {
		id2 = g.splitTrack(id2, t2.Age(p2))
	}

	t1, t2 := g.tracks[id1], g.tracks[id2]
	t1.next = append(t1.next, id2)
	t2.prev = append(t2.prev, id1)

	if len(t1.next) > 2 {
		g.logger.Warn("position gained more than two future positions",
			"position", p1.String(), "futures", len(t1.next))
	}
	if len(t2.prev) > 1 {
		g.logger.Warn("position gained more than one past position",
			"position", p2.String(), "pasts", len(t2.prev))
	}

	g.tryMerge(id1, id2)
	return nil
}

// RemoveLink disconnects p1 and p2. Removing a link that does not exist
// (including between positions at the same time point) is a no-op. After
// the edge is gone, adjacent tracks that became mergeable are merged, so
// no seam is left behind. Unlinked single-position tracks stay in the
// graph; a position only disappears through RemovePosition.
func (g *Graph) RemoveLink(p1, p2 Position) {
	if p1.T == p2.T {
		return
	}
	if p2.T < p1.T {
		p1, p2 = p2, p1
	}
	id1, ok1 := g.byPosition[p1]
	id2, ok2 := g.byPosition[p2]
	if !ok1 || !ok2 {
		return
	}

	if id1 == id2 {
		t := g.tracks[id1]
		for tp := p1.T + 1; tp < p2.T; tp++ {
			if _, occupied := t.PositionAt(tp); occupied {
				return // another detection sits in between, so p1-p2 is not a link
			}
		}
		backID := g.splitTrack(id1, t.Age(p1)+1)
		t.next = nil
		g.tracks[backID].prev = nil
		return
	}

	t1, t2 := g.tracks[id1], g.tracks[id2]
	if t1.MaxTimePoint() != p1.T || t2.MinTimePoint() != p2.T {
		return
	}
	if !containsID(t1.next, id2) {
		return
	}
	g.unlink(id1, id2)
}

// RemovePosition deletes p together with every link it participates in,
// then restores all track invariants: neighbors that became mergeable are
// merged, and gaps left at a track boundary are trimmed away. The position
// also leaves the index and every attribute table.
func (g *Graph) RemovePosition(p Position) {
	id, ok := g.byPosition[p]
	if !ok {
		g.clearAttributes(p)
		return
	}
	t := g.tracks[id]
	age := t.Age(p)

	switch {
	case len(t.slots) == 1:
		// Sole position: the track goes away entirely.
		for _, pid := range t.prev {
			prev := g.tracks[pid]
			prev.next = removeID(prev.next, id)
			if len(prev.next) == 1 {
				g.tryMerge(pid, prev.next[0])
			}
		}
		for _, nid := range t.next {
			next := g.tracks[nid]
			next.prev = removeID(next.prev, id)
			if len(next.prev) == 1 {
				g.tryMerge(next.prev[0], nid)
			}
		}
		g.tracks[id] = nil
	case age == 0:
		// First position: detach the history, then advance the start.
		for _, pid := range t.prev {
			prev := g.tracks[pid]
			prev.next = removeID(prev.next, id)
			if len(prev.next) == 1 {
				g.tryMerge(pid, prev.next[0])
			}
		}
		t.prev = nil
		t.slots[0] = slot{}
		for !t.slots[0].ok {
			t.slots = t.slots[1:]
			t.minTime++
		}
	default:
		// Interior or last position: make p the end of its track, detach
		// the future, then cut p off.
		if p.T < t.MaxTimePoint() {
			g.splitTrack(id, age+1)
		}
		for _, nid := range t.next {
			next := g.tracks[nid]
			next.prev = removeID(next.prev, id)
			if len(next.prev) == 1 {
				g.tryMerge(next.prev[0], nid)
			}
		}
		t.next = nil
		t.slots = t.slots[:len(t.slots)-1]
		for !t.slots[len(t.slots)-1].ok {
			t.slots = t.slots[:len(t.slots)-1]
		}
	}

	delete(g.byPosition, p)
	g.clearAttributes(p)
}

// ReplacePosition swaps old for new without touching the structure, used
// when a detection is nudged to corrected coordinates. Both positions must
// sit at the same time point. Attributes move along. Replacing an unknown
// position is a no-op.
func (g *Graph) ReplacePosition(old, new Position) error {
	if old.T != new.T {
		return ErrTimePointMismatch
	}
	if old == new {
		return nil
	}
	id, ok := g.byPosition[old]
	if !ok {
		return nil
	}
	t := g.tracks[id]
	t.slots[t.Age(old)] = slot{pos: new, ok: true}
	delete(g.byPosition, old)
	g.byPosition[new] = id
	g.moveAttributes(old, new)
	return nil
}

// MoveInTime shifts the whole graph by the given number of time points.
// Attribute keys shift along with their positions.
func (g *Graph) MoveInTime(delta int) {
	if delta == 0 {
		return
	}
	index := make(map[Position]TrackID, len(g.byPosition))
	for id, t := range g.Tracks() {
		t.minTime += delta
		for i, s := range t.slots {
			if !s.ok {
				continue
			}
			moved := s.pos.WithTimePoint(s.pos.T + delta)
			t.slots[i].pos = moved
			index[moved] = id
		}
	}
	g.byPosition = index

	for name, values := range g.attributes {
		moved := make(map[Position]any, len(values))
		for p, v := range values {
			moved[p.WithTimePoint(p.T+delta)] = v
		}
		g.attributes[name] = moved
	}
}

// AddAll replays every link and attribute write of other into the receiver.
// Attribute values from other win when both graphs store the same name for
// the same position.
func (g *Graph) AddAll(other *Graph) {
	for name, values := range other.attributes {
		for p, v := range values {
			g.setAttribute(name, p, v)
		}
	}
	for a, b := range other.AllLinks() {
		_ = g.AddLink(a, b) // links from a valid graph never share a time point
	}
}

// Copy returns a deep copy with a compacted arena. The two graphs share no
// mutable state afterwards; this is the supported way to hand tracking data
// to another goroutine. Attribute values themselves are copied by
// reference, so treat stored values as immutable.
func (g *Graph) Copy() *Graph {
	out := NewGraph()
	out.logger = g.logger

	remap := make(map[TrackID]TrackID, len(g.tracks))
	for id, t := range g.Tracks() {
		clone := &Track{
			minTime: t.minTime,
			slots:   append([]slot(nil), t.slots...),
		}
		if len(t.lineageData) > 0 {
			clone.lineageData = make(map[string]any, len(t.lineageData))
			for k, v := range t.lineageData {
				clone.lineageData[k] = v
			}
		}
		remap[id] = out.addTrack(clone)
	}
	for id, t := range g.Tracks() {
		clone := out.tracks[remap[id]]
		for _, nid := range t.next {
			clone.next = append(clone.next, remap[nid])
		}
		for _, pid := range t.prev {
			clone.prev = append(clone.prev, remap[pid])
		}
		out.indexTrack(remap[id], clone)
	}
	for name, values := range g.attributes {
		m := make(map[Position]any, len(values))
		for p, v := range values {
			m[p] = v
		}
		out.attributes[name] = m
	}
	return out
}

// splitTrack cuts a track at the given slot index: the original keeps
// [0,index), a new track takes the rest with leading gaps trimmed off, and
// both halves end up linked. Outside next-links move to the back half.
// Callers always cut right after an occupied slot, so the front half keeps
// a valid last position. Returns the id of the back half.
func (g *Graph) splitTrack(id TrackID, index int) TrackID {
	t := g.tracks[id]

	after := t.slots[index:]
	minTime := t.minTime + index
	for !after[0].ok {
		after = after[1:]
		minTime++
	}
	back := &Track{
		minTime: minTime,
		slots:   append([]slot(nil), after...),
		next:    t.next,
		prev:    []TrackID{id},
	}
	backID := g.addTrack(back)

	t.slots = t.slots[:index]
	t.next = []TrackID{backID}

	for _, nid := range back.next {
		replaceID(g.tracks[nid].prev, id, backID)
	}
	g.indexTrack(backID, back)
	return backID
}

// tryMerge joins two directly linked tracks into one when nothing else
// connects at the seam: the later track must be the only continuation of
// the earlier one and vice versa. Skipped time points become gap slots.
// The absorbed track's arena slot becomes a tombstone.
func (g *Graph) tryMerge(idA, idB TrackID) {
	a, b := g.tracks[idA], g.tracks[idB]
	if b.minTime < a.minTime {
		idA, idB = idB, idA
		a, b = b, a
	}
	if len(b.prev) != 1 || len(a.next) != 1 {
		return
	}

	if gap := b.minTime - (a.minTime + len(a.slots)); gap > 0 {
		a.slots = append(a.slots, make([]slot, gap)...)
	}
	a.slots = append(a.slots, b.slots...)

	if len(b.lineageData) > 0 {
		if a.lineageData == nil {
			a.lineageData = make(map[string]any, len(b.lineageData))
		}
		for k, v := range b.lineageData {
			a.lineageData[k] = v
		}
	}

	a.next = b.next
	for _, nid := range b.next {
		replaceID(g.tracks[nid].prev, idB, idA)
	}
	for _, s := range b.slots {
		if s.ok {
			g.byPosition[s.pos] = idA
		}
	}
	g.tracks[idB] = nil
}

// unlink removes the a→b edge, then re-merges either side where the
// no-unmerged-neighbors invariant now demands it.
func (g *Graph) unlink(idA, idB TrackID) {
	a, b := g.tracks[idA], g.tracks[idB]
	a.next = removeID(a.next, idB)
	b.prev = removeID(b.prev, idA)
	if len(a.next) == 1 {
		g.tryMerge(idA, a.next[0])
	}
	if len(b.prev) == 1 {
		g.tryMerge(b.prev[0], idB)
	}
}
