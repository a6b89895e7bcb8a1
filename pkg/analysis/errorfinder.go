package analysis

import "lineagecore/pkg/lineage"

// Attribute names of the probabilities written by linking tools. The
// checker reads them when present and stays quiet when they are absent.
const (
	divisionProbabilityAttr = "division_probability"
	linkProbabilityAttr     = "link_probability"
)

// Check runs the full error sweep: every known position is examined and
// its error marker set or cleared. It returns how many tracked positions
// have an error and how many flagged positions have no links at all.
func Check(g *lineage.Graph, limits Limits, res Resolution) (errored, unlinked int) {
	c := newChecker(g, limits, res)
	for _, p := range knownPositions(g) {
		e, found := c.errorFor(p)
		if found {
			_ = SetErrorMarker(g, p, e)
			if g.ContainsPosition(p) {
				errored++
			} else {
				unlinked++
			}
		} else {
			_ = ClearErrorMarker(g, p)
		}
	}
	return errored, unlinked
}

// CheckPosition re-examines the given positions and everything directly
// linked to them, then re-examines every dividing cell. The second pass
// matters because an edit far away in time can turn a mother into a young
// mother, or stop her from being one.
func CheckPosition(g *lineage.Graph, limits Limits, res Resolution, positions ...lineage.Position) {
	seen := make(map[lineage.Position]bool)
	var queue []lineage.Position
	add := func(p lineage.Position) {
		if !seen[p] {
			seen[p] = true
			queue = append(queue, p)
		}
	}
	for _, p := range positions {
		add(p)
		for _, linked := range g.FindLinksOf(p) {
			add(linked)
		}
	}
	for _, track := range g.Tracks() {
		if track.WillDivide() {
			add(track.LastPosition())
		}
	}

	c := newChecker(g, limits, res)
	for _, p := range queue {
		if e, found := c.errorFor(p); found {
			_ = SetErrorMarker(g, p, e)
		} else {
			_ = ClearErrorMarker(g, p)
		}
	}
}

// checker bundles the per-sweep state so the time point window is only
// computed once.
type checker struct {
	g      *lineage.Graph
	limits Limits
	res    Resolution
	first  int
	last   int
}

func newChecker(g *lineage.Graph, limits Limits, res Resolution) checker {
	c := checker{g: g, limits: limits, res: res}
	c.first, c.last = knownTimePointRange(g)
	return c
}

// errorFor decides which error, if any, applies to one position.
func (c checker) errorFor(p lineage.Position) (Error, bool) {
	g := c.g
	if IsUncertain(g, p) {
		return ErrorUncertainPosition, true
	}
	if !g.HasLinks() {
		// Without any linking data the other checks only produce noise.
		return 0, false
	}

	futures := g.FindFutures(p)
	switch {
	case len(futures) > 2:
		return ErrorTooManyDaughterCells, true
	case len(futures) == 0:
		if _, marked := EndMarkerOf(g, p); !marked && p.T < c.last {
			return ErrorNoFuturePosition, true
		}
	case len(futures) == 2:
		if prob, ok := attrNumber(g, p, divisionProbabilityAttr); ok && prob < c.limits.MinProbability {
			return ErrorLowMotherScore, true
		}
		if age, ok := timeSinceDivision(g, p); ok {
			if float64(age)*c.res.TimePointIntervalH() < c.limits.MinTimeBetweenDivisionsH {
				return ErrorYoungMother, true
			}
		}
	default: // exactly one future
		if prob, ok := attrNumber(g, p, divisionProbabilityAttr); ok && prob > 1-c.limits.MinProbability {
			if !c.divisionLikelyHereafter(futures[0]) {
				return ErrorPotentiallyShouldBeAMother, true
			}
		}
	}

	pasts := g.FindPasts(p)
	switch {
	case len(pasts) == 0:
		if _, marked := StartMarkerOf(g, p); !marked && p.T > c.first {
			return ErrorNoPastPosition, true
		}
	case len(pasts) >= 2:
		return ErrorCellMerge, true
	default: // exactly one past
		past := pasts[0]
		minutes := float64(p.T-past.T) * c.res.TimePointIntervalM
		if minutes > 0 {
			speed := c.res.DistanceUm(past, p) / minutes
			if speed > c.limits.MaxDistanceMovedUmPerMin && IsLive(g, p) {
				return ErrorMovedTooFast, true
			}
		}
		if prob, ok := attrNumber(g, p, linkProbabilityAttr); ok && prob < c.limits.MinProbability && IsLive(g, p) {
			return ErrorLowLinkScore, true
		}
	}
	return 0, false
}

// divisionLikelyHereafter reports whether the cell divides, or is likely
// to divide, within the next two time points after future. It keeps the
// missed-division warning from firing on several consecutive positions of
// the same track.
func (c checker) divisionLikelyHereafter(future lineage.Position) bool {
	threshold := 1 - c.limits.MinProbability
	if prob, ok := attrNumber(c.g, future, divisionProbabilityAttr); ok && prob > threshold {
		return true
	}
	nextFutures := c.g.FindFutures(future)
	switch {
	case len(nextFutures) >= 2:
		return true
	case len(nextFutures) == 1:
		prob, ok := attrNumber(c.g, nextFutures[0], divisionProbabilityAttr)
		return ok && prob > threshold
	}
	return false
}

// timeSinceDivision returns how many time points ago the cell at p was
// born from a division. Cells at the start of a lineage have no known
// birth, so their age is unknown.
func timeSinceDivision(g *lineage.Graph, p lineage.Position) (int, bool) {
	track, ok := g.TrackOf(p)
	if !ok {
		return 0, false
	}
	if len(g.PreviousTracks(track)) == 0 {
		return 0, false
	}
	return track.Age(p), true
}

// knownPositions returns all positions the graph knows about, tracked or
// attribute-only, each exactly once.
func knownPositions(g *lineage.Graph) []lineage.Position {
	seen := make(map[lineage.Position]bool, g.PositionCount())
	var out []lineage.Position
	for p := range g.AllPositions() {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, name := range g.AttributeNames() {
		for p := range g.PositionsWithAttribute(name) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// knownTimePointRange spans tracked and attribute-only positions alike, so
// detections that were never linked still count towards the movie bounds.
func knownTimePointRange(g *lineage.Graph) (first, last int) {
	found := false
	for _, p := range knownPositions(g) {
		if !found {
			first, last = p.T, p.T
			found = true
			continue
		}
		if p.T < first {
			first = p.T
		}
		if p.T > last {
			last = p.T
		}
	}
	return first, last
}

func attrNumber(g *lineage.Graph, p lineage.Position, name string) (float64, bool) {
	v, ok := g.Attribute(p, name)
	if !ok {
		return 0, false
	}
	return numberValue(v)
}
