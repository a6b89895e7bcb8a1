package analysis

import (
	"fmt"

	"lineagecore/pkg/lineage"
)

// Family is one cell division: a mother with her two daughters. The
// daughters are unordered.
type Family struct {
	Mother    lineage.Position
	Daughter1 lineage.Position
	Daughter2 lineage.Position
}

// Equal reports whether both families describe the same division,
// regardless of daughter order.
func (f Family) Equal(other Family) bool {
	if f.Mother != other.Mother {
		return false
	}
	return (f.Daughter1 == other.Daughter1 && f.Daughter2 == other.Daughter2) ||
		(f.Daughter1 == other.Daughter2 && f.Daughter2 == other.Daughter1)
}

func (f Family) String() string {
	return fmt.Sprintf("%v divides into %v and %v", f.Mother, f.Daughter1, f.Daughter2)
}

func familyOf(g *lineage.Graph, motherTrack *lineage.Track) (Family, error) {
	nexts := g.NextTracks(motherTrack)
	if len(nexts) != 2 {
		return Family{}, fmt.Errorf("analysis: cell %v has %d daughters", motherTrack.LastPosition(), len(nexts))
	}
	return Family{
		Mother:    motherTrack.LastPosition(),
		Daughter1: nexts[0].FirstPosition(),
		Daughter2: nexts[1].FirstPosition(),
	}, nil
}

// NextDivision returns the division that ends the track of p. The second
// return is false when the cell never divides (or p is not tracked); an
// error means the division has more than two daughters.
func NextDivision(g *lineage.Graph, p lineage.Position) (Family, bool, error) {
	track, ok := g.TrackOf(p)
	if !ok {
		return Family{}, false, nil
	}
	if !track.WillDivide() {
		return Family{}, false, nil
	}
	family, err := familyOf(g, track)
	if err != nil {
		return Family{}, false, err
	}
	return family, true, nil
}

// PreviousDivision returns the division that produced the track of p. The
// second return is false when the track did not come from a clean division.
func PreviousDivision(g *lineage.Graph, p lineage.Position) (Family, bool, error) {
	track, ok := g.TrackOf(p)
	if !ok {
		return Family{}, false, nil
	}
	prevs := g.PreviousTracks(track)
	if len(prevs) != 1 {
		return Family{}, false, nil
	}
	mother := prevs[0]
	if !mother.WillDivide() {
		return Family{}, false, nil
	}
	family, err := familyOf(g, mother)
	if err != nil {
		return Family{}, false, err
	}
	return family, true, nil
}

// WillDivide reports whether the cell at p divides at the end of its
// track.
func WillDivide(g *lineage.Graph, p lineage.Position) bool {
	track, ok := g.TrackOf(p)
	return ok && track.WillDivide()
}

// FindMothers returns the last position of every track with at least two
// daughters.
func FindMothers(g *lineage.Graph) []lineage.Position {
	var out []lineage.Position
	for _, track := range g.Tracks() {
		if track.WillDivide() {
			out = append(out, track.LastPosition())
		}
	}
	return out
}

// FindFamilies returns one family per division. Divisions with more than
// two daughters contribute the first two; the error checker flags those
// separately.
func FindFamilies(g *lineage.Graph) []Family {
	var out []Family
	for _, track := range g.Tracks() {
		nexts := g.NextTracks(track)
		if len(nexts) < 2 {
			continue
		}
		out = append(out, Family{
			Mother:    track.LastPosition(),
			Daughter1: nexts[0].FirstPosition(),
			Daughter2: nexts[1].FirstPosition(),
		})
	}
	return out
}

// AllFamilyPairs returns every daughter pair of every division, so a
// three-daughter division contributes three families.
func AllFamilyPairs(g *lineage.Graph) []Family {
	var out []Family
	for _, track := range g.Tracks() {
		nexts := g.NextTracks(track)
		if len(nexts) < 2 {
			continue
		}
		mother := track.LastPosition()
		for i := 0; i < len(nexts); i++ {
			for j := i + 1; j < len(nexts); j++ {
				out = append(out, Family{
					Mother:    mother,
					Daughter1: nexts[i].FirstPosition(),
					Daughter2: nexts[j].FirstPosition(),
				})
			}
		}
	}
	return out
}
