package imports

import (
	"encoding/json"
	"fmt"
	"io"

	"lineagecore/pkg/lineage"
)

// TrackListDocument is the legacy per-track interchange document: every
// track is a position sequence in time order, and divisions are
// [mother, child1, child2] triples of indices into the tracks array.
type TrackListDocument struct {
	Tracks   [][]lineage.Position `json:"tracks"`
	Lineages [][]int              `json:"lineages,omitempty"`
}

// ReadTrackList rebuilds a graph from the legacy per-track document. Each
// track is chained in order; skipped time points become in-track gaps. The
// lineage triples connect the mother's last position to each child's first.
// A single-position track that never gains a link through a lineage entry
// is dropped, since the graph only follows linked detections.
func ReadTrackList(r io.Reader) (*lineage.Graph, error) {
	var doc TrackListDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("tracklist: decode document: %w", err)
	}

	g := lineage.NewGraph()
	for i, track := range doc.Tracks {
		if len(track) == 0 {
			return nil, fmt.Errorf("tracklist: track %d is empty", i)
		}
		for j := 1; j < len(track); j++ {
			if track[j].T <= track[j-1].T {
				return nil, fmt.Errorf("tracklist: track %d: time points must strictly increase", i)
			}
			if err := g.AddLink(track[j-1], track[j]); err != nil {
				return nil, fmt.Errorf("tracklist: track %d: %w", i, err)
			}
		}
	}
	for k, entry := range doc.Lineages {
		if len(entry) != 3 {
			return nil, fmt.Errorf("tracklist: lineage %d: expected [mother child child], got %d indices", k, len(entry))
		}
		mother, child1, child2 := entry[0], entry[1], entry[2]
		for _, idx := range entry {
			if idx < 0 || idx >= len(doc.Tracks) {
				return nil, fmt.Errorf("tracklist: lineage %d: track index %d out of range", k, idx)
			}
		}
		if mother == child1 || mother == child2 || child1 == child2 {
			return nil, fmt.Errorf("tracklist: lineage %d: indices must be distinct", k)
		}
		motherTrack := doc.Tracks[mother]
		last := motherTrack[len(motherTrack)-1]
		for _, child := range [2]int{child1, child2} {
			first := doc.Tracks[child][0]
			if first.T <= last.T {
				return nil, fmt.Errorf("tracklist: lineage %d: track %d does not begin after its mother ends", k, child)
			}
			if err := g.AddLink(last, first); err != nil {
				return nil, fmt.Errorf("tracklist: lineage %d: %w", k, err)
			}
		}
	}
	return g, nil
}

// WriteTrackList writes the legacy per-track document: tracks in arena
// order with their occupied positions, divisions as index triples. Only
// two-way divisions are representable in this format, matching the
// historical exporter.
func WriteTrackList(w io.Writer, g *lineage.Graph) error {
	var doc TrackListDocument
	index := make(map[lineage.TrackID]int)
	for id, track := range g.Tracks() {
		index[id] = len(doc.Tracks)
		positions := make([]lineage.Position, 0, track.Len())
		for p := range track.Positions() {
			positions = append(positions, p)
		}
		doc.Tracks = append(doc.Tracks, positions)
	}
	for id, track := range g.Tracks() {
		next := track.NextIDs()
		if len(next) != 2 {
			continue
		}
		doc.Lineages = append(doc.Lineages, []int{index[id], index[next[0]], index[next[1]]})
	}
	if err := json.NewEncoder(w).Encode(&doc); err != nil {
		return fmt.Errorf("tracklist: encode document: %w", err)
	}
	return nil
}
