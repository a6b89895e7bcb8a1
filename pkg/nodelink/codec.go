package nodelink

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"lineagecore/pkg/lineage"
)

// Encode converts a graph into a document. Nodes cover every tracked
// position plus every position that only carries attributes; both nodes and
// links are sorted by time and coordinates so that the same graph always
// serializes to the same bytes.
func Encode(g *lineage.Graph) (*Document, error) {
	doc := &Document{Graph: map[string]any{}}

	seen := make(map[lineage.Position]bool)
	for p := range g.AllPositions() {
		seen[p] = true
	}
	for _, name := range g.AttributeNames() {
		for p := range g.PositionsWithAttribute(name) {
			seen[p] = true
		}
	}
	doc.Nodes = make([]Node, 0, len(seen))
	for p := range seen {
		node := Node{ID: p}
		for name, value := range g.AttributesOf(p) {
			if node.Attributes == nil {
				node.Attributes = make(map[string]any)
			}
			node.Attributes[name] = value
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	sort.Slice(doc.Nodes, func(i, j int) bool {
		return lessPosition(doc.Nodes[i].ID, doc.Nodes[j].ID)
	})

	// Lineage data is written on the outgoing links of the position that
	// starts the lineage.
	starts := make(map[lineage.Position]map[string]any)
	for _, t := range g.StartingTracks() {
		var entries map[string]any
		for name, value := range g.LineageDataOf(t) {
			if entries == nil {
				entries = make(map[string]any)
			}
			entries[name] = value
		}
		if entries != nil {
			starts[t.FirstPosition()] = entries
		}
	}
	for a, b := range g.AllLinks() {
		doc.Links = append(doc.Links, Link{Source: a, Target: b, LineageData: starts[a]})
	}
	sort.Slice(doc.Links, func(i, j int) bool {
		if doc.Links[i].Source != doc.Links[j].Source {
			return lessPosition(doc.Links[i].Source, doc.Links[j].Source)
		}
		return lessPosition(doc.Links[i].Target, doc.Links[j].Target)
	})
	return doc, nil
}

// Decode rebuilds a graph from a document.
func Decode(doc *Document) (*lineage.Graph, error) {
	return DecodeRange(doc, math.MinInt, math.MaxInt)
}

// DecodeRange rebuilds a graph from the part of a document that lies within
// [minTimePoint, maxTimePoint]. Nodes outside the window are dropped, as
// are links with either endpoint outside it; lineage data only survives on
// links that are kept.
func DecodeRange(doc *Document, minTimePoint, maxTimePoint int) (*lineage.Graph, error) {
	g := lineage.NewGraph()
	for _, node := range doc.Nodes {
		if node.ID.T < minTimePoint || node.ID.T > maxTimePoint {
			continue
		}
		for name, value := range node.Attributes {
			if err := g.SetAttribute(node.ID, name, value); err != nil {
				return nil, fmt.Errorf("node %v: %w", node.ID, err)
			}
		}
	}
	for _, link := range doc.Links {
		if link.Source.T < minTimePoint || link.Target.T < minTimePoint ||
			link.Source.T > maxTimePoint || link.Target.T > maxTimePoint {
			continue
		}
		if err := g.AddLink(link.Source, link.Target); err != nil {
			return nil, fmt.Errorf("link %v to %v: %w", link.Source, link.Target, err)
		}
		if len(link.LineageData) == 0 {
			continue
		}
		track, ok := g.TrackOf(link.Source)
		if !ok {
			return nil, fmt.Errorf("link %v to %v: source not tracked after adding", link.Source, link.Target)
		}
		for name, value := range link.LineageData {
			if err := g.SetLineageData(track, name, value); err != nil {
				return nil, fmt.Errorf("lineage entry %q: %w", name, err)
			}
		}
	}
	return g, nil
}

// Read parses a document from a stream.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode node-link document: %w", err)
	}
	return &doc, nil
}

// Write serializes a document to a stream.
func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode node-link document: %w", err)
	}
	return nil
}

func lessPosition(a, b lineage.Position) bool {
	switch {
	case a.T != b.T:
		return a.T < b.T
	case a.X != b.X:
		return a.X < b.X
	case a.Y != b.Y:
		return a.Y < b.Y
	default:
		return a.Z < b.Z
	}
}
