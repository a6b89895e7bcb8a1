package lineage

import (
	"iter"
	"sort"
	"strings"
)

// The attribute store keeps named values per position without touching the
// Position type itself. The vocabulary is open; values should stay within
// what encoding/json round-trips (strings, numbers, booleans, lists, string
// maps), since the attribute tables travel with every saved file.

// SetAttribute stores a named value for one position. The name "id" is
// reserved for the serialization layer. Storing nil deletes the entry.
func (g *Graph) SetAttribute(p Position, name string, value any) error {
	if name == "id" {
		return ErrReservedAttribute
	}
	if value == nil {
		g.deleteAttribute(p, name)
		return nil
	}
	g.setAttribute(name, p, value)
	return nil
}

func (g *Graph) setAttribute(name string, p Position, value any) {
	values := g.attributes[name]
	if values == nil {
		values = make(map[Position]any)
		g.attributes[name] = values
	}
	values[p] = value
}

func (g *Graph) deleteAttribute(p Position, name string) {
	values := g.attributes[name]
	if values == nil {
		return
	}
	delete(values, p)
	if len(values) == 0 {
		delete(g.attributes, name)
	}
}

// Attribute returns the named value stored for p.
func (g *Graph) Attribute(p Position, name string) (any, bool) {
	values := g.attributes[name]
	if values == nil {
		return nil, false
	}
	v, ok := values[p]
	return v, ok
}

// AttributesOf yields every attribute stored for p.
func (g *Graph) AttributesOf(p Position) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for name, values := range g.attributes {
			if v, ok := values[p]; ok {
				if !yield(name, v) {
					return
				}
			}
		}
	}
}

// PositionsWithAttribute yields every position carrying the named attribute
// together with its value.
func (g *Graph) PositionsWithAttribute(name string) iter.Seq2[Position, any] {
	return func(yield func(Position, any) bool) {
		for p, v := range g.attributes[name] {
			if !yield(p, v) {
				return
			}
		}
	}
}

// AttributeNames returns the attribute names currently in use, sorted.
func (g *Graph) AttributeNames() []string {
	names := make([]string, 0, len(g.attributes))
	for name := range g.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) clearAttributes(p Position) {
	for name, values := range g.attributes {
		if _, ok := values[p]; ok {
			delete(values, p)
			if len(values) == 0 {
				delete(g.attributes, name)
			}
		}
	}
}

func (g *Graph) moveAttributes(old, new Position) {
	for _, values := range g.attributes {
		if v, ok := values[old]; ok {
			delete(values, old)
			values[new] = v
		}
	}
}

// Lineage data stores named values per lineage tree rather than per
// position. Entries live on the earliest track of the lineage and follow it
// through merges; reads and writes through any later track walk up first.

// SetLineageData stores a named value on the lineage the given track
// belongs to. The name "id" and names starting with "__" are reserved.
// Storing nil deletes the entry.
func (g *Graph) SetLineageData(t *Track, name string, value any) error {
	if name == "id" {
		return ErrReservedAttribute
	}
	if strings.HasPrefix(name, "__") {
		return ErrReservedPrefix
	}
	start := g.lineageStart(t)
	if value == nil {
		delete(start.lineageData, name)
		return nil
	}
	if start.lineageData == nil {
		start.lineageData = make(map[string]any)
	}
	start.lineageData[name] = value
	return nil
}

// LineageData returns the named value stored for the lineage the given
// track belongs to.
func (g *Graph) LineageData(t *Track, name string) (any, bool) {
	v, ok := g.lineageStart(t).lineageData[name]
	return v, ok
}

// LineageDataOf yields every lineage entry of the lineage the given track
// belongs to.
func (g *Graph) LineageDataOf(t *Track) iter.Seq2[string, any] {
	start := g.lineageStart(t)
	return func(yield func(string, any) bool) {
		for name, v := range start.lineageData {
			if !yield(name, v) {
				return
			}
		}
	}
}

// lineageStart walks up to the earliest track of the lineage. When a track
// has several pasts (a cell merge) the walk follows the first one, matching
// the stored location of the data.
func (g *Graph) lineageStart(t *Track) *Track {
	for len(t.prev) > 0 {
		t = g.tracks[t.prev[0]]
	}
	return t
}
