// Package nodelink reads and writes lineage graphs in the D3.js node-link
// JSON format, the interchange format of the tracking files:
//
//	{"directed": false, "multigraph": false, "graph": {},
//	 "nodes": [{"id": {"x": …, "y": …, "z": …, "_time_point_number": …}, …}, …],
//	 "links": [{"source": {…}, "target": {…}, "__lineage_name": …}, …]}
//
// Position attributes are flattened into their node next to the "id" key,
// which is why "id" is a reserved attribute name. Lineage data is carried on
// the links whose source position starts a lineage, under names prefixed
// with "__lineage_".
package nodelink

import (
	"encoding/json"
	"fmt"
	"strings"

	"lineagecore/pkg/lineage"
)

// lineagePrefix marks lineage data entries on serialized links.
const lineagePrefix = "__lineage_"

// Node is one serialized position together with its attributes.
type Node struct {
	ID         lineage.Position
	Attributes map[string]any
}

// MarshalJSON flattens the attributes next to the id key.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attributes)+1)
	for k, v := range n.Attributes {
		out[k] = v
	}
	out["id"] = n.ID
	return json.Marshal(out)
}

// UnmarshalJSON splits the id key from the flattened attributes.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("node without id key")
	}
	if err := json.Unmarshal(idRaw, &n.ID); err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	n.Attributes = nil
	for k, valueRaw := range raw {
		if k == "id" {
			continue
		}
		var v any
		if err := json.Unmarshal(valueRaw, &v); err != nil {
			return fmt.Errorf("node attribute %q: %w", k, err)
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]any)
		}
		n.Attributes[k] = v
	}
	return nil
}

// Link is one serialized edge. LineageData is only filled on links whose
// source starts a lineage.
type Link struct {
	Source      lineage.Position
	Target      lineage.Position
	LineageData map[string]any
}

// MarshalJSON writes the endpoints and prefixes any lineage entries.
func (l Link) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.LineageData)+2)
	for k, v := range l.LineageData {
		out[lineagePrefix+k] = v
	}
	out["source"] = l.Source
	out["target"] = l.Target
	return json.Marshal(out)
}

// UnmarshalJSON reads the endpoints and strips the lineage prefix.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sourceRaw, ok := raw["source"]
	if !ok {
		return fmt.Errorf("link without source key")
	}
	if err := json.Unmarshal(sourceRaw, &l.Source); err != nil {
		return fmt.Errorf("link source: %w", err)
	}
	targetRaw, ok := raw["target"]
	if !ok {
		return fmt.Errorf("link without target key")
	}
	if err := json.Unmarshal(targetRaw, &l.Target); err != nil {
		return fmt.Errorf("link target: %w", err)
	}
	l.LineageData = nil
	for k, valueRaw := range raw {
		if !strings.HasPrefix(k, lineagePrefix) {
			continue
		}
		var v any
		if err := json.Unmarshal(valueRaw, &v); err != nil {
			return fmt.Errorf("link entry %q: %w", k, err)
		}
		if l.LineageData == nil {
			l.LineageData = make(map[string]any)
		}
		l.LineageData[strings.TrimPrefix(k, lineagePrefix)] = v
	}
	return nil
}

// Document is a complete node-link file.
type Document struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Graph      map[string]any `json:"graph"`
	Nodes      []Node         `json:"nodes"`
	Links      []Link         `json:"links"`
}
