// Package imports reads and writes the interchange formats used to move
// tracking data between tools: Cell Tracking Challenge track files and the
// legacy per-track list documents.
package imports

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lineagecore/pkg/lineage"
)

// ctcRecord is one line of a Cell Tracking Challenge track file.
type ctcRecord struct {
	label  int
	begin  int
	end    int
	parent int
}

// WriteCTC writes the track overview in the Cell Tracking Challenge text
// format ("man_track.txt"): one record per track, "label begin end parent".
// All labels are offset by one because label 0 means "no parent", and a
// parent is only written when the track continues from exactly one earlier
// track. Positions that are not part of any track are not represented in
// this format.
func WriteCTC(w io.Writer, g *lineage.Graph) error {
	bw := bufio.NewWriter(w)
	for id, track := range g.Tracks() {
		parent := 0
		if prev := track.PreviousIDs(); len(prev) == 1 {
			parent = int(prev[0]) + 1
		}
		if _, err := fmt.Fprintf(bw, "%d %d %d %d\n",
			int(id)+1, track.MinTimePoint(), track.MaxTimePoint(), parent); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadCTC parses a Cell Tracking Challenge track file. The text format
// carries no geometry, so each track is synthesized on its own x lane
// (x = label, y = z = 0) with one position per covered time point. Records
// that end up without any link keep their single position as an attribute
// carrier with a "ctc_id" entry, mirroring how the full loaders tag
// segmented objects.
func ReadCTC(r io.Reader) (*lineage.Graph, error) {
	var records []ctcRecord
	byLabel := make(map[int]ctcRecord)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("ctc: line %d: expected \"label begin end parent\", got %d fields", lineNo, len(fields))
		}
		var values [4]int
		for i, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("ctc: line %d: %w", lineNo, err)
			}
			values[i] = v
		}
		rec := ctcRecord{label: values[0], begin: values[1], end: values[2], parent: values[3]}
		switch {
		case rec.label < 1:
			return nil, fmt.Errorf("ctc: line %d: track label %d must be positive", lineNo, rec.label)
		case rec.end < rec.begin:
			return nil, fmt.Errorf("ctc: line %d: track %d ends before it begins", lineNo, rec.label)
		case rec.parent < 0:
			return nil, fmt.Errorf("ctc: line %d: negative parent label %d", lineNo, rec.parent)
		}
		if _, dup := byLabel[rec.label]; dup {
			return nil, fmt.Errorf("ctc: line %d: duplicate track label %d", lineNo, rec.label)
		}
		byLabel[rec.label] = rec
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ctc: %w", err)
	}

	g := lineage.NewGraph()
	for _, rec := range records {
		prev := lanePosition(rec.label, rec.begin)
		for tp := rec.begin + 1; tp <= rec.end; tp++ {
			cur := lanePosition(rec.label, tp)
			if err := g.AddLink(prev, cur); err != nil {
				return nil, fmt.Errorf("ctc: track %d: %w", rec.label, err)
			}
			prev = cur
		}
	}
	for _, rec := range records {
		if rec.parent == 0 {
			continue
		}
		parent, ok := byLabel[rec.parent]
		if !ok {
			return nil, fmt.Errorf("ctc: track %d references unknown parent %d", rec.label, rec.parent)
		}
		if parent.label == rec.label {
			return nil, fmt.Errorf("ctc: track %d is its own parent", rec.label)
		}
		if parent.end >= rec.begin {
			return nil, fmt.Errorf("ctc: parent track %d does not end before track %d begins", rec.parent, rec.label)
		}
		if err := g.AddLink(lanePosition(parent.label, parent.end), lanePosition(rec.label, rec.begin)); err != nil {
			return nil, fmt.Errorf("ctc: track %d to parent %d: %w", rec.label, rec.parent, err)
		}
	}
	for _, rec := range records {
		if rec.begin != rec.end {
			continue
		}
		p := lanePosition(rec.label, rec.begin)
		if g.ContainsPosition(p) {
			continue
		}
		if err := g.SetAttribute(p, "ctc_id", rec.label); err != nil {
			return nil, fmt.Errorf("ctc: track %d: %w", rec.label, err)
		}
	}
	return g, nil
}

func lanePosition(label, timePoint int) lineage.Position {
	return lineage.NewPosition(float64(label), 0, 0, timePoint)
}
