package exports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"lineagecore/internal/blob"
	"lineagecore/internal/core"
	"lineagecore/pkg/lineage"
	"lineagecore/pkg/nodelink"
)

func waitForTerminal(t *testing.T, w *Worker, id string) ExportRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		current, ok := w.GetExport(id)
		if !ok {
			t.Fatalf("export %s disappeared", id)
		}
		if current.Status == ExportStatusSucceeded || current.Status == ExportStatusFailed {
			return current
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return ExportRecord{}
}

func readObject(t *testing.T, store blob.Store, key string) []byte {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return payload
}

func TestWorkerProcessesExport(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	store := blob.NewMemory()
	audit := &MemoryAuditLog{}
	worker := NewWorker(svc, store, audit)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	ctx := context.Background()
	if _, _, err := svc.CreateExperiment(ctx, "crypt-1"); err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	a := lineage.NewPosition(1.5, 2, 0, 3)
	b := lineage.NewPosition(1.25, 2, 0, 4)
	if _, err := svc.AddLink(ctx, "crypt-1", a, b); err != nil {
		t.Fatalf("add link: %v", err)
	}

	record, err := worker.EnqueueExport(ctx, ExportInput{
		Experiment:  "crypt-1",
		Formats:     []Format{FormatNodeLink, FormatCTC, FormatCSV},
		RequestedBy: "tracker@lab",
		Reason:      "nightly export",
	})
	if err != nil {
		t.Fatalf("enqueue export: %v", err)
	}
	if record.Status != ExportStatusQueued {
		t.Fatalf("expected queued status, got %s", record.Status)
	}

	final := waitForTerminal(t, worker, record.ID)
	if final.Status != ExportStatusSucceeded {
		t.Fatalf("export failed: %s", final.Error)
	}
	if len(final.Artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(final.Artifacts))
	}
	if final.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	prefix := path.Join("exports", "crypt-1", record.ID)
	wantKeys := []string{
		path.Join(prefix, "graph.json"),
		path.Join(prefix, "man_track.txt"),
		path.Join(prefix, "positions.csv"),
	}
	for i, artifact := range final.Artifacts {
		if artifact.Key != wantKeys[i] {
			t.Errorf("artifact %d key = %s, want %s", i, artifact.Key, wantKeys[i])
		}
		if artifact.Metadata["experiment"] != "crypt-1" {
			t.Errorf("artifact %d missing experiment metadata: %v", i, artifact.Metadata)
		}
		if artifact.Metadata["schema_version"] == "" {
			t.Errorf("artifact %d missing schema_version metadata: %v", i, artifact.Metadata)
		}
	}

	var doc nodelink.Document
	if err := json.Unmarshal(readObject(t, store, wantKeys[0]), &doc); err != nil {
		t.Fatalf("decode node-link artifact: %v", err)
	}
	g, err := nodelink.Decode(&doc)
	if err != nil {
		t.Fatalf("rebuild graph: %v", err)
	}
	if !g.ContainsLink(a, b) {
		t.Error("node-link artifact lost the link")
	}

	ctcLines := strings.Split(strings.TrimSpace(string(readObject(t, store, wantKeys[1]))), "\n")
	if len(ctcLines) != 1 {
		t.Errorf("got %d track records, want 1: %q", len(ctcLines), ctcLines)
	}

	csvLines := strings.Split(strings.TrimSpace(string(readObject(t, store, wantKeys[2]))), "\n")
	if csvLines[0] != "x,y,z,time_point,track_id" {
		t.Errorf("csv header = %q", csvLines[0])
	}
	if len(csvLines) != 3 {
		t.Errorf("got %d csv lines, want 3: %q", len(csvLines), csvLines)
	}

	listed, err := store.List(ctx, prefix)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	if len(listed) != 3 {
		t.Errorf("store lists %d objects under %s, want 3", len(listed), prefix)
	}

	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("stop worker: %v", err)
	}
	entries := audit.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d audit entries, want 3", len(entries))
	}
	wantStatuses := []ExportStatus{ExportStatusQueued, ExportStatusRunning, ExportStatusSucceeded}
	for i, entry := range entries {
		if entry.Status != wantStatuses[i] {
			t.Errorf("audit entry %d status = %s, want %s", i, entry.Status, wantStatuses[i])
		}
		if entry.Experiment != "crypt-1" {
			t.Errorf("audit entry %d experiment = %q", i, entry.Experiment)
		}
	}
	if entries[0].Actor != "tracker@lab" || entries[0].Reason != "nightly export" {
		t.Errorf("queued audit entry lost request metadata: %+v", entries[0])
	}
}

func TestWorkerDefaultFormats(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := NewWorker(svc, blob.NewMemory(), nil)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	ctx := context.Background()
	if _, _, err := svc.CreateExperiment(ctx, "plain"); err != nil {
		t.Fatalf("create experiment: %v", err)
	}

	record, err := worker.EnqueueExport(ctx, ExportInput{Experiment: "plain"})
	if err != nil {
		t.Fatalf("enqueue export: %v", err)
	}
	if len(record.Formats) != 2 || record.Formats[0] != FormatNodeLink || record.Formats[1] != FormatCSV {
		t.Fatalf("default formats = %v", record.Formats)
	}

	final := waitForTerminal(t, worker, record.ID)
	if final.Status != ExportStatusSucceeded {
		t.Fatalf("export failed: %s", final.Error)
	}
	if len(final.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(final.Artifacts))
	}
}

func TestWorkerEnqueueValidation(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	ctx := context.Background()
	if _, _, err := svc.CreateExperiment(ctx, "checked"); err != nil {
		t.Fatalf("create experiment: %v", err)
	}

	cases := []struct {
		name   string
		worker *Worker
		input  ExportInput
		want   string
	}{
		{"no source", NewWorker(nil, blob.NewMemory(), nil), ExportInput{Experiment: "checked"}, "source not configured"},
		{"no store", NewWorker(svc, nil, nil), ExportInput{Experiment: "checked"}, "store not configured"},
		{"blank name", NewWorker(svc, blob.NewMemory(), nil), ExportInput{Experiment: "  "}, "name required"},
		{"unknown experiment", NewWorker(svc, blob.NewMemory(), nil), ExportInput{Experiment: "missing"}, "not found"},
		{"unknown format", NewWorker(svc, blob.NewMemory(), nil), ExportInput{Experiment: "checked", Formats: []Format{Format("xml")}}, "unknown export format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.worker.EnqueueExport(ctx, tc.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWorkerDeduplicatesFormats(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := NewWorker(svc, blob.NewMemory(), nil)

	ctx := context.Background()
	if _, _, err := svc.CreateExperiment(ctx, "dupes"); err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	record, err := worker.EnqueueExport(ctx, ExportInput{
		Experiment: "dupes",
		Formats:    []Format{FormatCSV, FormatCSV, FormatNodeLink},
	})
	if err != nil {
		t.Fatalf("enqueue export: %v", err)
	}
	if len(record.Formats) != 2 || record.Formats[0] != FormatCSV || record.Formats[1] != FormatNodeLink {
		t.Fatalf("formats = %v", record.Formats)
	}
}

type transientSource struct {
	exp    lineage.Experiment
	served bool
}

func (s *transientSource) GetExperiment(name string) (lineage.Experiment, bool) {
	if !s.served && name == s.exp.Name {
		s.served = true
		return s.exp, true
	}
	return lineage.Experiment{}, false
}

func TestWorkerExperimentGoneBeforeProcess(t *testing.T) {
	source := &transientSource{exp: lineage.Experiment{Name: "fleeting", Graph: lineage.NewGraph()}}
	worker := NewWorker(source, blob.NewMemory(), nil)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	record, err := worker.EnqueueExport(context.Background(), ExportInput{Experiment: "fleeting"})
	if err != nil {
		t.Fatalf("enqueue export: %v", err)
	}
	final := waitForTerminal(t, worker, record.ID)
	if final.Status != ExportStatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "missing") {
		t.Fatalf("error = %q", final.Error)
	}
}

type failingPutStore struct{ blob.Store }

func (failingPutStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.ObjectInfo, error) {
	return blob.ObjectInfo{}, fmt.Errorf("put failed")
}

func TestWorkerStoreArtifactFailure(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := NewWorker(svc, failingPutStore{blob.NewMemory()}, nil)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	ctx := context.Background()
	if _, _, err := svc.CreateExperiment(ctx, "doomed"); err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	record, err := worker.EnqueueExport(ctx, ExportInput{Experiment: "doomed"})
	if err != nil {
		t.Fatalf("enqueue export: %v", err)
	}
	final := waitForTerminal(t, worker, record.ID)
	if final.Status != ExportStatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "store artifact failed") {
		t.Fatalf("error = %q", final.Error)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := NewWorker(svc, blob.NewMemory(), nil)
	worker.queue = make(chan exportTask, 1)
	worker.queue <- exportTask{id: "pre", experiment: "stuck"}

	ctx := context.Background()
	if _, _, err := svc.CreateExperiment(ctx, "stuck"); err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	_, err := worker.EnqueueExport(ctx, ExportInput{Experiment: "stuck"})
	if err == nil || !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("expected queue full error, got %v", err)
	}
	if got := worker.ListExports(); len(got) != 0 {
		t.Fatalf("rejected job still listed: %v", got)
	}
}

func TestWorkerListExports(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := NewWorker(svc, blob.NewMemory(), nil)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	ctx := context.Background()
	for _, name := range []string{"first", "second"} {
		if _, _, err := svc.CreateExperiment(ctx, name); err != nil {
			t.Fatalf("create experiment: %v", err)
		}
		record, err := worker.EnqueueExport(ctx, ExportInput{Experiment: name})
		if err != nil {
			t.Fatalf("enqueue export: %v", err)
		}
		final := waitForTerminal(t, worker, record.ID)
		if final.Status != ExportStatusSucceeded {
			t.Fatalf("export of %s failed: %s", name, final.Error)
		}
	}

	listed := worker.ListExports()
	if len(listed) != 2 {
		t.Fatalf("listed %d exports, want 2", len(listed))
	}
	if listed[0].CreatedAt.After(listed[1].CreatedAt) {
		t.Error("exports not sorted oldest first")
	}
	if _, ok := worker.GetExport("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestWorkerStopTwice(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := NewWorker(svc, blob.NewMemory(), nil)
	worker.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestRenderPositionsCSV(t *testing.T) {
	g := lineage.NewGraph()
	a := lineage.NewPosition(1.5, 2, 0, 3)
	b := lineage.NewPosition(1.25, 0, 0, 4)
	if err := g.AddLink(a, b); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	marker := lineage.NewPosition(9, 9, 9, 1)
	if err := g.SetAttribute(marker, "note", "debris"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}

	payload, err := renderPositionsCSV(g)
	if err != nil {
		t.Fatalf("renderPositionsCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	want := []string{
		"x,y,z,time_point,track_id",
		"9,9,9,1,-1",
		"1.5,2,0,3,0",
		"1.25,0,0,4,0",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i, line := range lines {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}
