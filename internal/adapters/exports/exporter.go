// Package exports renders stored experiments to interchange artifacts in
// the background and keeps the results in a blob store.
package exports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"lineagecore/internal/blob"
	"lineagecore/internal/imports"
	"lineagecore/internal/trackmodel"
	"lineagecore/pkg/lineage"
	"lineagecore/pkg/nodelink"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// Format selects an artifact rendering.
type Format string

const (
	// FormatNodeLink renders the node-link JSON document.
	FormatNodeLink Format = "nodelink"
	// FormatCTC renders the Cell Tracking Challenge track file.
	FormatCTC Format = "ctc"
	// FormatCSV renders a flat positions table.
	FormatCSV Format = "csv"
)

// fileName returns the artifact name stored under the job's key prefix.
func (f Format) fileName() string {
	switch f {
	case FormatNodeLink:
		return "graph.json"
	case FormatCTC:
		return "man_track.txt"
	case FormatCSV:
		return "positions.csv"
	default:
		return string(f)
	}
}

func (f Format) contentType() string {
	switch f {
	case FormatNodeLink:
		return "application/json"
	case FormatCTC:
		return "text/plain; charset=utf-8"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

func (f Format) known() bool {
	switch f {
	case FormatNodeLink, FormatCTC, FormatCSV:
		return true
	}
	return false
}

// ExportRecord tracks an export request and the resulting artifacts.
type ExportRecord struct {
	ID          string            `json:"id"`
	Experiment  string            `json:"experiment"`
	Formats     []Format          `json:"formats"`
	Status      ExportStatus      `json:"status"`
	Error       string            `json:"error,omitempty"`
	Artifacts   []blob.ObjectInfo `json:"artifacts,omitempty"`
	RequestedBy string            `json:"requested_by"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ExportInput represents an enqueue request for the worker.
type ExportInput struct {
	Experiment  string
	Formats     []Format
	RequestedBy string
	Reason      string
}

// ExportScheduler queues experiment export requests and exposes status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// Source resolves experiments at enqueue and render time. Both the core
// service and the persistent stores satisfy it.
type Source interface {
	GetExperiment(name string) (lineage.Experiment, bool)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Experiment string         `json:"experiment"`
	Status     ExportStatus   `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Worker executes experiment exports asynchronously.
type Worker struct {
	source Source
	store  blob.Store
	audit  AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id         string
	experiment string
}

// NewWorker constructs an export worker over the given experiment source
// and blob store.
func NewWorker(source Source, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan exportTask, 32),
		jobs:   make(map[string]*ExportRecord),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.source == nil {
		return ExportRecord{}, fmt.Errorf("export source not configured")
	}
	if w.store == nil {
		return ExportRecord{}, fmt.Errorf("export object store not configured")
	}

	name := strings.TrimSpace(input.Experiment)
	if name == "" {
		return ExportRecord{}, fmt.Errorf("experiment name required")
	}
	if _, ok := w.source.GetExperiment(name); !ok {
		return ExportRecord{}, fmt.Errorf("experiment %q not found", name)
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatNodeLink, FormatCSV}
	}
	uniqFormats := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if !format.known() {
			return ExportRecord{}, fmt.Errorf("unknown export format %q", format)
		}
		uniqFormats = append(uniqFormats, format)
		seen[format] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		Experiment:  name,
		Formats:     uniqFormats,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queuedSnapshot := record.copy()
	w.mu.Unlock()

	if w.audit != nil {
		w.audit.Record(ctx, AuditEntry{
			ID:         newID(),
			Action:     "experiment_export",
			Actor:      input.RequestedBy,
			Experiment: name,
			Status:     ExportStatusQueued,
			Reason:     input.Reason,
			OccurredAt: now,
		})
	}

	select {
	case w.queue <- exportTask{id: id, experiment: name}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return ExportRecord{}, fmt.Errorf("export queue full")
	}

	return queuedSnapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.RUnlock()
		return ExportRecord{}, false
	}
	snapshot := record.copy()
	w.mu.RUnlock()
	return snapshot, true
}

// ListExports returns snapshots of every known export job, oldest first.
func (w *Worker) ListExports() []ExportRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ExportRecord, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (w *Worker) process(task exportTask) {
	record := w.snapshot(task.id)
	if record == nil {
		return
	}

	exp, ok := w.source.GetExperiment(task.experiment)
	if !ok {
		w.fail(task.id, fmt.Sprintf("experiment %q missing", task.experiment))
		return
	}
	g := exp.Graph
	if g == nil {
		g = lineage.NewGraph()
	}

	w.markRunning(task.id)

	artifacts := make([]blob.ObjectInfo, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := w.render(format, g)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		key := path.Join("exports", task.experiment, task.id, format.fileName())
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: format.contentType(),
			Metadata: map[string]string{
				"experiment":     task.experiment,
				"export_id":      task.id,
				"format":         string(format),
				"schema_version": trackmodel.Version(),
			},
		})
		if err != nil {
			w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		artifacts = append(artifacts, info)
	}

	w.complete(task.id, artifacts)
}

func (w *Worker) snapshot(id string) *ExportRecord {
	w.mu.RLock()
	record, ok := w.jobs[id]
	w.mu.RUnlock()
	if !ok {
		return nil
	}
	return record
}

func (w *Worker) markRunning(id string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusRunning
		record.Error = ""
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         newID(),
			Action:     "experiment_export",
			Actor:      w.actorFor(id),
			Experiment: w.experimentFor(id),
			Status:     ExportStatusRunning,
			OccurredAt: now,
		})
	}
}

func (w *Worker) complete(id string, artifacts []blob.ObjectInfo) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         newID(),
			Action:     "experiment_export",
			Actor:      w.actorFor(id),
			Experiment: w.experimentFor(id),
			Status:     ExportStatusSucceeded,
			Metadata:   map[string]any{"artifacts": len(artifacts)},
			OccurredAt: now,
		})
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         newID(),
			Action:     "experiment_export",
			Actor:      w.actorFor(id),
			Experiment: w.experimentFor(id),
			Status:     ExportStatusFailed,
			Metadata:   map[string]any{"error": reason},
			OccurredAt: now,
		})
	}
}

func (w *Worker) actorFor(id string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return record.RequestedBy
	}
	return ""
}

func (w *Worker) experimentFor(id string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return record.Experiment
	}
	return ""
}

func (w *Worker) render(format Format, g *lineage.Graph) ([]byte, error) {
	switch format {
	case FormatNodeLink:
		doc, err := nodelink.Encode(g)
		if err != nil {
			return nil, fmt.Errorf("encode node-link document: %w", err)
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal node-link document: %w", err)
		}
		return payload, nil
	case FormatCTC:
		buf := &bytes.Buffer{}
		if err := imports.WriteCTC(buf, g); err != nil {
			return nil, fmt.Errorf("write track file: %w", err)
		}
		return buf.Bytes(), nil
	case FormatCSV:
		return renderPositionsCSV(g)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// renderPositionsCSV writes one row per position, tracked or attribute-only,
// with the owning track's ID or -1 when the position is untracked.
func renderPositionsCSV(g *lineage.Graph) ([]byte, error) {
	positions := make([]lineage.Position, 0, g.PositionCount())
	seen := make(map[lineage.Position]struct{}, g.PositionCount())
	for p := range g.AllPositions() {
		positions = append(positions, p)
		seen[p] = struct{}{}
	}
	for _, name := range g.AttributeNames() {
		for p := range g.PositionsWithAttribute(name) {
			if _, ok := seen[p]; ok {
				continue
			}
			positions = append(positions, p)
			seen[p] = struct{}{}
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return lessPosition(positions[i], positions[j])
	})

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"x", "y", "z", "time_point", "track_id"}); err != nil {
		return nil, err
	}
	for _, p := range positions {
		trackID := -1
		if track, ok := g.TrackOf(p); ok {
			if id, ok := g.IDOf(track); ok {
				trackID = int(id)
			}
		}
		row := []string{
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
			strconv.FormatFloat(p.Z, 'g', -1, 64),
			strconv.Itoa(p.T),
			strconv.Itoa(trackID),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
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

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]blob.ObjectInfo(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog captures audit entries in-memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(ctx context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
