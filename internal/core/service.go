package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"lineagecore/internal/blob"
	"lineagecore/pkg/lineage"
	"lineagecore/pkg/nodelink"
)

// Clock abstracts the time source used for audit timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface. A nil function
// falls back to the system clock in UTC.
type ClockFunc func() time.Time

// Now returns the function's time normalized to UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder aggregates operation timings and outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer opens spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a single traced operation.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus labels the outcome recorded for an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for compliance logs.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries emitted by the service.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// auditOperations maps operation names to the entity and action recorded in
// audit entries. Operations outside the table are not audited.
var auditOperations = map[string]struct {
	Entity EntityType
	Action Action
}{
	"create_experiment": {EntityExperiment, ActionCreate},
	"update_experiment": {EntityExperiment, ActionUpdate},
	"delete_experiment": {EntityExperiment, ActionDelete},
	"add_link":          {EntityExperiment, ActionUpdate},
	"remove_link":       {EntityExperiment, ActionUpdate},
	"remove_position":   {EntityExperiment, ActionUpdate},
	"replace_position":  {EntityExperiment, ActionUpdate},
	"set_attribute":     {EntityExperiment, ActionUpdate},
	"set_lineage_data":  {EntityExperiment, ActionUpdate},
	"merge_graph":       {EntityExperiment, ActionUpdate},
}

// Service exposes higher-level transactional operations over a persistent
// store, instrumented with logging, metrics, tracing and audit hooks, plus
// the blob-backed experiment archive.
type Service struct {
	store   PersistentStore
	logger  Logger
	clock   Clock
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	archive blob.Store
	now     func() time.Time
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger injects a logger. Nil loggers are ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder wires operation metrics into the supplied recorder.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer wires per-operation spans into the supplied tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder wires audit entries into the supplied recorder.
func WithAuditRecorder(audit AuditRecorder) ServiceOption {
	return func(s *Service) {
		if audit != nil {
			s.audit = audit
		}
	}
}

// WithArchiveStore configures the blob backend used by ArchiveExperiment.
func WithArchiveStore(store blob.Store) ServiceOption {
	return func(s *Service) {
		s.archive = store
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		clock:   ClockFunc(nil),
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.now = selectNowFunc(store, s.clock)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store with the
// given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// RulesEngine returns the engine evaluated by the underlying store, or nil
// when the store does not expose one.
func (s *Service) RulesEngine() *RulesEngine {
	return extractRulesEngine(s.store)
}

// extractRulesEngine returns the engine backing the store, when exposed.
func extractRulesEngine(store PersistentStore) *RulesEngine {
	if provider, ok := store.(interface{ RulesEngine() *lineage.RulesEngine }); ok {
		return provider.RulesEngine()
	}
	return nil
}

// selectNowFunc picks the service time source. A store-provided clock wins
// so audit timestamps line up with the store's own bookkeeping, then an
// explicit Clock option, then the system clock in UTC.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if provider, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// run executes fn inside a store transaction with tracing, metrics, logging
// and audit bookkeeping around it.
func (s *Service) run(ctx context.Context, operation, entityID string, fn func(tx Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, operation)
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	duration := time.Since(start)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "experiment", entityID, "error", err)
		s.recordAuditError(ctx, operation, entityID, duration, err)
		return res, err
	}
	s.logger.Debug("operation committed", "operation", operation, "experiment", entityID, "violations", len(res.Violations))
	s.recordAuditSuccess(ctx, operation, entityID, duration)
	return res, nil
}

// recordAuditSuccess emits a success audit entry for known operations.
func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

// recordAuditError emits an error audit entry for known operations.
func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.now(),
	})
}

// CreateExperiment persists a new, empty experiment.
func (s *Service) CreateExperiment(ctx context.Context, name string) (Experiment, Result, error) {
	var created Experiment
	res, err := s.run(ctx, "create_experiment", name, func(tx Transaction) error {
		var err error
		created, err = tx.CreateExperiment(name)
		return err
	})
	return created, res, err
}

// UpdateExperiment mutates an experiment's graph using the provided function.
func (s *Service) UpdateExperiment(ctx context.Context, name string, mutate func(*Graph) error) (Experiment, Result, error) {
	var updated Experiment
	res, err := s.run(ctx, "update_experiment", name, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(name, mutate)
		return err
	})
	return updated, res, err
}

// DeleteExperiment removes an experiment.
func (s *Service) DeleteExperiment(ctx context.Context, name string) (Result, error) {
	return s.run(ctx, "delete_experiment", name, func(tx Transaction) error {
		return tx.DeleteExperiment(name)
	})
}

// AddLink connects two positions within an experiment.
func (s *Service) AddLink(ctx context.Context, experiment string, p1, p2 Position) (Result, error) {
	return s.run(ctx, "add_link", experiment, func(tx Transaction) error {
		return tx.AddLink(experiment, p1, p2)
	})
}

// RemoveLink disconnects two positions within an experiment.
func (s *Service) RemoveLink(ctx context.Context, experiment string, p1, p2 Position) (Result, error) {
	return s.run(ctx, "remove_link", experiment, func(tx Transaction) error {
		return tx.RemoveLink(experiment, p1, p2)
	})
}

// RemovePosition deletes a position along with its links and attributes.
func (s *Service) RemovePosition(ctx context.Context, experiment string, pos Position) (Result, error) {
	return s.run(ctx, "remove_position", experiment, func(tx Transaction) error {
		return tx.RemovePosition(experiment, pos)
	})
}

// ReplacePosition moves a detection without touching its links.
func (s *Service) ReplacePosition(ctx context.Context, experiment string, old, new Position) (Result, error) {
	return s.run(ctx, "replace_position", experiment, func(tx Transaction) error {
		return tx.ReplacePosition(experiment, old, new)
	})
}

// SetAttribute stores an attribute value on a position.
func (s *Service) SetAttribute(ctx context.Context, experiment string, pos Position, name string, value any) (Result, error) {
	return s.run(ctx, "set_attribute", experiment, func(tx Transaction) error {
		return tx.SetAttribute(experiment, pos, name, value)
	})
}

// SetLineageData stores lineage-wide data on the lineage containing pos.
func (s *Service) SetLineageData(ctx context.Context, experiment string, pos Position, name string, value any) (Result, error) {
	return s.run(ctx, "set_lineage_data", experiment, func(tx Transaction) error {
		return tx.SetLineageData(experiment, pos, name, value)
	})
}

// MergeGraph adds all links and attributes of other into the experiment.
func (s *Service) MergeGraph(ctx context.Context, experiment string, other *Graph) (Result, error) {
	return s.run(ctx, "merge_graph", experiment, func(tx Transaction) error {
		return tx.MergeGraph(experiment, other)
	})
}

// GetExperiment returns a defensive copy of a stored experiment.
func (s *Service) GetExperiment(name string) (Experiment, bool) {
	return s.store.GetExperiment(name)
}

// ListExperiments returns all stored experiments sorted by name.
func (s *Service) ListExperiments() []Experiment {
	return s.store.ListExperiments()
}

// ErrNoArchive is returned by ArchiveExperiment when no blob store was
// configured via WithArchiveStore.
var ErrNoArchive = errors.New("core: no archive store configured")

// ArchiveExperiment renders the experiment's tracking graph to its node-link
// JSON form and stores it through the configured blob store. The object key
// embeds the archive timestamp; with the create-only Put contract this makes
// finished archives immutable.
func (s *Service) ArchiveExperiment(ctx context.Context, name string) (blob.ObjectInfo, error) {
	const operation = "archive_experiment"
	ctx, span := s.tracer.Start(ctx, operation)
	start := time.Now()
	info, err := s.archiveExperiment(ctx, name)
	duration := time.Since(start)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("archive failed", "experiment", name, "error", err)
		return blob.ObjectInfo{}, err
	}
	s.logger.Info("experiment archived", "experiment", name, "key", info.Key, "bytes", info.Size)
	return info, nil
}

func (s *Service) archiveExperiment(ctx context.Context, name string) (blob.ObjectInfo, error) {
	if s.archive == nil {
		return blob.ObjectInfo{}, ErrNoArchive
	}
	exp, ok := s.store.GetExperiment(name)
	if !ok {
		return blob.ObjectInfo{}, fmt.Errorf("experiment %q not found", name)
	}
	g := exp.Graph
	if g == nil {
		g = lineage.NewGraph()
	}
	doc, err := nodelink.Encode(g)
	if err != nil {
		return blob.ObjectInfo{}, fmt.Errorf("encode experiment %q: %w", name, err)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return blob.ObjectInfo{}, fmt.Errorf("marshal experiment %q: %w", name, err)
	}
	key := path.Join("archives", name, s.now().Format("20060102T150405.000000000")+".json")
	info, err := s.archive.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"experiment": name},
	})
	if err != nil {
		return blob.ObjectInfo{}, fmt.Errorf("store archive for %q: %w", name, err)
	}
	return info, nil
}
