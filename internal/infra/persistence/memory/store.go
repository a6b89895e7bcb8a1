// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lineagecore/pkg/lineage"
	"lineagecore/pkg/nodelink"
)

// Compile-time contract assertion ensuring memory.Store adheres to the
// persistence interface.
var _ lineage.PersistentStore = (*Store)(nil)

type (
	// Experiment aliases lineage.Experiment for in-memory persistence operations.
	Experiment = lineage.Experiment
	// Change aliases lineage.Change captured in transactions.
	Change = lineage.Change
	// Result aliases lineage.Result summarizing rule evaluation.
	Result = lineage.Result
	// RulesEngine aliases lineage.RulesEngine used to evaluate rules.
	RulesEngine = lineage.RulesEngine
	// Transaction aliases lineage.Transaction representing a mutable unit of work.
	Transaction = lineage.Transaction
	// TransactionView aliases lineage.TransactionView providing read-only state.
	TransactionView = lineage.TransactionView
	// PersistentStore aliases the lineage.PersistentStore abstraction.
	PersistentStore = lineage.PersistentStore
)

type memoryState struct {
	experiments map[string]Experiment
}

func newMemoryState() memoryState {
	return memoryState{experiments: make(map[string]Experiment)}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for name, exp := range s.experiments {
		cloned.experiments[name] = exp.Clone()
	}
	return cloned
}

// ExperimentRecord is one experiment in serialized form: the graph is
// flattened to its node-link document.
type ExperimentRecord struct {
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Tracking  *nodelink.Document `json:"tracking"`
}

// Snapshot captures a point-in-time clone of the store state in a form that
// survives JSON round trips.
type Snapshot struct {
	Experiments map[string]ExperimentRecord `json:"experiments"`
}

func snapshotFromMemoryState(state memoryState) (Snapshot, error) {
	s := Snapshot{Experiments: make(map[string]ExperimentRecord, len(state.experiments))}
	for name, exp := range state.experiments {
		record := ExperimentRecord{Name: exp.Name, CreatedAt: exp.CreatedAt, UpdatedAt: exp.UpdatedAt}
		if exp.Graph != nil {
			doc, err := nodelink.Encode(exp.Graph)
			if err != nil {
				return Snapshot{}, fmt.Errorf("encode experiment %q: %w", name, err)
			}
			record.Tracking = doc
		}
		s.Experiments[name] = record
	}
	return s, nil
}

func memoryStateFromSnapshot(s Snapshot) (memoryState, error) {
	state := newMemoryState()
	for name, record := range migrateSnapshot(s).Experiments {
		exp := Experiment{Name: name, CreatedAt: record.CreatedAt, UpdatedAt: record.UpdatedAt}
		if record.Tracking != nil {
			g, err := nodelink.Decode(record.Tracking)
			if err != nil {
				return memoryState{}, fmt.Errorf("decode experiment %q: %w", name, err)
			}
			exp.Graph = g
		} else {
			exp.Graph = lineage.NewGraph()
		}
		state.experiments[name] = exp
	}
	return state, nil
}

// migrateSnapshot repairs snapshots written by older builds or edited by
// hand: missing maps become empty and the map key wins over a stale name
// field.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Experiments == nil {
		snapshot.Experiments = map[string]ExperimentRecord{}
	}
	for name, record := range snapshot.Experiments {
		if record.Name != name {
			record.Name = name
			snapshot.Experiments[name] = record
		}
	}
	return snapshot
}

// Store provides an in-memory transactional store for experiments.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = lineage.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) error {
	state, err := memoryStateFromSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to
// rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListExperiments returns all experiments within the snapshot, sorted by
// name.
func (v transactionView) ListExperiments() []Experiment {
	out := make([]Experiment, 0, len(v.state.experiments))
	for _, exp := range v.state.experiments {
		out = append(out, exp.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindExperiment retrieves an experiment by name from the snapshot.
func (v transactionView) FindExperiment(name string) (Experiment, bool) {
	exp, ok := v.state.experiments[name]
	if !ok {
		return Experiment{}, false
	}
	return exp.Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, lineage.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetExperiment retrieves an experiment by name.
func (s *Store) GetExperiment(name string) (Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.state.experiments[name]
	if !ok {
		return Experiment{}, false
	}
	return exp.Clone(), true
}

// ListExperiments returns all experiments sorted by name.
func (s *Store) ListExperiments() []Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListExperiments()
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindExperiment exposes experiment lookup within the transaction scope.
func (tx *transaction) FindExperiment(name string) (Experiment, bool) {
	exp, ok := tx.state.experiments[name]
	if !ok {
		return Experiment{}, false
	}
	return exp.Clone(), true
}

// CreateExperiment stores a new, empty experiment within the transaction.
func (tx *transaction) CreateExperiment(name string) (Experiment, error) {
	if name == "" {
		return Experiment{}, errors.New("experiment requires a name")
	}
	if _, exists := tx.state.experiments[name]; exists {
		return Experiment{}, fmt.Errorf("experiment %q already exists", name)
	}
	exp := Experiment{Name: name, CreatedAt: tx.now, UpdatedAt: tx.now, Graph: lineage.NewGraph()}
	tx.state.experiments[name] = exp.Clone()
	tx.recordChange(Change{Entity: lineage.EntityExperiment, Action: lineage.ActionCreate, After: exp.Summary()})
	return exp, nil
}

// UpdateExperiment mutates an experiment's graph using the provided function.
// The mutation runs on a clone, so a failed mutation leaves the transaction
// state untouched.
func (tx *transaction) UpdateExperiment(name string, mutate func(*lineage.Graph) error) (Experiment, error) {
	current, ok := tx.state.experiments[name]
	if !ok {
		return Experiment{}, fmt.Errorf("experiment %q not found", name)
	}
	before := current.Summary()
	working := current.Clone()
	if working.Graph == nil {
		working.Graph = lineage.NewGraph()
	}
	if err := mutate(working.Graph); err != nil {
		return Experiment{}, err
	}
	working.Name = name
	working.UpdatedAt = tx.now
	tx.state.experiments[name] = working
	tx.recordChange(Change{Entity: lineage.EntityExperiment, Action: lineage.ActionUpdate, Before: before, After: working.Summary()})
	return working.Clone(), nil
}

// DeleteExperiment removes an experiment from the transaction state.
func (tx *transaction) DeleteExperiment(name string) error {
	current, ok := tx.state.experiments[name]
	if !ok {
		return fmt.Errorf("experiment %q not found", name)
	}
	delete(tx.state.experiments, name)
	tx.recordChange(Change{Entity: lineage.EntityExperiment, Action: lineage.ActionDelete, Before: current.Summary()})
	return nil
}

// AddLink connects two positions in the experiment's graph.
func (tx *transaction) AddLink(experiment string, p1, p2 lineage.Position) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		return g.AddLink(p1, p2)
	})
	return err
}

// RemoveLink disconnects two positions in the experiment's graph.
func (tx *transaction) RemoveLink(experiment string, p1, p2 lineage.Position) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		g.RemoveLink(p1, p2)
		return nil
	})
	return err
}

// RemovePosition deletes a position along with its links and attributes.
func (tx *transaction) RemovePosition(experiment string, pos lineage.Position) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		g.RemovePosition(pos)
		return nil
	})
	return err
}

// ReplacePosition moves a detection without touching its links.
func (tx *transaction) ReplacePosition(experiment string, old, new lineage.Position) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		return g.ReplacePosition(old, new)
	})
	return err
}

// SetAttribute stores an attribute value on a position.
func (tx *transaction) SetAttribute(experiment string, pos lineage.Position, name string, value any) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		return g.SetAttribute(pos, name, value)
	})
	return err
}

// SetLineageData stores lineage-wide data on the lineage containing pos.
func (tx *transaction) SetLineageData(experiment string, pos lineage.Position, name string, value any) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		track, ok := g.TrackOf(pos)
		if !ok {
			return fmt.Errorf("position %v is not tracked", pos)
		}
		return g.SetLineageData(track, name, value)
	})
	return err
}

// MergeGraph adds all links and attributes of other into the experiment.
func (tx *transaction) MergeGraph(experiment string, other *lineage.Graph) error {
	_, err := tx.UpdateExperiment(experiment, func(g *lineage.Graph) error {
		if other != nil {
			g.AddAll(other)
		}
		return nil
	})
	return err
}
