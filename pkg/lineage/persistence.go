package lineage

import "context"

// Transaction exposes the experiment operations that a persistence
// implementation must support within an atomic scope. Position arguments are
// quantized by the graph, so callers may pass raw coordinates.
type Transaction interface {
	Snapshot() TransactionView
	CreateExperiment(name string) (Experiment, error)
	UpdateExperiment(name string, mutate func(*Graph) error) (Experiment, error)
	DeleteExperiment(name string) error
	AddLink(experiment string, p1, p2 Position) error
	RemoveLink(experiment string, p1, p2 Position) error
	RemovePosition(experiment string, pos Position) error
	ReplacePosition(experiment string, old, new Position) error
	SetAttribute(experiment string, pos Position, name string, value any) error
	SetLineageData(experiment string, pos Position, name string, value any) error
	MergeGraph(experiment string, other *Graph) error
	FindExperiment(name string) (Experiment, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListExperiments() []Experiment
	FindExperiment(name string) (Experiment, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetExperiment(name string) (Experiment, bool)
	ListExperiments() []Experiment
}
