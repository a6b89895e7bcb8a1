package core

import (
	"context"

	"lineagecore/pkg/lineage"
)

// cell is shorthand for building quantized positions in core package tests.
func cell(x, y, z float64, timePoint int) Position {
	return lineage.NewPosition(x, y, z, timePoint)
}

// fakePersistentStore is a minimal PersistentStore for tests that need a
// store without rules engine or clock providers.
type fakePersistentStore struct{}

func (*fakePersistentStore) RunInTransaction(context.Context, func(tx Transaction) error) (Result, error) {
	return Result{}, nil
}

func (*fakePersistentStore) View(context.Context, func(TransactionView) error) error { return nil }

func (*fakePersistentStore) GetExperiment(string) (Experiment, bool) { return Experiment{}, false }

func (*fakePersistentStore) ListExperiments() []Experiment { return nil }
