package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lineagecore/pkg/lineage"
)

func cell(x, y, z float64, timePoint int) lineage.Position {
	return lineage.NewPosition(x, y, z, timePoint)
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block-everything" }

func (blockingRule) Evaluate(_ context.Context, _ lineage.RuleView, changes []lineage.Change) (lineage.Result, error) {
	var res lineage.Result
	for range changes {
		res.Merge(lineage.Result{Violations: []lineage.Violation{{
			Rule:     "block-everything",
			Severity: lineage.SeverityBlock,
			Message:  "no changes allowed",
		}}})
	}
	return res, nil
}

type recordingRule struct {
	seen []lineage.Change
}

func (r *recordingRule) Name() string { return "recorder" }

func (r *recordingRule) Evaluate(_ context.Context, _ lineage.RuleView, changes []lineage.Change) (lineage.Result, error) {
	r.seen = append(r.seen, changes...)
	return lineage.Result{}, nil
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindExperiment("missing"); ok {
			t.Fatalf("unexpected experiment before creation")
		}
		created, err := tx.CreateExperiment("crypt-2")
		if err != nil {
			return err
		}
		if created.Graph == nil {
			t.Fatalf("expected creation to allocate a graph")
		}
		if err := tx.AddLink("crypt-2", cell(0, 0, 0, 0), cell(1, 0, 0, 1)); err != nil {
			return err
		}
		view := tx.Snapshot()
		if len(view.ListExperiments()) != 1 {
			t.Fatalf("transaction snapshot should see pending state")
		}
		if exp, ok := view.FindExperiment("crypt-2"); !ok || exp.Graph.LinkCount() != 1 {
			t.Fatalf("pending link not visible in snapshot")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}

	if got := len(store.ListExperiments()); got != 1 {
		t.Fatalf("expected one stored experiment, got %d", got)
	}
	exp, ok := store.GetExperiment("crypt-2")
	if !ok {
		t.Fatalf("experiment not persisted")
	}
	if exp.Graph.LinkCount() != 1 {
		t.Fatalf("expected persisted link, got %d", exp.Graph.LinkCount())
	}
	if exp.Name != "crypt-2" {
		t.Fatalf("unexpected name %q", exp.Name)
	}

	snapshot, err := store.ExportState()
	if err != nil {
		t.Fatalf("export state: %v", err)
	}
	if err := store.ImportState(Snapshot{}); err != nil {
		t.Fatalf("import empty state: %v", err)
	}
	if len(store.ListExperiments()) != 0 {
		t.Fatalf("import should replace existing state")
	}
	if err := store.ImportState(snapshot); err != nil {
		t.Fatalf("import exported state: %v", err)
	}
	restored, ok := store.GetExperiment("crypt-2")
	if !ok || restored.Graph.LinkCount() != 1 {
		t.Fatalf("state did not survive export/import round trip")
	}

	if store.RulesEngine() == nil {
		t.Fatalf("expected default rules engine")
	}
	if store.NowFunc()().Location() != time.UTC {
		t.Fatalf("expected UTC clock")
	}
}

func TestStoreBlocksOnRuleViolation(t *testing.T) {
	engine := lineage.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateExperiment("crypt-3")
		return err
	})
	if err == nil {
		t.Fatalf("expected blocked transaction")
	}
	var ruleErr lineage.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation in result")
	}
	if _, ok := store.GetExperiment("crypt-3"); ok {
		t.Fatalf("blocked transaction must not persist")
	}
}

func TestStoreRecordsChangesForRules(t *testing.T) {
	rule := &recordingRule{}
	engine := lineage.NewRulesEngine()
	engine.Register(rule)
	store := NewStore(engine)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateExperiment("crypt-4"); err != nil {
			return err
		}
		return tx.AddLink("crypt-4", cell(0, 0, 0, 0), cell(1, 0, 0, 1))
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(rule.seen) != 2 {
		t.Fatalf("expected 2 recorded changes, got %d", len(rule.seen))
	}
	if rule.seen[0].Entity != "experiment" || rule.seen[0].Action != "create" {
		t.Fatalf("unexpected first change %+v", rule.seen[0])
	}
	if rule.seen[1].Action != "update" {
		t.Fatalf("unexpected second change %+v", rule.seen[1])
	}
	after, ok := rule.seen[1].After.(lineage.ExperimentSummary)
	if !ok {
		t.Fatalf("expected summary payload, got %T", rule.seen[1].After)
	}
	if after.Positions != 2 || after.Tracks != 1 {
		t.Fatalf("summary should reflect the added link, got %+v", after)
	}
}

func TestTransactionErrorDiscardsChanges(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateExperiment("doomed"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ListExperiments()) != 0 {
		t.Fatalf("failed transaction must not persist")
	}
}

func TestCreateExperimentValidation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateExperiment(""); err == nil {
			t.Fatalf("expected error for blank name")
		}
		if _, err := tx.CreateExperiment("crypt-5"); err != nil {
			return err
		}
		if _, err := tx.CreateExperiment("crypt-5"); err == nil {
			t.Fatalf("expected error for duplicate name")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
}

func TestUpdateExperimentErrors(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed(t, store, "crypt-6", cell(0, 0, 0, 0), cell(1, 0, 0, 1))

	boom := errors.New("mutator failed")
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.UpdateExperiment("missing", func(*lineage.Graph) error { return nil }); err == nil {
			t.Fatalf("expected error for unknown experiment")
		}
		_, err := tx.UpdateExperiment("crypt-6", func(g *lineage.Graph) error {
			if err := g.AddLink(cell(1, 0, 0, 1), cell(2, 0, 0, 2)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected mutator error, got %v", err)
		}
		// The failed mutator ran on a scratch copy.
		exp, ok := tx.FindExperiment("crypt-6")
		if !ok || exp.Graph.LinkCount() != 1 {
			t.Fatalf("failed update must leave transaction state untouched")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	exp, _ := store.GetExperiment("crypt-6")
	if exp.Graph.LinkCount() != 1 {
		t.Fatalf("failed update leaked into stored state")
	}
}

func TestTransactionGraphOperations(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	a := cell(0, 0, 0, 0)
	b := cell(1, 0, 0, 1)
	c := cell(2, 0, 0, 2)
	moved := cell(2.5, 0, 0, 2)

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateExperiment("crypt-7"); err != nil {
			return err
		}
		if err := tx.AddLink("crypt-7", a, b); err != nil {
			return err
		}
		if err := tx.AddLink("crypt-7", b, c); err != nil {
			return err
		}
		if err := tx.ReplacePosition("crypt-7", c, moved); err != nil {
			return err
		}
		if err := tx.SetAttribute("crypt-7", b, "ending", "dead"); err != nil {
			return err
		}
		if err := tx.SetLineageData("crypt-7", a, "name", "stem"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}

	exp, _ := store.GetExperiment("crypt-7")
	if exp.Graph.LinkCount() != 2 {
		t.Fatalf("expected 2 links, got %d", exp.Graph.LinkCount())
	}
	if !exp.Graph.ContainsLink(b, moved) {
		t.Fatalf("replacement did not rewire link")
	}
	if v, ok := exp.Graph.Attribute(b, "ending"); !ok || v != "dead" {
		t.Fatalf("attribute missing after commit")
	}
	track, ok := exp.Graph.TrackOf(a)
	if !ok {
		t.Fatalf("expected track for %v", a)
	}
	if v, ok := exp.Graph.LineageData(track, "name"); !ok || v != "stem" {
		t.Fatalf("lineage data missing after commit")
	}

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.RemoveLink("crypt-7", a, b); err != nil {
			return err
		}
		return tx.RemovePosition("crypt-7", a)
	})
	if err != nil {
		t.Fatalf("unlink transaction: %v", err)
	}
	exp, _ = store.GetExperiment("crypt-7")
	if exp.Graph.LinkCount() != 1 {
		t.Fatalf("expected 1 link after removal, got %d", exp.Graph.LinkCount())
	}
	if exp.Graph.ContainsPosition(a) {
		t.Fatalf("removed position still present")
	}
}

func TestSetLineageDataRequiresTrackedPosition(t *testing.T) {
	store := NewStore(nil)
	seed(t, store, "crypt-8", cell(0, 0, 0, 0), cell(1, 0, 0, 1))

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		err := tx.SetLineageData("crypt-8", cell(9, 9, 9, 5), "name", "ghost")
		if err == nil {
			t.Fatalf("expected error for untracked position")
		}
		if !strings.Contains(err.Error(), "not tracked") {
			t.Fatalf("unexpected error: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
}

func TestMergeGraphCombinesTracking(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed(t, store, "crypt-9", cell(0, 0, 0, 0), cell(1, 0, 0, 1))

	other := lineage.NewGraph()
	other.AddLink(cell(5, 5, 5, 0), cell(6, 5, 5, 1))
	other.SetAttribute(cell(6, 5, 5, 1), "ending", "dead")

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.MergeGraph("missing", other); err == nil {
			t.Fatalf("expected error for unknown experiment")
		}
		return tx.MergeGraph("crypt-9", other)
	})
	if err != nil {
		t.Fatalf("merge transaction: %v", err)
	}
	exp, _ := store.GetExperiment("crypt-9")
	if exp.Graph.LinkCount() != 2 {
		t.Fatalf("expected merged links, got %d", exp.Graph.LinkCount())
	}
	if v, ok := exp.Graph.Attribute(cell(6, 5, 5, 1), "ending"); !ok || v != "dead" {
		t.Fatalf("merged attribute missing")
	}
}

func TestDeleteExperiment(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed(t, store, "crypt-10", cell(0, 0, 0, 0), cell(1, 0, 0, 1))

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.DeleteExperiment("missing"); err == nil {
			t.Fatalf("expected error for unknown experiment")
		}
		return tx.DeleteExperiment("crypt-10")
	})
	if err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if _, ok := store.GetExperiment("crypt-10"); ok {
		t.Fatalf("experiment survived deletion")
	}
}

func TestViewsAndGettersReturnClones(t *testing.T) {
	store := NewStore(nil)
	seed(t, store, "crypt-11", cell(0, 0, 0, 0), cell(1, 0, 0, 1))

	exp, _ := store.GetExperiment("crypt-11")
	_ = exp.Graph.AddLink(cell(1, 0, 0, 1), cell(2, 0, 0, 2))

	stored, _ := store.GetExperiment("crypt-11")
	if stored.Graph.LinkCount() != 1 {
		t.Fatalf("mutating a getter result leaked into the store")
	}

	err := store.View(context.Background(), func(view TransactionView) error {
		listed := view.ListExperiments()
		if len(listed) != 1 {
			t.Fatalf("expected one experiment in view")
		}
		_ = listed[0].Graph.AddLink(cell(1, 0, 0, 1), cell(3, 0, 0, 2))
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	stored, _ = store.GetExperiment("crypt-11")
	if stored.Graph.LinkCount() != 1 {
		t.Fatalf("mutating a view result leaked into the store")
	}
}

func seed(t *testing.T, store *Store, name string, from, to lineage.Position) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateExperiment(name); err != nil {
			return err
		}
		return tx.AddLink(name, from, to)
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}
