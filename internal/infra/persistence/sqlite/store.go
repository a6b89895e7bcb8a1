// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory store for transaction semantics and snapshots the full state to
// a single table after every successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/internal/trackmodel/sqlbundle"
	"lineagecore/pkg/lineage"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ lineage.PersistentStore = (*Store)(nil)

const experimentsBucket = "experiments"

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *lineage.RulesEngine) (*Store, error) {
	if path == "" {
		path = "lineagecore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create state table: %w", err)
		}
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if bucket != experimentsBucket {
			continue
		}
		if err := json.Unmarshal(payload, &snapshot.Experiments); err != nil {
			return fmt.Errorf("decode experiments: %w", err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return nil
	}
	return s.ImportState(snapshot)
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, err := s.ExportState()
	if err != nil {
		return err
	}
	data, err := json.Marshal(snapshot.Experiments)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload, updated_at=datetime('now')`, experimentsBucket, data); err != nil {
		retErr = fmt.Errorf("upsert %s: %w", experimentsBucket, err)
		return retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = err
		return retErr
	}
	return nil
}

// RunInTransaction applies the provided function within a transaction, then
// snapshots state to SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx lineage.Transaction) error) (lineage.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
