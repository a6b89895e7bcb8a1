package core

import (
	"fmt"
	"os"

	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/pkg/lineage"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = lineage.Transaction
	TransactionView = lineage.TransactionView
	PersistentStore = lineage.PersistentStore
)

// MemoryStore is the canonical in-memory persistent store.
type MemoryStore = memory.Store

// NewMemoryStore constructs an in-memory store with the given rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	return memory.NewStore(engine)
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	LINEAGECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	LINEAGECORE_SQLITE_PATH: path to sqlite file (default ./lineagecore.db)
//	LINEAGECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("LINEAGECORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return NewMemoryStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("LINEAGECORE_SQLITE_PATH")
		ss, err := NewSQLiteStore(path, engine)
		if err != nil {
			return nil, err
		}
		return ss, nil
	case StoragePostgres:
		dsn := os.Getenv("LINEAGECORE_POSTGRES_DSN")
		ps, err := NewPostgresStore(dsn, engine)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
