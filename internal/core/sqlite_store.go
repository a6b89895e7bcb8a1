package core

import "lineagecore/internal/infra/persistence/sqlite"

// SQLiteStore is the embedded-database flavor of the persistent store.
type SQLiteStore = sqlite.Store

// NewSQLiteStore constructs a SQLite-backed persistent store using the
// provided file path (may be empty for the default) and rules engine.
func NewSQLiteStore(path string, engine *RulesEngine) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine)
}
