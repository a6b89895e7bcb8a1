package core

import "lineagecore/internal/infra/persistence/postgres"

// PostgresStore is the server-database flavor of the persistent store.
type PostgresStore = postgres.Store

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(dsn string, engine *RulesEngine) (*postgres.Store, error) {
	return postgres.NewStore(dsn, engine)
}
