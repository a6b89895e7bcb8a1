// Package sqldocs exposes tracking-model SQL bundles directly from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the generated tracking-model SQLite DDL bundle.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the generated tracking-model Postgres DDL bundle.
//
//go:embed postgres.sql
var Postgres string
