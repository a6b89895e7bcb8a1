package main

import (
	"strings"
	"testing"

	"lineagecore/internal/trackmodel/sqlbundle"
)

func TestGenerateSQLDialects(t *testing.T) {
	doc := schemaDoc{
		Version: "1.0.0",
		Storage: storageSpec{
			Table: "state",
			Buckets: []bucketSpec{
				{Name: "snapshots", Description: "secondary payloads"},
				{Name: "experiments", Description: "experiment snapshots"},
			},
		},
	}

	pgSQL, sqliteSQL, err := generateSQL(doc)
	if err != nil {
		t.Fatalf("generateSQL: %v", err)
	}

	pg := string(pgSQL)
	lite := string(sqliteSQL)

	if !strings.HasPrefix(pg, "-- Code generated by internal/tools/trackmodel/generate. DO NOT EDIT.\n") {
		t.Fatalf("missing generated header:\n%s", pg)
	}
	if !strings.Contains(pg, "payload JSONB NOT NULL") {
		t.Fatalf("postgres payload column mismatch:\n%s", pg)
	}
	if !strings.Contains(pg, "updated_at TIMESTAMPTZ NOT NULL DEFAULT now()") {
		t.Fatalf("postgres updated_at mismatch:\n%s", pg)
	}
	if !strings.Contains(lite, "payload BLOB NOT NULL") {
		t.Fatalf("sqlite payload column mismatch:\n%s", lite)
	}
	if !strings.Contains(lite, "updated_at TEXT NOT NULL DEFAULT (datetime('now'))") {
		t.Fatalf("sqlite updated_at mismatch:\n%s", lite)
	}

	// Bucket comment lines come out sorted by name.
	if strings.Index(pg, "-- bucket experiments:") > strings.Index(pg, "-- bucket snapshots:") {
		t.Fatalf("bucket comments not sorted:\n%s", pg)
	}
}

func TestGenerateSQLValidation(t *testing.T) {
	_, _, err := generateSQL(schemaDoc{Storage: storageSpec{Buckets: []bucketSpec{{Name: "experiments"}}}})
	if err == nil || !strings.Contains(err.Error(), "storage.table") {
		t.Fatalf("expected storage.table error, got %v", err)
	}

	_, _, err = generateSQL(schemaDoc{Storage: storageSpec{Table: "state"}})
	if err == nil || !strings.Contains(err.Error(), "storage.buckets") {
		t.Fatalf("expected storage.buckets error, got %v", err)
	}
}

func TestGeneratedDDLSplitsIntoSingleStatement(t *testing.T) {
	doc := schemaDoc{
		Version: "1.0.0",
		Storage: storageSpec{
			Table:   "state",
			Buckets: []bucketSpec{{Name: "experiments", Description: "experiment snapshots"}},
		},
	}

	_, sqliteSQL, err := generateSQL(doc)
	if err != nil {
		t.Fatalf("generateSQL: %v", err)
	}

	stmts := sqlbundle.SplitStatements(string(sqliteSQL))
	if len(stmts) != 1 {
		t.Fatalf("expected a single executable statement, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("unexpected statement: %q", stmts[0])
	}
}
