package main

import (
	"fmt"
	"sort"
	"strings"
)

type sqlDialect struct {
	payloadType string
	updatedType string
	nowExpr     string
}

var (
	postgresDialect = sqlDialect{payloadType: "JSONB", updatedType: "TIMESTAMPTZ", nowExpr: "now()"}
	sqliteDialect   = sqlDialect{payloadType: "BLOB", updatedType: "TEXT", nowExpr: "(datetime('now'))"}
)

// generateSQL renders the snapshot state table DDL for both supported dialects.
func generateSQL(doc schemaDoc) ([]byte, []byte, error) {
	if strings.TrimSpace(doc.Storage.Table) == "" {
		return nil, nil, fmt.Errorf("storage.table must be set")
	}
	if len(doc.Storage.Buckets) == 0 {
		return nil, nil, fmt.Errorf("storage.buckets must not be empty")
	}
	return renderStateDDL(doc, postgresDialect), renderStateDDL(doc, sqliteDialect), nil
}

func renderStateDDL(doc schemaDoc, dialect sqlDialect) []byte {
	var b strings.Builder
	b.WriteString("-- Code generated by internal/tools/trackmodel/generate. DO NOT EDIT.\n")
	b.WriteString("-- Source of truth: docs/schema/tracking-model.json\n")
	for _, bucket := range sortedBuckets(doc.Storage.Buckets) {
		fmt.Fprintf(&b, "-- bucket %s: %s\n", bucket.Name, bucket.Description)
	}
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", doc.Storage.Table)
	b.WriteString("    bucket TEXT PRIMARY KEY,\n")
	fmt.Fprintf(&b, "    payload %s NOT NULL,\n", dialect.payloadType)
	fmt.Fprintf(&b, "    updated_at %s NOT NULL DEFAULT %s\n", dialect.updatedType, dialect.nowExpr)
	b.WriteString(");\n")
	return []byte(b.String())
}

func sortedBuckets(buckets []bucketSpec) []bucketSpec {
	out := append([]bucketSpec(nil), buckets...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
