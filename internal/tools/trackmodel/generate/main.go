// Program trackmodelgenerate reads docs/schema/tracking-model.json and emits
// the OpenAPI, SQL, and fingerprint projections committed under docs/schema.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var exitFunc = os.Exit

type definitionSpec struct {
	Type                 string                     `json:"type"`
	Format               string                     `json:"format"`
	Ref                  string                     `json:"$ref"`
	Description          string                     `json:"description"`
	Items                *definitionSpec            `json:"items"`
	Properties           map[string]json.RawMessage `json:"properties"`
	Required             []string                   `json:"required"`
	AdditionalProperties json.RawMessage            `json:"additionalProperties"`
}

type metadataSpec struct {
	Source string `json:"source"`
	Status string `json:"status"`
}

type bucketSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type storageSpec struct {
	Table   string       `json:"table"`
	Buckets []bucketSpec `json:"buckets"`
}

type schemaDoc struct {
	Version     string                    `json:"version"`
	Metadata    metadataSpec              `json:"metadata"`
	Definitions map[string]definitionSpec `json:"definitions"`
	Storage     storageSpec               `json:"storage"`
}

type fingerprintDoc struct {
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
}

func main() {
	schemaPath := flag.String("schema", "docs/schema/tracking-model.json", "path to the tracking model schema")
	openapiPath := flag.String("openapi", "", "output file for generated OpenAPI YAML (optional)")
	sqlPostgresPath := flag.String("sql-postgres", "", "output file for generated Postgres DDL (optional)")
	sqlSQLitePath := flag.String("sql-sqlite", "", "output file for generated SQLite DDL (optional)")
	fingerprintPath := flag.String("fingerprint", "", "output file for the schema fingerprint (optional)")
	flag.Parse()

	doc, raw, err := loadSchema(*schemaPath)
	if err != nil {
		exitErr(err)
	}

	if path := strings.TrimSpace(*openapiPath); path != "" {
		openapi, err := generateOpenAPI(doc)
		if err != nil {
			exitErr(err)
		}
		if err := writeFile(path, openapi); err != nil {
			exitErr(err)
		}
		fmt.Printf("generated %s from %s\n", path, *schemaPath)
	}

	if strings.TrimSpace(*sqlPostgresPath) != "" || strings.TrimSpace(*sqlSQLitePath) != "" {
		pgSQL, sqliteSQL, err := generateSQL(doc)
		if err != nil {
			exitErr(err)
		}
		if path := strings.TrimSpace(*sqlPostgresPath); path != "" {
			if err := writeFile(path, pgSQL); err != nil {
				exitErr(err)
			}
			fmt.Printf("generated %s from %s\n", path, *schemaPath)
		}
		if path := strings.TrimSpace(*sqlSQLitePath); path != "" {
			if err := writeFile(path, sqliteSQL); err != nil {
				exitErr(err)
			}
			fmt.Printf("generated %s from %s\n", path, *schemaPath)
		}
	}

	if path := strings.TrimSpace(*fingerprintPath); path != "" {
		fingerprint, err := generateFingerprint(raw, doc)
		if err != nil {
			exitErr(err)
		}
		if err := writeFile(path, fingerprint); err != nil {
			exitErr(err)
		}
		fmt.Printf("generated %s from %s\n", path, *schemaPath)
	}
}

func loadSchema(path string) (schemaDoc, []byte, error) {
	//nolint:gosec // generator intentionally reads caller-provided schema path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return schemaDoc{}, nil, fmt.Errorf("read schema: %w", err)
	}

	var doc schemaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schemaDoc{}, nil, fmt.Errorf("parse schema: %w", err)
	}

	return doc, raw, nil
}

// generateFingerprint binds the declared version to a checksum over the exact
// schema bytes so committed artifacts can be tied to one schema revision.
func generateFingerprint(raw []byte, doc schemaDoc) ([]byte, error) {
	if doc.Version == "" {
		return nil, fmt.Errorf("schema version must be set before fingerprinting")
	}
	sum := sha256.Sum256(raw)
	out, err := json.MarshalIndent(fingerprintDoc{
		Version:  doc.Version,
		Checksum: "sha256:" + hex.EncodeToString(sum[:]),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode fingerprint: %w", err)
	}
	return append(out, '\n'), nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFile(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func toCamel(input string) string {
	if input == "" {
		return ""
	}
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	for i, p := range parts {
		parts[i] = applyInitialisms(capitalize(p))
	}
	return strings.Join(parts, "")
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	if len(s) == 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func applyInitialisms(part string) string {
	switch strings.ToLower(part) {
	case "id":
		return "ID"
	case "ids":
		return "IDs"
	case "api":
		return "API"
	case "url":
		return "URL"
	default:
		return part
	}
}

func exitErr(err error) {
	if err == nil {
		return
	}
	//nolint:forbidigo // generator writes to stderr on failure.
	fmt.Fprintln(os.Stderr, err)
	exitFunc(1)
}
