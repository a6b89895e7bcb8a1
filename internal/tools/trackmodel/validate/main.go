// Program trackmodelvalidate ensures the tracking-model schema stays structurally valid.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

type definitionSpec struct {
	Type        string                     `json:"type"`
	Ref         string                     `json:"$ref"`
	Description string                     `json:"description"`
	Items       *definitionSpec            `json:"items"`
	Properties  map[string]json.RawMessage `json:"properties"`
	Required    []string                   `json:"required"`
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

var (
	exitFn              = os.Exit
	errWriter io.Writer = os.Stderr
)

func main() {
	path := "docs/schema/tracking-model.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := validate(path); err != nil {
		exitErr(err.Error())
	}

	fmt.Println("tracking-model validation: OK")
}

func validate(path string) error {
	//nolint:gosec // path is provided by the caller; validator is intended to read the specified schema file.
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	var doc schemaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse schema JSON: %w", err)
	}

	var errs []string

	if doc.Version == "" {
		errs = append(errs, "version must be set (semver expected)")
	}
	if doc.Metadata.Source == "" {
		errs = append(errs, "metadata.source must be set")
	}
	if doc.Metadata.Status == "" {
		errs = append(errs, "metadata.status must be set")
	}

	if len(doc.Definitions) == 0 {
		errs = append(errs, "definitions must not be empty")
	}
	for name, def := range doc.Definitions {
		validateDefinition(name, def, doc.Definitions, &errs)
	}

	validateStorage(doc.Storage, &errs)

	if len(errs) > 0 {
		sort.Strings(errs)
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func validateDefinition(name string, def definitionSpec, defs map[string]definitionSpec, errs *[]string) {
	if strings.TrimSpace(def.Description) == "" {
		*errs = append(*errs, fmt.Sprintf("definition %q must declare a description", name))
	}
	if def.Type == "" && def.Ref == "" {
		*errs = append(*errs, fmt.Sprintf("definition %q must declare a type", name))
	}
	if len(def.Properties) > 0 && def.Type != "object" {
		*errs = append(*errs, fmt.Sprintf("definition %q with properties must use type \"object\"", name))
	}

	for _, field := range def.Required {
		if _, ok := def.Properties[field]; !ok {
			*errs = append(*errs, fmt.Sprintf("definition %q required field %q missing from properties", name, field))
		}
	}

	for propName, data := range def.Properties {
		var prop definitionSpec
		if err := json.Unmarshal(data, &prop); err != nil {
			*errs = append(*errs, fmt.Sprintf("definition %q property %q invalid JSON", name, propName))
			continue
		}
		validateProperty(name, propName, prop, defs, errs)
	}
}

func validateProperty(defName, propName string, prop definitionSpec, defs map[string]definitionSpec, errs *[]string) {
	if prop.Ref != "" {
		if !strings.HasPrefix(prop.Ref, "#/definitions/") {
			*errs = append(*errs, fmt.Sprintf("definition %q property %q has unsupported ref %q", defName, propName, prop.Ref))
			return
		}
		target := strings.TrimPrefix(prop.Ref, "#/definitions/")
		if _, ok := defs[target]; !ok {
			*errs = append(*errs, fmt.Sprintf("definition %q property %q references unknown definition %q", defName, propName, target))
		}
		return
	}

	if prop.Type == "" {
		*errs = append(*errs, fmt.Sprintf("definition %q property %q must declare a type or $ref", defName, propName))
		return
	}

	if prop.Type == "array" {
		if prop.Items == nil {
			*errs = append(*errs, fmt.Sprintf("definition %q property %q array must declare items", defName, propName))
			return
		}
		validateProperty(defName, propName, *prop.Items, defs, errs)
	}
}

func validateStorage(storage storageSpec, errs *[]string) {
	if strings.TrimSpace(storage.Table) == "" {
		*errs = append(*errs, "storage.table must be set")
	}
	if len(storage.Buckets) == 0 {
		*errs = append(*errs, "storage.buckets must not be empty")
	}

	seen := make(map[string]struct{}, len(storage.Buckets))
	for i, bucket := range storage.Buckets {
		if bucket.Name == "" {
			*errs = append(*errs, fmt.Sprintf("storage bucket #%d must declare a name", i))
			continue
		}
		if !isBucketName(bucket.Name) {
			*errs = append(*errs, fmt.Sprintf("storage bucket %q must use lowercase identifier characters", bucket.Name))
		}
		if _, dup := seen[bucket.Name]; dup {
			*errs = append(*errs, fmt.Sprintf("storage bucket %q declared more than once", bucket.Name))
		}
		seen[bucket.Name] = struct{}{}
		if strings.TrimSpace(bucket.Description) == "" {
			*errs = append(*errs, fmt.Sprintf("storage bucket %q must declare a description", bucket.Name))
		}
	}
}

func isBucketName(name string) bool {
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_' && i > 0:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return name != ""
}

func exitErr(msg string) {
	if _, err := fmt.Fprintf(errWriter, "tracking-model validation failed: %s\n", msg); err != nil {
		// Fallback to stderr if the configured writer fails.
		//nolint:errcheck // best-effort secondary logging; exiting regardless.
		fmt.Fprintf(os.Stderr, "tracking-model validation failed (write error: %v)\n", err)
	}
	exitFn(1)
}
