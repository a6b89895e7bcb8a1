// Package schema exposes embedded tracking-model metadata (version) for runtime use.
package schema

import (
	_ "embed"
	"encoding/json"
	"sync"
)

type fingerprintDoc struct {
	Version string `json:"version"`
}

// Metadata captures the high-level metadata block from the canonical
// tracking-model JSON.
type Metadata struct {
	Source string `json:"source"`
	Status string `json:"status"`
}

type metadataDoc struct {
	Metadata Metadata `json:"metadata"`
}

// Tracking-model fingerprint content embedded for runtime metadata exposure.
//
//go:embed tracking-model.fingerprint.json
var trackingModelFingerprint []byte

// Canonical tracking-model JSON content embedded for accessing schema metadata.
//
//go:embed tracking-model.json
var trackingModelSchema []byte

var (
	metaOnce sync.Once
	metaVer  string
	metaErr  error

	schemaOnce sync.Once
	schemaMeta Metadata
	schemaErr  error
)

// TrackingModelVersion returns the canonical schema version declared in the
// generated fingerprint (source of truth: docs/schema/tracking-model.json).
func TrackingModelVersion() (string, error) {
	metaOnce.Do(func() {
		var fp fingerprintDoc
		metaErr = json.Unmarshal(trackingModelFingerprint, &fp)
		if metaErr == nil {
			metaVer = fp.Version
		}
	})
	return metaVer, metaErr
}

// TrackingModelMetadata returns the schema metadata (status, source) declared
// in the canonical tracking-model JSON.
func TrackingModelMetadata() (Metadata, error) {
	schemaOnce.Do(func() {
		var doc metadataDoc
		schemaErr = json.Unmarshal(trackingModelSchema, &doc)
		if schemaErr == nil {
			schemaMeta = doc.Metadata
		}
	})
	return schemaMeta, schemaErr
}
