package schema

import (
	"encoding/json"
	"testing"
)

func TestTrackingModelVersion(t *testing.T) {
	got, err := TrackingModelVersion()
	if err != nil {
		t.Fatalf("TrackingModelVersion: %v", err)
	}
	if got == "" {
		t.Fatal("expected non-empty tracking model version")
	}

	var doc fingerprintDoc
	if err := json.Unmarshal(trackingModelFingerprint, &doc); err != nil {
		t.Fatalf("unmarshal fingerprint: %v", err)
	}
	if got != doc.Version {
		t.Fatalf("version mismatch: got %q want %q", got, doc.Version)
	}
}

func TestTrackingModelMetadata(t *testing.T) {
	got, err := TrackingModelMetadata()
	if err != nil {
		t.Fatalf("TrackingModelMetadata: %v", err)
	}
	if got.Status == "" || got.Source == "" {
		t.Fatalf("expected status and source, got %+v", got)
	}

	var doc metadataDoc
	if err := json.Unmarshal(trackingModelSchema, &doc); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	if got.Status != doc.Metadata.Status || got.Source != doc.Metadata.Source {
		t.Fatalf("metadata mismatch: got %+v want %+v", got, doc.Metadata)
	}
}
