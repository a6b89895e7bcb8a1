// Package openapi embeds the generated tracking-model OpenAPI components for
// runtime distribution.
package openapi

import _ "embed"

// TrackingModelSpec contains the generated OpenAPI components for the tracking model.
//
//go:embed tracking-model.yaml
var TrackingModelSpec []byte

// Spec returns a defensive copy of the embedded tracking-model OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), TrackingModelSpec...)
}
