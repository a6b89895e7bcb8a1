// Package trackmodel exposes runtime helpers for serving the generated
// tracking-model OpenAPI components.
package trackmodel

import (
	"net/http"

	trackingopenapi "lineagecore/docs/schema/openapi"
)

// OpenAPISpec returns a defensive copy of the embedded tracking-model OpenAPI
// components so callers can safely modify the slice.
func OpenAPISpec() []byte {
	return trackingopenapi.Spec()
}

// NewOpenAPIHandler returns an http.Handler that serves the embedded
// tracking-model OpenAPI YAML with a static content-type. It is intended for
// wiring into admin/debug endpoints so downstream clients can fetch the
// canonical interchange contract.
func NewOpenAPIHandler() http.Handler {
	spec := OpenAPISpec()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	})
}
