package trackmodel

import "lineagecore/docs/schema"

// Version returns the canonical tracking-model schema version derived from
// the generated fingerprint.
func Version() string {
	version, err := schema.TrackingModelVersion()
	if err != nil {
		return ""
	}
	return version
}
