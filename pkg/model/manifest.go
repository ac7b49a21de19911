package model

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
)

// ManifestsEqual compares two manifests by their canonical JSON encoding.
func ManifestsEqual(a, b Manifest) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return jsonpatch.Equal(ja, jb)
}

// DeepCopyManifest returns an independent copy of a decoded JSON manifest.
func DeepCopyManifest(m Manifest) Manifest {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return Manifest{}
	}
	out := Manifest{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Manifest{}
	}
	return out
}
