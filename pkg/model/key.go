package model

import (
	"fmt"
)

// ResourceName returns the K8s resource name of one app variant. The names
// are agnostic to the resource kind: Deployments, Services and the istio
// resources of the same app all share it. The canary variant carries a
// `-canary` suffix by convention.
func ResourceName(meta AppMetadata, canary bool) string {
	if canary {
		return meta.Name + "-canary"
	}
	return meta.Name
}

// WatchKey returns the key used to index manifests in a WatchedResource,
// eg `default/nginx`. This is the only place the key scheme lives; callers
// must never assemble keys by hand.
func WatchKey(meta AppMetadata, canary bool) string {
	return fmt.Sprintf("%s/%s", meta.Namespace, ResourceName(meta, canary))
}

// ManifestKey derives the watch key and kind from a raw manifest. The
// canary flag is always false here because the manifest's own K8s name
// already carries the `-canary` suffix when applicable. Namespaces and
// other cluster scoped resources use the empty namespace.
func ManifestKey(manifest Manifest) (string, string, error) {
	kind, _ := manifest["kind"].(string)
	metadata, _ := manifest["metadata"].(map[string]interface{})
	if kind == "" || metadata == nil {
		return "", "", fmt.Errorf("manifest lacks kind or metadata")
	}

	name, _ := metadata["name"].(string)
	if name == "" {
		return "", "", fmt.Errorf("manifest lacks a name")
	}
	namespace, _ := metadata["namespace"].(string)

	meta := AppMetadata{Name: name, Namespace: namespace}
	return WatchKey(meta, false), kind, nil
}
