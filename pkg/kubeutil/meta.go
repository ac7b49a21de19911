package kubeutil

import (
	"github.com/dfh-cloud/dfh/pkg/model"
)

const (
	LabelApp            = "app"
	LabelName           = "app.kubernetes.io/name"
	LabelManagedBy      = "app.kubernetes.io/managed-by"
	LabelDeploymentType = "deployment-type"

	DeploymentTypePrimary = "primary"
	DeploymentTypeCanary  = "canary"
)

// ManifestLabels extracts the metadata.labels of a raw manifest.
func ManifestLabels(manifest model.Manifest) map[string]string {
	metadata, ok := manifest["metadata"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := metadata["labels"].(map[string]interface{})
	if !ok {
		return nil
	}

	labels := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			labels[k] = s
		}
	}
	return labels
}

// IsManagedManifest reports whether this server owns the manifest, going by
// the name, environment and managed-by labels.
func IsManagedManifest(managedBy, envLabel string, manifest model.Manifest) bool {
	labels := ManifestLabels(manifest)
	if labels == nil {
		return false
	}

	for _, name := range []string{envLabel, LabelName, LabelManagedBy} {
		if labels[name] == "" {
			return false
		}
	}

	return labels[LabelManagedBy] == managedBy
}

// GetMetaInfo derives the app identity from a managed manifest. The second
// return value is false for manifests this server does not own.
func GetMetaInfo(managedBy, envLabel string, manifest model.Manifest) (model.AppMetadata, bool) {
	if !IsManagedManifest(managedBy, envLabel, manifest) {
		return model.AppMetadata{}, false
	}

	labels := ManifestLabels(manifest)
	namespace := ""
	if metadata, ok := manifest["metadata"].(map[string]interface{}); ok {
		namespace, _ = metadata["namespace"].(string)
	}

	return model.AppMetadata{
		Name:      labels[LabelName],
		Env:       labels[envLabel],
		Namespace: namespace,
	}, true
}
