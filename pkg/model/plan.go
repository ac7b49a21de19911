package model

import (
	jsonpatch "gomodules.xyz/jsonpatch/v2"
)

// ManifestMeta is the identity tuple that addresses one K8s resource.
type ManifestMeta struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Namespace  string `json:"namespace"`
	Name       string `json:"name"`
}

type DeltaCreate struct {
	URL      string       `json:"url"`
	Meta     ManifestMeta `json:"meta"`
	Manifest Manifest     `json:"manifest"`
}

type DeltaPatch struct {
	URL  string                `json:"url"`
	Meta ManifestMeta          `json:"meta"`
	Diff []jsonpatch.Operation `json:"diff"`
}

type DeltaDelete struct {
	URL      string       `json:"url"`
	Meta     ManifestMeta `json:"meta"`
	Manifest Manifest     `json:"manifest"`
}

// DeploymentPlan is an ordered set of operations that transitions the
// cluster from its observed state to the desired one. Plans are ephemeral
// and never persisted.
type DeploymentPlan struct {
	Create []DeltaCreate `json:"create"`
	Patch  []DeltaPatch  `json:"patch"`
	Delete []DeltaDelete `json:"delete"`
}

func (d *DeploymentPlan) Empty() bool {
	return len(d.Create) == 0 && len(d.Patch) == 0 && len(d.Delete) == 0
}

// GeneratedManifests is the output bundle of the manifest generator.
type GeneratedManifests struct {
	Resources map[string]*WatchedResource `json:"resources"`
}

func NewGeneratedManifests() *GeneratedManifests {
	return &GeneratedManifests{Resources: DefaultWatchedResources()}
}
