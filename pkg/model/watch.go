package model

// Manifest is a raw K8s manifest as decoded from the API server.
type Manifest = map[string]interface{}

type EventType string

const (
	EventAdded    EventType = "ADDED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
	EventError    EventType = "ERROR"

	// Sentinels a watcher delivers as its very last event before it closes
	// its channel. They never originate from the cluster.
	EventCancelled EventType = "CANCELLED"
	EventFailed    EventType = "FAILED"
)

type WatchEvent struct {
	Type   EventType `json:"type"`
	Object Manifest  `json:"object"`
}

// Sentinel reports whether the event marks the end of a watcher's stream.
func (w WatchEvent) Sentinel() bool {
	return w.Type == EventCancelled || w.Type == EventFailed
}

const (
	KindNamespace       = "Namespace"
	KindPod             = "Pod"
	KindService         = "Service"
	KindDeployment      = "Deployment"
	KindVirtualService  = "VirtualService"
	KindDestinationRule = "DestinationRule"
)

const IstioApiVersion = "networking.istio.io/v1beta1"

// WatchedResource tracks the last known manifests of one K8s resource kind.
// Keys follow the `<namespace>/<k8s-resource-name>` scheme.
type WatchedResource struct {
	APIVersion string              `json:"apiVersion"`
	Kind       string              `json:"kind"`
	Path       string              `json:"path"`
	Manifests  map[string]Manifest `json:"manifests"`
}

// DefaultWatchedResources returns the set of resource collections the server
// mirrors. One watcher runs per entry for the lifetime of the process.
func DefaultWatchedResources() map[string]*WatchedResource {
	out := map[string]*WatchedResource{
		KindNamespace: {
			APIVersion: "v1",
			Kind:       KindNamespace,
			Path:       "/api/v1/namespaces",
		},
		KindPod: {
			APIVersion: "v1",
			Kind:       KindPod,
			Path:       "/api/v1/pods",
		},
		KindService: {
			APIVersion: "v1",
			Kind:       KindService,
			Path:       "/api/v1/services",
		},
		KindDeployment: {
			APIVersion: "apps/v1",
			Kind:       KindDeployment,
			Path:       "/apis/apps/v1/deployments",
		},
		KindVirtualService: {
			APIVersion: IstioApiVersion,
			Kind:       KindVirtualService,
			Path:       "/apis/networking.istio.io/v1beta1/virtualservices",
		},
		KindDestinationRule: {
			APIVersion: IstioApiVersion,
			Kind:       KindDestinationRule,
			Path:       "/apis/networking.istio.io/v1beta1/destinationrules",
		},
	}
	for _, v := range out {
		v.Manifests = map[string]Manifest{}
	}
	return out
}
