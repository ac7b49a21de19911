package model

// PodInfo is the condensed live view of one pod, shaped for display.
type PodInfo struct {
	Name string `json:"name"`

	// Ready is the `<ready>/<total>` container ratio, eg `1/2`.
	Ready    string `json:"ready"`
	Restarts int32  `json:"restarts"`

	// AgeSeconds counts from the pod's start time. Zero when the pod has
	// not started yet.
	AgeSeconds int64 `json:"ageSeconds"`

	Phase   string `json:"phase"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`

	Canary bool `json:"canary"`
}
