package exchange

type ListNamespacesResponse struct {
	Data []string `json:"data"`
}

type HealthResponse struct {
	Status string `json:"status"`

	// Streams maps every mirrored resource kind to its watch stream state.
	Streams map[string]string `json:"streams"`
}
