package domain

// Endpoint identifies a JSON-RPC endpoint by its URL.
type Endpoint string

// String returns the endpoint URL.
func (e Endpoint) String() string {
	return string(e)
}

// EndpointStatus is the pool's view of a single endpoint.
type EndpointStatus struct {
	URL          Endpoint `json:"url"`
	Healthy      bool     `json:"healthy"`
	ProbePending bool     `json:"probe_pending"`
}

// PoolStats is a read-only snapshot of an endpoint pool.
type PoolStats struct {
	Total     int              `json:"total"`
	Healthy   int              `json:"healthy"`
	Failed    int              `json:"failed"`
	Current   Endpoint         `json:"current"`
	FailOpens uint64           `json:"fail_opens"`
	Endpoints []EndpointStatus `json:"endpoints"`
}
