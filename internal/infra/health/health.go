// Package health provides endpoint pool health evaluation and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or an endpoint.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// EndpointHealth contains health metrics for a single RPC endpoint.
type EndpointHealth struct {
	URL            string        `json:"url"`
	Status         SystemStatus  `json:"status"`
	Quarantined    bool          `json:"quarantined"`
	ProbePending   bool          `json:"probe_pending"`
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
	RPCErrors      int           `json:"rpc_errors"`
	ErrorRate      float64       `json:"error_rate"`
	AverageLatency time.Duration `json:"average_latency"`
	RateLimited    int           `json:"rate_limited"`
	BlockHeight    uint64        `json:"block_height,omitempty"`
	BlockLag       uint64        `json:"block_lag"`
	LastError      string        `json:"last_error,omitempty"`
}

// HealthReport contains the full pool health report.
type HealthReport struct {
	SystemStatus SystemStatus     `json:"system_status"`
	Total        int              `json:"total"`
	Healthy      int              `json:"healthy"`
	Failed       int              `json:"failed"`
	FailOpens    uint64           `json:"fail_opens"`
	Current      string           `json:"current"`
	Endpoints    []EndpointHealth `json:"endpoints"`
}
