package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal tracks logical calls by method and final outcome
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_calls_total",
			Help: "Total number of logical RPC calls",
		},
		[]string{"method", "outcome"},
	)

	// AttemptsTotal tracks individual attempts per endpoint
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_attempts_total",
			Help: "Total number of RPC attempts",
		},
		[]string{"endpoint", "outcome"},
	)

	// AttemptLatency tracks attempt latency
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rotator_attempt_latency_seconds",
			Help:    "RPC attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// EndpointQuarantined counts Healthy -> Quarantined transitions
	EndpointQuarantined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_endpoint_quarantined_total",
			Help: "Total number of times an endpoint was marked failed",
		},
		[]string{"endpoint"},
	)

	// EndpointRecovered counts Quarantined -> Healthy transitions
	EndpointRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_endpoint_recovered_total",
			Help: "Total number of times a quarantined endpoint recovered",
		},
		[]string{"endpoint"},
	)

	// ProbesTotal tracks recovery probes
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_probes_total",
			Help: "Total number of recovery probes",
		},
		[]string{"endpoint", "outcome"},
	)

	// FailOpenTotal counts the times every endpoint was failed and the pool reset
	FailOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rotator_fail_open_total",
			Help: "Total number of fail-open events (all endpoints quarantined)",
		},
	)

	// HealthyEndpoints tracks the number of endpoints outside quarantine
	HealthyEndpoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rotator_endpoints_healthy",
			Help: "Number of endpoints not currently quarantined",
		},
	)
)
