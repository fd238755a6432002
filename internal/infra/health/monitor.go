package health

import (
	"github.com/vietddude/rotator/internal/core/domain"
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
)

// Thresholds used to grade a reachable endpoint.
const (
	DegradedErrorRate  = 0.5
	DegradedBlockLag   = 10
	minRequestsForRate = 5
)

// StatsSource exposes pool and per-endpoint statistics.
type StatsSource interface {
	Stats() domain.PoolStats
	MonitorStats() map[domain.Endpoint]provider.MonitorStats
}

// Monitor aggregates health status from the endpoint pool and transport monitor.
type Monitor struct {
	source StatsSource
}

// NewMonitor creates a new health monitor.
func NewMonitor(source StatsSource) *Monitor {
	return &Monitor{source: source}
}

// CheckHealth evaluates every endpoint and the pool as a whole.
func (m *Monitor) CheckHealth() HealthReport {
	pool := m.source.Stats()
	observed := m.source.MonitorStats()

	var tip uint64
	for _, s := range observed {
		tip = max(tip, s.BlockHeight)
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Total:        pool.Total,
		Healthy:      pool.Healthy,
		Failed:       pool.Failed,
		FailOpens:    pool.FailOpens,
		Current:      pool.Current.String(),
		Endpoints:    make([]EndpointHealth, 0, len(pool.Endpoints)),
	}

	for _, es := range pool.Endpoints {
		s := observed[es.URL]
		health := EndpointHealth{
			URL:            es.URL.String(),
			Status:         StatusHealthy,
			Quarantined:    !es.Healthy,
			ProbePending:   es.ProbePending,
			Requests:       s.Requests,
			Failures:       s.Failures,
			RPCErrors:      s.RPCErrors,
			AverageLatency: s.AverageLatency,
			RateLimited:    s.RateLimitErrors + s.ThrottleCount429 + s.ThrottleCount403,
			BlockHeight:    s.BlockHeight,
			LastError:      s.LastError,
		}
		if s.Requests > 0 {
			health.ErrorRate = float64(s.Failures) / float64(s.Requests)
		}
		if s.BlockHeight > 0 {
			health.BlockLag = tip - s.BlockHeight
		}

		// Evaluate Status
		switch {
		case health.Quarantined:
			health.Status = StatusCritical
		case health.BlockLag > DegradedBlockLag,
			s.Requests >= minRequestsForRate && health.ErrorRate > DegradedErrorRate:
			health.Status = StatusDegraded
		}

		if health.Status != StatusHealthy && report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
		report.Endpoints = append(report.Endpoints, health)
	}

	if pool.Healthy == 0 {
		report.SystemStatus = StatusCritical
	}
	return report
}
