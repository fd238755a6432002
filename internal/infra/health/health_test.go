package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/rotator/internal/core/domain"
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
)

// =============================================================================
// Mocks
// =============================================================================

type stubSource struct {
	pool     domain.PoolStats
	observed map[domain.Endpoint]provider.MonitorStats
}

func (s *stubSource) Stats() domain.PoolStats { return s.pool }

func (s *stubSource) MonitorStats() map[domain.Endpoint]provider.MonitorStats {
	return s.observed
}

func poolOf(failed ...domain.Endpoint) domain.PoolStats {
	all := []domain.Endpoint{"https://a.example", "https://b.example"}
	bad := map[domain.Endpoint]bool{}
	for _, e := range failed {
		bad[e] = true
	}

	stats := domain.PoolStats{Total: len(all), Current: all[0]}
	for _, e := range all {
		stats.Endpoints = append(stats.Endpoints, domain.EndpointStatus{
			URL:          e,
			Healthy:      !bad[e],
			ProbePending: bad[e],
		})
		if bad[e] {
			stats.Failed++
		} else {
			stats.Healthy++
		}
	}
	return stats
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(&stubSource{
		pool: poolOf(),
		observed: map[domain.Endpoint]provider.MonitorStats{
			"https://a.example": {Requests: 10, Failures: 1, BlockHeight: 1000},
			"https://b.example": {Requests: 10, BlockHeight: 998},
		},
	})

	report := monitor.CheckHealth()

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.Endpoints[1].BlockLag != 2 {
		t.Errorf("expected block lag 2, got %d", report.Endpoints[1].BlockLag)
	}
	if report.Endpoints[0].ErrorRate != 0.1 {
		t.Errorf("expected error rate 0.1, got %f", report.Endpoints[0].ErrorRate)
	}
}

func TestMonitor_DegradedByQuarantine(t *testing.T) {
	monitor := NewMonitor(&stubSource{pool: poolOf("https://b.example")})

	report := monitor.CheckHealth()

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Endpoints[1].Status != StatusCritical {
		t.Errorf("expected quarantined endpoint to be critical, got %s", report.Endpoints[1].Status)
	}
	if !report.Endpoints[1].ProbePending {
		t.Error("expected probe pending on quarantined endpoint")
	}
}

func TestMonitor_DegradedByLagAndErrors(t *testing.T) {
	monitor := NewMonitor(&stubSource{
		pool: poolOf(),
		observed: map[domain.Endpoint]provider.MonitorStats{
			"https://a.example": {Requests: 10, Failures: 8, BlockHeight: 1000},
			"https://b.example": {Requests: 10, BlockHeight: 900},
		},
	})

	report := monitor.CheckHealth()

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	for _, e := range report.Endpoints {
		if e.Status != StatusDegraded {
			t.Errorf("expected %s degraded, got %s", e.URL, e.Status)
		}
	}
}

func TestMonitor_RPCErrorsDoNotDegrade(t *testing.T) {
	monitor := NewMonitor(&stubSource{
		pool: poolOf(),
		observed: map[domain.Endpoint]provider.MonitorStats{
			"https://a.example": {Requests: 20, RPCErrors: 18},
			"https://b.example": {Requests: 20},
		},
	})

	report := monitor.CheckHealth()

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	a := report.Endpoints[0]
	if a.ErrorRate != 0 || a.RPCErrors != 18 {
		t.Errorf("expected rpc errors reported apart from error rate, got %+v", a)
	}
}

func TestMonitor_Critical(t *testing.T) {
	monitor := NewMonitor(&stubSource{pool: poolOf("https://a.example", "https://b.example")})

	report := monitor.CheckHealth()

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
}

func TestServer_HealthStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		pool   domain.PoolStats
		code   int
		status string
	}{
		{"healthy", poolOf(), http.StatusOK, "healthy"},
		{"degraded", poolOf("https://a.example"), http.StatusOK, "degraded"},
		{"critical", poolOf("https://a.example", "https://b.example"), http.StatusServiceUnavailable, "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(NewMonitor(&stubSource{pool: tt.pool}), 0)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tt.status {
				t.Errorf("expected %q, got %v", tt.status, body["status"])
			}
		})
	}
}

func TestServer_Detailed(t *testing.T) {
	srv := NewServer(NewMonitor(&stubSource{pool: poolOf("https://b.example")}), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if report.Failed != 1 || len(report.Endpoints) != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if !report.Endpoints[1].Quarantined {
		t.Error("expected b to be quarantined")
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := NewServer(NewMonitor(&stubSource{pool: poolOf()}), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", rec.Code)
	}
}
