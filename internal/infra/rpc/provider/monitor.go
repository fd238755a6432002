package provider

import (
	"strings"
	"sync"
	"time"

	"github.com/vietddude/rotator/internal/core/domain"
)

// MonitorStats holds monitoring statistics for one endpoint.
type MonitorStats struct {
	Requests         int           `json:"requests"`
	Failures         int           `json:"failures"`
	RPCErrors        int           `json:"rpc_errors"`
	AverageLatency   time.Duration `json:"average_latency"`
	ThrottleCount429 int           `json:"throttle_count_429"`
	ThrottleCount403 int           `json:"throttle_count_403"`
	RateLimitErrors  int           `json:"rate_limit_errors"`
	LastError        string        `json:"last_error,omitempty"`
	LastFailureAt    time.Time     `json:"last_failure_at"`
	LastSuccessAt    time.Time     `json:"last_success_at"`
	BlockHeight      uint64        `json:"block_height"`
	BlockHeightAt    time.Time     `json:"block_height_at"`
}

type endpointMonitor struct {
	stats           MonitorStats
	recentLatencies []time.Duration
	window          int
}

// Monitor tracks per-endpoint health and rate limiting.
// All methods are safe to call on a nil *Monitor.
type Monitor struct {
	mu sync.RWMutex

	endpoints        map[domain.Endpoint]*endpointMonitor
	maxLatencyWindow int
	throttlePatterns []string
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		endpoints:        make(map[domain.Endpoint]*endpointMonitor),
		maxLatencyWindow: 100,
		throttlePatterns: []string{
			"rate limit exceeded",
			"too many requests",
			"daily request count exceeded",
			"project rate limit",
			"monthly quota exceeded",
		},
	}
}

// must be called with mu held
func (m *Monitor) entry(e domain.Endpoint) *endpointMonitor {
	em, ok := m.endpoints[e]
	if !ok {
		em = &endpointMonitor{
			recentLatencies: make([]time.Duration, 0, m.maxLatencyWindow),
			window:          m.maxLatencyWindow,
		}
		m.endpoints[e] = em
	}
	return em
}

// RecordSuccess records a successful request with its latency.
func (m *Monitor) RecordSuccess(e domain.Endpoint, latency time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	em := m.entry(e)
	em.stats.Requests++
	em.stats.LastSuccessAt = time.Now()
	em.recordLatencyLocked(latency)
}

// must be called with mu held
func (em *endpointMonitor) recordLatencyLocked(latency time.Duration) {
	em.recentLatencies = append(em.recentLatencies, latency)
	if len(em.recentLatencies) > em.window {
		em.recentLatencies = em.recentLatencies[1:]
	}
	var total time.Duration
	for _, lat := range em.recentLatencies {
		total += lat
	}
	em.stats.AverageLatency = total / time.Duration(len(em.recentLatencies))
}

// RecordFailure records a failed request.
func (m *Monitor) RecordFailure(e domain.Endpoint, err error) {
	if m == nil {
		return
	}
	throttled := err != nil && m.DetectThrottlePattern(err.Error())

	m.mu.Lock()
	defer m.mu.Unlock()

	em := m.entry(e)
	em.stats.Requests++
	em.stats.Failures++
	em.stats.LastFailureAt = time.Now()
	if err != nil {
		em.stats.LastError = err.Error()
	}
	if throttled {
		em.stats.RateLimitErrors++
	}
}

// RecordRPCError records a JSON-RPC error payload. The endpoint answered, so
// it counts as a request and a latency sample but not as a failure.
func (m *Monitor) RecordRPCError(e domain.Endpoint, latency time.Duration, err error) {
	if m == nil {
		return
	}
	throttled := err != nil && m.DetectThrottlePattern(err.Error())

	m.mu.Lock()
	defer m.mu.Unlock()

	em := m.entry(e)
	em.stats.Requests++
	em.stats.RPCErrors++
	em.recordLatencyLocked(latency)
	if err != nil {
		em.stats.LastError = err.Error()
	}
	if throttled {
		em.stats.RateLimitErrors++
	}
}

// RecordThrottle records a rate limiting (429) or blocking (403) response.
func (m *Monitor) RecordThrottle(e domain.Endpoint, statusCode int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	em := m.entry(e)
	switch statusCode {
	case 429:
		em.stats.ThrottleCount429++
	case 403:
		em.stats.ThrottleCount403++
	}
}

// RecordBlockHeight stores the latest block height reported by an endpoint.
func (m *Monitor) RecordBlockHeight(e domain.Endpoint, height uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	em := m.entry(e)
	em.stats.BlockHeight = height
	em.stats.BlockHeightAt = time.Now()
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func (m *Monitor) DetectThrottlePattern(message string) bool {
	if m == nil {
		return false
	}
	lowerMsg := strings.ToLower(message)
	for _, pattern := range m.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// Stats returns the statistics of a single endpoint.
func (m *Monitor) Stats(e domain.Endpoint) MonitorStats {
	if m == nil {
		return MonitorStats{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if em, ok := m.endpoints[e]; ok {
		return em.stats
	}
	return MonitorStats{}
}

// Snapshot returns the statistics of every endpoint seen so far.
func (m *Monitor) Snapshot() map[domain.Endpoint]MonitorStats {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[domain.Endpoint]MonitorStats, len(m.endpoints))
	for e, em := range m.endpoints {
		out[e] = em.stats
	}
	return out
}
