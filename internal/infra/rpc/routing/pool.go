// Package routing handles endpoint selection, rotation, and failover logic.
//
// This package contains:
//   - EndpointPool: round-robin rotation over a static endpoint set with
//     quarantine of failed endpoints and scheduled recovery probes
//   - Dispatcher: retries a logical call across the pool
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/rotator/internal/core/domain"
	"github.com/vietddude/rotator/internal/infra/metrics"
)

// Default pool configuration values.
const (
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultProbeTimeout        = 5 * time.Second
)

// ErrPoolClosed is returned by operations that require a live pool.
var ErrPoolClosed = errors.New("endpoint pool is closed")

// ConfigurationError is returned when a pool cannot be built from its config.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid endpoint configuration: " + e.Reason
}

// Selector is the part of the pool the Dispatcher depends on.
type Selector interface {
	Next() domain.Endpoint
	MarkFailed(e domain.Endpoint)
}

// PoolConfig holds EndpointPool settings.
type PoolConfig struct {
	Endpoints           []string
	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration

	// Clock schedules probes; nil means the real clock.
	Clock clockwork.Clock
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnHealthChange is invoked outside the pool lock after an endpoint is
	// quarantined (false) or recovers (true).
	OnHealthChange func(e domain.Endpoint, healthy bool)
}

// probeTask is the single pending probe of a quarantined endpoint.
type probeTask struct {
	timer clockwork.Timer
}

// EndpointPool rotates across a fixed endpoint set, skipping quarantined ones.
type EndpointPool struct {
	endpoints []domain.Endpoint
	index     map[domain.Endpoint]struct{}

	interval     time.Duration
	probeTimeout time.Duration
	prober       Prober
	clock        clockwork.Clock
	log          *slog.Logger
	onChange     func(domain.Endpoint, bool)

	mu        sync.Mutex
	cursor    int
	failed    map[domain.Endpoint]struct{}
	probes    map[domain.Endpoint]*probeTask
	failOpens uint64
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEndpointPool creates a pool over cfg.Endpoints. All endpoints start healthy.
func NewEndpointPool(cfg PoolConfig, prober Prober) (*EndpointPool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, &ConfigurationError{Reason: "at least one RPC endpoint is required"}
	}
	if prober == nil {
		return nil, &ConfigurationError{Reason: "prober is required"}
	}

	endpoints := make([]domain.Endpoint, 0, len(cfg.Endpoints))
	index := make(map[domain.Endpoint]struct{}, len(cfg.Endpoints))
	for i, raw := range cfg.Endpoints {
		if raw == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("endpoint %d is empty", i)}
		}
		e := domain.Endpoint(raw)
		if _, dup := index[e]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate endpoint %s", raw)}
		}
		index[e] = struct{}{}
		endpoints = append(endpoints, e)
	}

	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &EndpointPool{
		endpoints:    endpoints,
		index:        index,
		interval:     cfg.HealthCheckInterval,
		probeTimeout: cfg.ProbeTimeout,
		prober:       prober,
		clock:        cfg.Clock,
		log:          cfg.Logger.With("component", "endpoint_pool"),
		onChange:     cfg.OnHealthChange,
		failed:       make(map[domain.Endpoint]struct{}),
		probes:       make(map[domain.Endpoint]*probeTask),
		ctx:          ctx,
		cancel:       cancel,
	}
	metrics.HealthyEndpoints.Set(float64(len(endpoints)))
	return p, nil
}

// Next advances the rotation and returns the next endpoint not in quarantine.
//
// If every endpoint is quarantined the pool fails open: quarantine is cleared,
// pending probes are cancelled and the first endpoint is returned.
func (p *EndpointPool) Next() domain.Endpoint {
	p.mu.Lock()

	n := len(p.endpoints)
	if len(p.failed) >= n {
		cleared := p.failOpenLocked()
		p.cursor = 1 % n
		first := p.endpoints[0]
		p.mu.Unlock()

		if p.onChange != nil {
			for _, e := range cleared {
				p.onChange(e, true)
			}
		}
		return first
	}
	defer p.mu.Unlock()

	for i := 0; i < n; i++ {
		e := p.endpoints[p.cursor]
		p.cursor = (p.cursor + 1) % n
		if _, bad := p.failed[e]; !bad {
			return e
		}
	}

	// unreachable while at least one endpoint is healthy
	return p.endpoints[0]
}

// failOpenLocked clears the quarantine and returns the cleared endpoints in
// configuration order. Must be called with mu held.
func (p *EndpointPool) failOpenLocked() []domain.Endpoint {
	cleared := make([]domain.Endpoint, 0, len(p.failed))
	for _, e := range p.endpoints {
		if _, bad := p.failed[e]; bad {
			cleared = append(cleared, e)
		}
	}

	for e, task := range p.probes {
		task.timer.Stop()
		delete(p.probes, e)
	}
	clear(p.failed)
	p.failOpens++

	metrics.FailOpenTotal.Inc()
	metrics.HealthyEndpoints.Set(float64(len(p.endpoints)))
	p.log.Warn("All RPC endpoints marked as failed, resetting quarantine",
		"endpoints", len(p.endpoints),
		"fail_opens", p.failOpens,
	)
	return cleared
}

// Current returns the endpoint at the cursor if it is healthy, otherwise the
// first healthy endpoint, otherwise the first configured endpoint.
// It does not advance the rotation.
func (p *EndpointPool) Current() domain.Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

// must be called with mu held
func (p *EndpointPool) currentLocked() domain.Endpoint {
	e := p.endpoints[p.cursor]
	if _, bad := p.failed[e]; !bad {
		return e
	}
	for _, e := range p.endpoints {
		if _, bad := p.failed[e]; !bad {
			return e
		}
	}
	return p.endpoints[0]
}

// MarkFailed quarantines e and schedules a recovery probe after the health
// check interval. Marking an already quarantined endpoint is a no-op.
func (p *EndpointPool) MarkFailed(e domain.Endpoint) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if _, known := p.index[e]; !known {
		p.mu.Unlock()
		p.log.Debug("Ignoring failure for unknown endpoint", "endpoint", e)
		return
	}
	if _, already := p.failed[e]; already {
		p.mu.Unlock()
		return
	}

	p.failed[e] = struct{}{}
	p.scheduleProbeLocked(e)
	healthy := len(p.endpoints) - len(p.failed)
	p.mu.Unlock()

	metrics.EndpointQuarantined.WithLabelValues(e.String()).Inc()
	metrics.HealthyEndpoints.Set(float64(healthy))
	p.log.Warn("Marking RPC endpoint as failed",
		"endpoint", e,
		"retry_in", p.interval,
		"healthy", healthy,
	)
	if p.onChange != nil {
		p.onChange(e, false)
	}
}

// Stats returns a snapshot of the pool.
func (p *EndpointPool) Stats() domain.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := domain.PoolStats{
		Total:     len(p.endpoints),
		Failed:    len(p.failed),
		Healthy:   len(p.endpoints) - len(p.failed),
		Current:   p.currentLocked(),
		FailOpens: p.failOpens,
		Endpoints: make([]domain.EndpointStatus, len(p.endpoints)),
	}
	for i, e := range p.endpoints {
		_, bad := p.failed[e]
		_, pending := p.probes[e]
		stats.Endpoints[i] = domain.EndpointStatus{
			URL:          e,
			Healthy:      !bad,
			ProbePending: pending,
		}
	}
	return stats
}

// Endpoints returns a copy of the configured endpoint set.
func (p *EndpointPool) Endpoints() []domain.Endpoint {
	out := make([]domain.Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// HealthCheckInterval returns the fixed probe interval.
func (p *EndpointPool) HealthCheckInterval() time.Duration {
	return p.interval
}

// Close cancels every pending probe, aborts in-flight probes and waits for
// them to return. Close is idempotent.
func (p *EndpointPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for e, task := range p.probes {
		task.timer.Stop()
		delete(p.probes, e)
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return nil
}
