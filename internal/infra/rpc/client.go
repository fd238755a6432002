package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/rotator/internal/core/config"
	"github.com/vietddude/rotator/internal/core/domain"
	"github.com/vietddude/rotator/internal/infra/rpc/budget"
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
	"github.com/vietddude/rotator/internal/infra/rpc/routing"
)

// ClientOption customizes how NewClient wires its collaborators.
type ClientOption func(*clientOptions)

type clientOptions struct {
	transport      provider.Transport
	clock          clockwork.Clock
	logger         *slog.Logger
	onHealthChange func(domain.Endpoint, bool)
}

// WithTransport replaces the HTTP transport.
func WithTransport(t provider.Transport) ClientOption {
	return func(o *clientOptions) { o.transport = t }
}

// WithClock replaces the clock used to schedule recovery probes.
func WithClock(c clockwork.Clock) ClientOption {
	return func(o *clientOptions) { o.clock = c }
}

// WithLogger sets the logger handed to the pool and dispatcher.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithHealthCallback is invoked whenever an endpoint is quarantined or recovers.
func WithHealthCallback(fn func(e domain.Endpoint, healthy bool)) ClientOption {
	return func(o *clientOptions) { o.onHealthChange = fn }
}

// Client is the high-level interface for making RPC calls.
// This is what application layers should use.
type Client struct {
	pool       *routing.EndpointPool
	dispatcher *routing.Dispatcher
	transport  provider.Transport
	monitor    *provider.Monitor
	throttle   *budget.Throttle
	closed     atomic.Bool
}

// NewClient builds the endpoint pool, transport and dispatcher from cfg.
func NewClient(cfg config.RPCConfig, opts ...ClientOption) (*Client, error) {
	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = routing.DefaultAttemptTimeout
	}

	monitor := provider.NewMonitor()
	transport := o.transport
	if transport == nil {
		transport = provider.NewHTTPTransport(max(attemptTimeout, cfg.ProbeTimeout), monitor)
	}

	pool, err := routing.NewEndpointPool(routing.PoolConfig{
		Endpoints:           cfg.Endpoints,
		HealthCheckInterval: cfg.HealthCheckInterval,
		ProbeTimeout:        cfg.ProbeTimeout,
		Clock:               o.clock,
		Logger:              o.logger,
		OnHealthChange:      o.onHealthChange,
	}, routing.NewTransportProber(transport, monitor))
	if err != nil {
		return nil, err
	}

	throttle := budget.NewThrottle(cfg.RateLimit, cfg.RateBurst)
	dispatcher := routing.NewDispatcher(pool, transport, routing.DispatcherConfig{
		MaxRetries:         cfg.MaxRetries,
		AttemptTimeout:     attemptTimeout,
		FailFastOnRPCError: cfg.FailFastOnRPCError,
		Logger:             o.logger,
	}, routing.WithMonitor(monitor), routing.WithThrottle(throttle))

	return &Client{
		pool:       pool,
		dispatcher: dispatcher,
		transport:  transport,
		monitor:    monitor,
		throttle:   throttle,
	}, nil
}

// Call makes an RPC call with the configured retry bound.
func (c *Client) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrPoolClosed
	}
	return c.dispatcher.Call(ctx, method, params)
}

// CallWithRetries makes an RPC call trying up to maxRetries endpoints.
func (c *Client) CallWithRetries(
	ctx context.Context,
	method string,
	params []any,
	maxRetries int,
) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrPoolClosed
	}
	return c.dispatcher.CallWithRetries(ctx, method, params, maxRetries)
}

// Stats returns a snapshot of the endpoint pool.
func (c *Client) Stats() domain.PoolStats {
	return c.pool.Stats()
}

// MonitorStats returns per-endpoint monitoring stats.
func (c *Client) MonitorStats() map[domain.Endpoint]provider.MonitorStats {
	return c.monitor.Snapshot()
}

// Usage returns throttle usage; zero when rate limiting is disabled.
func (c *Client) Usage() budget.UsageStats {
	return c.throttle.Usage()
}

// Pool exposes the underlying endpoint pool.
func (c *Client) Pool() *routing.EndpointPool {
	return c.pool
}

// Close stops recovery probes and releases transport resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.pool.Close(); err != nil {
		return err
	}
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
