package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/vietddude/rotator/internal/infra/metrics"
	"github.com/vietddude/rotator/internal/infra/rpc/budget"
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
)

// Default dispatcher configuration values.
const (
	DefaultMaxRetries     = 3
	DefaultAttemptTimeout = 10 * time.Second
)

// ErrorAction determines how to handle an attempt error.
type ErrorAction int

const (
	ActionRetry    ErrorAction = iota // try the next endpoint
	ActionFailover                    // quarantine the endpoint, then try the next one
	ActionAbort                       // stop the call
)

// ClassifyError determines the action for a given attempt error.
func ClassifyError(err error) ErrorAction {
	switch {
	case err == nil:
		return ActionRetry
	case errors.Is(err, context.Canceled), errors.Is(err, budget.ErrWaitAborted):
		return ActionAbort
	case provider.IsConnectivity(err):
		return ActionFailover
	default:
		// non-2xx, malformed bodies and JSON-RPC errors
		return ActionRetry
	}
}

// ExhaustedError is returned when every attempt of a call failed.
type ExhaustedError struct {
	Method   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	msg := "unknown error"
	if e.Last != nil {
		msg = e.Last.Error()
	}
	return fmt.Sprintf("all %d rpc attempts for %s failed, last error: %s", e.Attempts, e.Method, msg)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// DispatcherConfig defines retry behavior.
type DispatcherConfig struct {
	MaxRetries     int
	AttemptTimeout time.Duration
	// FailFastOnRPCError stops the call on the first JSON-RPC error payload
	// instead of retrying it on another endpoint.
	FailFastOnRPCError bool
	Logger             *slog.Logger
}

// DispatcherOption configures optional Dispatcher collaborators.
type DispatcherOption func(*Dispatcher)

// WithMonitor records attempt outcomes on m.
func WithMonitor(m *provider.Monitor) DispatcherOption {
	return func(d *Dispatcher) { d.monitor = m }
}

// WithThrottle makes every attempt wait on t first.
func WithThrottle(t *budget.Throttle) DispatcherOption {
	return func(d *Dispatcher) { d.throttle = t }
}

// Dispatcher turns a logical RPC call into attempts across the pool.
type Dispatcher struct {
	pool      Selector
	transport provider.Transport
	cfg       DispatcherConfig
	monitor   *provider.Monitor
	throttle  *budget.Throttle
	log       *slog.Logger
}

// NewDispatcher creates a dispatcher over pool and transport.
func NewDispatcher(
	pool Selector,
	transport provider.Transport,
	cfg DispatcherConfig,
	opts ...DispatcherOption,
) *Dispatcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Dispatcher{
		pool:      pool,
		transport: transport,
		cfg:       cfg,
		log:       cfg.Logger.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call performs method with the configured retry bound.
func (d *Dispatcher) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return d.CallWithRetries(ctx, method, params, d.cfg.MaxRetries)
}

// CallWithRetries performs method, trying up to maxRetries endpoints.
// maxRetries < 1 uses the configured bound.
func (d *Dispatcher) CallWithRetries(
	ctx context.Context,
	method string,
	params []any,
	maxRetries int,
) (json.RawMessage, error) {
	if maxRetries < 1 {
		maxRetries = d.cfg.MaxRetries
	}

	callID := uuid.NewString()
	var (
		result      json.RawMessage
		lastErr     error
		throttleErr error
		attempts    int
		succeeded   bool
	)

	_ = retry.Do(
		func() error {
			// A throttle abort never reached an endpoint and is not an attempt.
			if err := d.throttle.Wait(ctx); err != nil {
				throttleErr = err
				return err
			}
			attempts++
			res, err := d.attempt(ctx, callID, attempts, method, params)
			if err != nil {
				lastErr = err
				return err
			}
			result, succeeded = res, true
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(d.shouldRetry(ctx)),
	)

	if succeeded {
		metrics.CallsTotal.WithLabelValues(method, "success").Inc()
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.CallsTotal.WithLabelValues(method, "canceled").Inc()
		return nil, fmt.Errorf("rpc call %s: %w", method, ctxErr)
	}

	if attempts == 0 && throttleErr != nil {
		metrics.CallsTotal.WithLabelValues(method, "throttled").Inc()
		return nil, fmt.Errorf("rpc call %s: %w", method, throttleErr)
	}

	metrics.CallsTotal.WithLabelValues(method, "exhausted").Inc()
	d.log.Error("RPC call failed on every attempt",
		"call_id", callID,
		"method", method,
		"attempts", attempts,
		"error", lastErr,
	)
	return nil, &ExhaustedError{Method: method, Attempts: attempts, Last: lastErr}
}

func (d *Dispatcher) shouldRetry(ctx context.Context) func(error) bool {
	return func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		if d.cfg.FailFastOnRPCError && provider.IsRPCError(err) {
			return false
		}
		return ClassifyError(err) != ActionAbort
	}
}

func (d *Dispatcher) attempt(
	ctx context.Context,
	callID string,
	n int,
	method string,
	params []any,
) (json.RawMessage, error) {
	endpoint := d.pool.Next()

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	start := time.Now()
	resp, err := d.transport.Send(attemptCtx, endpoint, provider.Request{Method: method, Params: params})
	latency := time.Since(start)
	cancel()

	metrics.AttemptLatency.WithLabelValues(endpoint.String()).Observe(latency.Seconds())

	if err == nil {
		err = resp.Err(endpoint)
	}
	if err == nil {
		d.monitor.RecordSuccess(endpoint, latency)
		metrics.AttemptsTotal.WithLabelValues(endpoint.String(), "success").Inc()
		return resp.Result, nil
	}

	outcome := "transport_error"
	if provider.IsRPCError(err) {
		// the endpoint answered; the request was at fault
		outcome = "rpc_error"
		d.monitor.RecordRPCError(endpoint, latency, err)
	} else {
		d.monitor.RecordFailure(endpoint, err)
	}
	metrics.AttemptsTotal.WithLabelValues(endpoint.String(), outcome).Inc()

	// A cancelled caller says nothing about the endpoint.
	if ClassifyError(err) == ActionFailover && ctx.Err() == nil {
		d.pool.MarkFailed(endpoint)
	}

	d.log.Warn("RPC call failed",
		"call_id", callID,
		"attempt", n,
		"method", method,
		"endpoint", endpoint,
		"error", err,
	)
	return nil, err
}
