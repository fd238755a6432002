package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/rotator/internal/core/config"
	"github.com/vietddude/rotator/internal/infra/health"
	"github.com/vietddude/rotator/internal/infra/rpc"
)

// Rotator is the main application struct that manages the endpoint pool lifecycle.
type Rotator struct {
	cfg          Config
	client       *rpc.Client
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

// Config holds the application configuration.
type Config struct {
	Port int
	RPC  config.RPCConfig
	// StatsInterval controls how often pool stats are logged; zero uses the
	// health check interval.
	StatsInterval time.Duration
	ClientOptions []rpc.ClientOption
}

// NewRotator creates a new Rotator instance with all dependencies initialized.
func NewRotator(cfg Config) (*Rotator, error) {
	log := slog.Default().With("component", "rotator")

	opts := append([]rpc.ClientOption{rpc.WithLogger(slog.Default())}, cfg.ClientOptions...)
	client, err := rpc.NewClient(cfg.RPC, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init rpc client: %w", err)
	}

	healthMon := health.NewMonitor(client)
	healthServer := health.NewServer(healthMon, cfg.Port)

	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = client.Pool().HealthCheckInterval()
	}

	return &Rotator{
		cfg:          cfg,
		client:       client,
		healthMon:    healthMon,
		healthServer: healthServer,
		log:          log,
	}, nil
}

// Client returns the RPC client backing the rotator.
func (r *Rotator) Client() *rpc.Client {
	return r.client
}

// Start starts the health server and the stats reporter.
func (r *Rotator) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	// Start Health Server
	go func() {
		if err := r.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("Health server failed", "error", err)
		}
	}()

	go r.runStatsReporter(ctx)

	r.log.Info("Rotator started",
		"endpoints", len(r.cfg.RPC.Endpoints),
		"port", r.cfg.Port,
	)
	return nil
}

// Stop stops the rotator.
func (r *Rotator) Stop(ctx context.Context) error {
	r.log.Info("Stopping Rotator...")

	if r.cancel != nil {
		r.cancel()
		<-r.done
	}

	if err := r.client.Close(); err != nil {
		r.log.Warn("Failed to close RPC client", "error", err)
	}

	// Stop Health Server
	return r.healthServer.Stop(ctx)
}

func (r *Rotator) runStatsReporter(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reportStats()
		}
	}
}

func (r *Rotator) reportStats() {
	report := r.healthMon.CheckHealth()
	usage := r.client.Usage()

	r.log.Info("RPC pool status",
		"status", report.SystemStatus,
		"healthy", report.Healthy,
		"failed", report.Failed,
		"total", report.Total,
		"current", report.Current,
		"fail_opens", report.FailOpens,
		"throttled_calls", usage.ThrottledCalls,
	)
	for _, e := range report.Endpoints {
		r.log.Debug("RPC endpoint status",
			"endpoint", e.URL,
			"status", e.Status,
			"requests", e.Requests,
			"failures", e.Failures,
			"avg_latency", e.AverageLatency,
			"block_height", e.BlockHeight,
		)
	}
}
