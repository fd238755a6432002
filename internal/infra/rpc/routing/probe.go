package routing

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/rotator/internal/core/domain"
	"github.com/vietddude/rotator/internal/infra/metrics"
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
)

// ProbeMethod is the cheap read-only call used to check liveness.
const ProbeMethod = "eth_blockNumber"

// Prober checks whether a quarantined endpoint is reachable again.
type Prober interface {
	Probe(ctx context.Context, e domain.Endpoint) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, e domain.Endpoint) error

// Probe calls f(ctx, e).
func (f ProberFunc) Probe(ctx context.Context, e domain.Endpoint) error {
	return f(ctx, e)
}

// TransportProber probes endpoints with eth_blockNumber over a Transport.
type TransportProber struct {
	transport provider.Transport
	monitor   *provider.Monitor
}

// NewTransportProber creates a prober. monitor may be nil.
func NewTransportProber(t provider.Transport, monitor *provider.Monitor) *TransportProber {
	return &TransportProber{transport: t, monitor: monitor}
}

// Probe succeeds when the endpoint answers with a well-formed JSON-RPC
// response. An error payload still proves the endpoint is reachable.
func (tp *TransportProber) Probe(ctx context.Context, e domain.Endpoint) error {
	resp, err := tp.transport.Send(ctx, e, provider.Request{Method: ProbeMethod, Params: []any{}})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return nil
	}

	var hex string
	if json.Unmarshal(resp.Result, &hex) == nil {
		if height, err := hexutil.DecodeUint64(hex); err == nil {
			tp.monitor.RecordBlockHeight(e, height)
		}
	}
	return nil
}

// must be called with mu held
func (p *EndpointPool) scheduleProbeLocked(e domain.Endpoint) {
	task := &probeTask{}
	task.timer = p.clock.AfterFunc(p.interval, func() {
		p.runProbe(e, task)
	})
	p.probes[e] = task
}

func (p *EndpointPool) runProbe(e domain.Endpoint, task *probeTask) {
	p.mu.Lock()
	if p.closed || p.probes[e] != task {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(p.ctx, p.probeTimeout)
	err := p.prober.Probe(ctx, e)
	cancel()

	p.mu.Lock()
	if p.probes[e] != task {
		// superseded by fail-open or Close while the probe was in flight
		p.mu.Unlock()
		return
	}

	if err != nil {
		p.scheduleProbeLocked(e)
		p.mu.Unlock()

		metrics.ProbesTotal.WithLabelValues(e.String(), "failure").Inc()
		p.log.Warn("RPC endpoint still failing",
			"endpoint", e,
			"error", err,
			"retry_in", p.interval,
		)
		return
	}

	delete(p.probes, e)
	delete(p.failed, e)
	healthy := len(p.endpoints) - len(p.failed)
	p.mu.Unlock()

	metrics.ProbesTotal.WithLabelValues(e.String(), "success").Inc()
	metrics.EndpointRecovered.WithLabelValues(e.String()).Inc()
	metrics.HealthyEndpoints.Set(float64(healthy))
	p.log.Info("RPC endpoint recovered", "endpoint", e, "healthy", healthy)
	if p.onChange != nil {
		p.onChange(e, true)
	}
}
