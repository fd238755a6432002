package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/rotator/internal/core/config"
	"github.com/vietddude/rotator/internal/core/domain"
)

// node is a fake JSON-RPC server that can drop connections on demand.
type node struct {
	*httptest.Server
	down     atomic.Bool
	rpcError atomic.Bool
	hits     atomic.Int64
}

func newNode(t *testing.T) *node {
	t.Helper()
	n := &node{}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)
	return n
}

func (n *node) serve(w http.ResponseWriter, r *http.Request) {
	n.hits.Add(1)
	if n.down.Load() {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("hijacking not supported")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
		return
	}

	var req struct {
		Method string `json:"method"`
		ID     uint64 `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	w.Header().Set("Content-Type", "application/json")
	if n.rpcError.Load() {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32000, "message": "header not found"},
		})
		return
	}

	result := "0x10"
	if req.Method == "eth_chainId" {
		result = "0xaa36a7"
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newTestClient(t *testing.T, cfg config.RPCConfig, opts ...ClientOption) *Client {
	t.Helper()
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 2 * time.Second
	}
	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_FailoverToHealthyEndpoint(t *testing.T) {
	good := newNode(t)
	dead := deadURL(t)

	client := newTestClient(t, config.RPCConfig{Endpoints: []string{dead, good.URL}},
		WithClock(clockwork.NewFakeClock()))

	result, err := client.Call(context.Background(), "eth_chainId", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"0xaa36a7"`, string(result))

	stats := client.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.Endpoint(good.URL), stats.Current)

	monitor := client.MonitorStats()
	assert.Equal(t, 1, monitor[domain.Endpoint(dead)].Failures)
	assert.Equal(t, 1, monitor[domain.Endpoint(good.URL)].Requests)
}

func TestClient_ExhaustedAcrossDeadEndpoints(t *testing.T) {
	dead := deadURL(t)
	endpoints := []string{dead + "/a", dead + "/b", dead + "/c"}
	client := newTestClient(t, config.RPCConfig{Endpoints: endpoints},
		WithClock(clockwork.NewFakeClock()))

	_, err := client.Call(context.Background(), "eth_blockNumber", nil)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, IsConnectivity(err))
	assert.Equal(t, 3, client.Stats().Failed)

	// the next call fails open rather than refusing service
	_, _ = client.CallWithRetries(context.Background(), "eth_blockNumber", nil, 1)
	assert.Equal(t, uint64(1), client.Stats().FailOpens)
}

func TestClient_RPCErrorKeepsEndpointHealthy(t *testing.T) {
	n := newNode(t)
	n.rpcError.Store(true)

	client := newTestClient(t, config.RPCConfig{Endpoints: []string{n.URL}, MaxRetries: 2},
		WithClock(clockwork.NewFakeClock()))

	_, err := client.Call(context.Background(), "eth_getBlockByNumber", []any{"latest", false})
	require.Error(t, err)
	assert.True(t, IsRPCError(err))
	assert.Contains(t, err.Error(), "header not found")
	assert.EqualValues(t, 2, n.hits.Load())
	assert.Equal(t, 0, client.Stats().Failed)
}

func TestClient_RecoversAfterProbe(t *testing.T) {
	flaky := newNode(t)
	stable := newNode(t)
	flaky.down.Store(true)

	clock := clockwork.NewFakeClock()
	recovered := make(chan domain.Endpoint, 1)
	client := newTestClient(t,
		config.RPCConfig{
			Endpoints:           []string{flaky.URL, stable.URL},
			HealthCheckInterval: 30 * time.Second,
		},
		WithClock(clock),
		WithHealthCallback(func(e domain.Endpoint, healthy bool) {
			if healthy {
				recovered <- e
			}
		}),
	)

	_, err := client.Call(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	require.Equal(t, 1, client.Stats().Failed)

	flaky.down.Store(false)
	clock.Advance(30 * time.Second)

	select {
	case e := <-recovered:
		assert.Equal(t, domain.Endpoint(flaky.URL), e)
	case <-time.After(2 * time.Second):
		t.Fatal("endpoint did not recover")
	}

	assert.Equal(t, 0, client.Stats().Failed)
	assert.Equal(t, uint64(16), client.MonitorStats()[domain.Endpoint(flaky.URL)].BlockHeight)
}

func TestClient_RejectsEmptyEndpoints(t *testing.T) {
	_, err := NewClient(config.RPCConfig{})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestClient_CallAfterClose(t *testing.T) {
	n := newNode(t)
	client, err := NewClient(config.RPCConfig{Endpoints: []string{n.URL}})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.Call(context.Background(), "eth_blockNumber", nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Zero(t, n.hits.Load())
}
