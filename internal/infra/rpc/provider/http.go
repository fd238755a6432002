package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vietddude/rotator/internal/core/domain"
)

const maxResponseSize = 10 << 20

// HTTPTransport implements Transport for JSON-RPC 2.0 over HTTP.
type HTTPTransport struct {
	httpClient *http.Client
	monitor    *Monitor
	nextID     atomic.Uint64
}

// NewHTTPTransport creates an HTTP transport. The client timeout is a hard
// upper bound; per-attempt deadlines come from the request context.
func NewHTTPTransport(timeout time.Duration, monitor *Monitor) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		monitor: monitor,
	}
}

// Send posts a single JSON-RPC request to endpoint.
func (t *HTTPTransport) Send(
	ctx context.Context,
	endpoint domain.Endpoint,
	r Request,
) (*Response, error) {
	params := r.Params
	if params == nil {
		params = []any{}
	}

	jsonData, err := json.Marshal(wireRequest{
		JSONRPC: "2.0",
		Method:  r.Method,
		Params:  params,
		ID:      t.nextID.Add(1),
	})
	if err != nil {
		return nil, &TransportError{
			Endpoint: endpoint,
			Kind:     KindMalformed,
			Err:      fmt.Errorf("marshal request: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint.String(),
		bytes.NewReader(jsonData),
	)
	if err != nil {
		return nil, &TransportError{
			Endpoint: endpoint,
			Kind:     KindConnectivity,
			Err:      fmt.Errorf("create request: %w", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{
			Endpoint: endpoint,
			Kind:     KindConnectivity,
			Err:      fmt.Errorf("rpc call: %w", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{
			Endpoint: endpoint,
			Kind:     KindConnectivity,
			Err:      fmt.Errorf("read response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusForbidden {
			t.monitor.RecordThrottle(endpoint, resp.StatusCode)
		}
		return nil, &TransportError{
			Endpoint:   endpoint,
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(body), 256)),
		}
	}

	var rpcResp Response
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, &TransportError{
			Endpoint: endpoint,
			Kind:     KindMalformed,
			Err:      fmt.Errorf("parse response: %w", err),
		}
	}
	if len(rpcResp.Result) == 0 {
		rpcResp.Result = json.RawMessage("null")
	}

	return &rpcResp, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
