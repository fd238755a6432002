// Package provider implements the transport side of the RPC client.
//
// This package contains:
//   - Transport interface: sends one JSON-RPC request to one endpoint
//   - HTTPTransport: JSON-RPC 2.0 over HTTP(S) POST
//   - TransportError / RPCError: per-attempt error taxonomy
//   - Monitor: per-endpoint latency, failure and throttle tracking
package provider

import (
	"context"
	"encoding/json"

	"github.com/vietddude/rotator/internal/core/domain"
)

// Transport sends a single JSON-RPC request to a single endpoint.
//
// A non-nil error is always a *TransportError. A well-formed response is
// returned as-is even when it carries a JSON-RPC error object; turning that
// into an error is the caller's decision.
type Transport interface {
	Send(ctx context.Context, endpoint domain.Endpoint, req Request) (*Response, error)
}

// Request is a transport-agnostic JSON-RPC call.
type Request struct {
	Method string
	Params []any
}

// Response is a decoded JSON-RPC response body.
type Response struct {
	Result json.RawMessage `json:"result"`
	Error  *ErrorObject    `json:"error"`
}

// ErrorObject is the JSON-RPC error member.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Err converts a JSON-RPC error member into an *RPCError.
// It returns nil when the response carries no error.
func (r *Response) Err(endpoint domain.Endpoint) error {
	if r == nil || r.Error == nil {
		return nil
	}
	return &RPCError{
		Endpoint: endpoint,
		Code:     r.Error.Code,
		Message:  r.Error.Message,
		Data:     r.Error.Data,
	}
}

type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}
