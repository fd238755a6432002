// Package rpc provides a resilient JSON-RPC client over a pool of endpoints.
//
// This package offers:
//   - Round-robin rotation across a static endpoint set
//   - Quarantine of unreachable endpoints with periodic recovery probes
//   - Bounded retries across endpoints for every logical call
//   - Optional outbound rate limiting
//   - Per-endpoint health monitoring
//
// # Quick Start
//
//	import "github.com/vietddude/rotator/internal/infra/rpc"
//
//	client, err := rpc.NewClient(config.RPCConfig{
//	    Endpoints: []string{"https://rpc.sepolia.org/", "https://ethereum-sepolia-rpc.publicnode.com"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	result, err := client.Call(ctx, "eth_blockNumber", nil)
//
// # Package Structure
//
//   - provider/ - HTTP transport, error taxonomy, endpoint monitoring
//   - routing/  - endpoint pool, recovery probes, retrying dispatcher
//   - budget/   - outbound throttle
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
	"github.com/vietddude/rotator/internal/infra/rpc/routing"
)

// =============================================================================
// Re-exported types from provider package
// =============================================================================

// Transport sends one JSON-RPC request to one endpoint.
type Transport = provider.Transport

// TransportError is a failure to obtain a well-formed response.
type TransportError = provider.TransportError

// RPCError is a JSON-RPC error payload returned by an endpoint.
type RPCError = provider.RPCError

// MonitorStats holds monitoring statistics for an endpoint.
type MonitorStats = provider.MonitorStats

// IsConnectivity reports whether err is a connectivity failure.
var IsConnectivity = provider.IsConnectivity

// IsRPCError reports whether err carries a JSON-RPC error payload.
var IsRPCError = provider.IsRPCError

// =============================================================================
// Re-exported types from routing package
// =============================================================================

// EndpointPool rotates across endpoints and quarantines failed ones.
type EndpointPool = routing.EndpointPool

// ExhaustedError is returned when every attempt of a call failed.
type ExhaustedError = routing.ExhaustedError

// ConfigurationError is returned for an unusable endpoint configuration.
type ConfigurationError = routing.ConfigurationError

// ErrPoolClosed is returned by calls made after Close.
var ErrPoolClosed = routing.ErrPoolClosed
