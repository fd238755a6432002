package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vietddude/rotator/internal/core/domain"
)

// ErrorKind classifies a transport failure.
type ErrorKind int

const (
	KindConnectivity ErrorKind = iota // DNS, refused, reset, timeout
	KindStatus                        // non-2xx HTTP status
	KindMalformed                     // body is not a JSON-RPC response
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// TransportError is a failure to obtain a well-formed response from an endpoint.
type TransportError struct {
	Endpoint   domain.Endpoint
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("http %d from %s: %v", e.StatusCode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s error from %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Connectivity reports whether the endpoint could not be reached at all.
func (e *TransportError) Connectivity() bool {
	return e.Kind == KindConnectivity
}

// RPCError is a JSON-RPC error payload returned by a reachable endpoint.
type RPCError struct {
	Endpoint domain.Endpoint
	Code     int
	Message  string
	Data     json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsConnectivity reports whether err is a connectivity TransportError.
func IsConnectivity(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Connectivity()
	}
	return false
}

// IsRPCError reports whether err carries a JSON-RPC error payload.
func IsRPCError(err error) bool {
	var re *RPCError
	return errors.As(err, &re)
}
