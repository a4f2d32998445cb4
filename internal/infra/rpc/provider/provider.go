// Package provider implements the JSON-RPC transport used to reach chain nodes.
//
// This package contains:
//   - Provider interface: core abstraction for an RPC endpoint
//   - HTTPProvider: JSON-RPC 2.0 over HTTP(S)
//   - Monitor: rate-limit backoff and slow-response tracking per endpoint
//   - ClassifyError: maps transport failures to coarse error kinds
package provider

import (
	"context"
	"encoding/json"
)

// Provider defines the core interface for an RPC endpoint.
type Provider interface {
	// Call makes a single JSON-RPC request and returns the raw result
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// BatchCall makes multiple JSON-RPC calls in one request
	BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error)

	// Close cleans up resources
	Close() error
}

// BatchRequest represents a single request in a batch call.
type BatchRequest struct {
	Method string
	Params any
}

// BatchResponse represents a single response from a batch call.
type BatchResponse struct {
	Result json.RawMessage
	Error  error
}
