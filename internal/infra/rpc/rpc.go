// Package rpc provides a resilient JSON-RPC client for EVM networks.
//
// This package offers:
//   - Multiple provider support (Alchemy, Infura, public nodes)
//   - One retry/backoff policy with automatic failover
//   - Health monitoring and rate-limit detection
//
// # Quick Start
//
//	router := rpc.NewRouter()
//	router.AddProvider("1", rpc.NewHTTPProvider("alchemy", alchemyURL, 30*time.Second))
//	router.AddProvider("1", rpc.NewHTTPProvider("infura", infuraURL, 30*time.Second))
//
//	client := rpc.NewClient("1", "ETHEREUM_MAINNET", router, rpc.DefaultRetryConfig)
//
//	var head string
//	err := client.Call(ctx, &head, "eth_blockNumber")
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"errors"
	"time"

	"github.com/vietddude/payroll/internal/infra/rpc/provider"
	"github.com/vietddude/payroll/internal/infra/rpc/routing"
)

// ErrNullResult is returned when a call expecting a value gets JSON null.
var ErrNullResult = errors.New("null result")

// Provider is the core interface for RPC endpoints.
type Provider = provider.Provider

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider = provider.HTTPProvider

// RPCError is an error object returned by a node.
type RPCError = provider.RPCError

// HealthStatus represents the health state of a provider.
type HealthStatus = provider.HealthStatus

// Router handles provider selection and health tracking.
type Router = routing.Router

// DefaultRouter implements round-robin selection with a circuit breaker.
type DefaultRouter = routing.DefaultRouter

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// DefaultRetryConfig provides sensible retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout)
}

// NewRouter creates a new router.
func NewRouter() *DefaultRouter {
	return routing.NewRouter()
}
