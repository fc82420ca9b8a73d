package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/payroll/internal/infra/rpc/provider"
	"github.com/vietddude/payroll/internal/infra/rpc/routing"
	"github.com/vietddude/payroll/internal/metrics"
)

// Client is the high-level JSON-RPC client for one chain.
// This is what application layers should use.
type Client struct {
	chainID string
	label   string
	router  routing.Router
	retry   routing.RetryConfig
	log     *slog.Logger
}

// NewClient creates a new RPC client. label names the chain in metrics and logs.
func NewClient(chainID, label string, router routing.Router, retry routing.RetryConfig) *Client {
	if retry.MaxAttempts <= 0 {
		retry = routing.DefaultRetryConfig
	}
	return &Client{
		chainID: chainID,
		label:   label,
		router:  router,
		retry:   retry,
		log:     slog.Default().With("component", "rpc", "chain", label),
	}
}

// Call makes an RPC call with retry and provider failover and decodes the
// result into out. out may be nil to discard the result.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := routing.CallWithRetryAndFailover(
		ctx,
		c.router,
		c.chainID,
		method,
		params,
		c.retry,
		func(name string, elapsed time.Duration, err error) {
			metrics.RPCCallsTotal.WithLabelValues(c.label, name, method).Inc()
			metrics.RPCLatency.WithLabelValues(c.label, name, method).Observe(elapsed.Seconds())
			if err != nil {
				action := routing.ClassifyError(err)
				metrics.RPCErrorsTotal.WithLabelValues(c.label, name, action.String()).Inc()
				if action != routing.ActionFatal {
					c.log.Warn("RPC provider failed", "provider", name, "method", method, "error", err)
				}
			}
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%s: %w", method, ErrNullResult)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// GetProviderStats returns monitoring stats for all providers.
func (c *Client) GetProviderStats() map[string]provider.HealthStatus {
	providers := c.router.GetAllProviders(c.chainID)
	stats := make(map[string]provider.HealthStatus, len(providers))
	for _, p := range providers {
		stats[p.GetName()] = p.GetHealth()
	}
	return stats
}

// Close releases every provider's connections.
func (c *Client) Close() error {
	for _, p := range c.router.GetAllProviders(c.chainID) {
		if err := p.Close(); err != nil {
			return err
		}
	}
	return nil
}
