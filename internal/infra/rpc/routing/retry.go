package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vietddude/payroll/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	default:
		return "fatal"
	}
}

// Node answers that are the same on every provider. Retrying them would at
// best waste quota and at worst resubmit a transaction.
var deterministicPatterns = []string{
	"execution reverted",
	"nonce too low",
	"insufficient funds",
	"already known",
	"replacement transaction underpriced",
	"intrinsic gas too low",
	"gas required exceeds allowance",
	"invalid sender",
}

var failoverPatterns = []string{
	"too many requests",
	"forbidden",
	"quota",
	"plan limit",
	"unauthorized",
	"rate limit",
	"count exceeded",
	"throttle",
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) {
		return ActionFatal
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
		case -32700, -32600, -32601, -32602, 3:
			return ActionFatal
		}
	}

	// Fatal (Code or Request issues)
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}
	for _, p := range deterministicPatterns {
		if strings.Contains(sLower, p) {
			return ActionFatal
		}
	}

	// Failover (Provider specific issues)
	if strings.Contains(s, "429") || strings.Contains(s, "403") {
		return ActionFailover
	}
	for _, p := range failoverPatterns {
		if strings.Contains(sLower, p) {
			return ActionFailover
		}
	}

	// Other node answers are provider specific (pruned state, lagging head).
	if rpcErr != nil {
		return ActionFailover
	}

	// Default to Retry (Network, 5xx, etc)
	return ActionRetry
}

// CallWithRetry executes an RPC call with exponential backoff.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	method string,
	params []any,
	config RetryConfig,
) (json.RawMessage, error) {
	attempts := max(config.MaxAttempts, 1)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := p.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}

		lastErr = err

		action := ClassifyError(err)
		if action == ActionFatal || action == ActionFailover {
			return nil, err
		}

		if attempt == attempts-1 {
			break
		}

		delay := calculateBackoff(attempt, config)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// Observer is told about every provider attempt made by CallWithRetryAndFailover.
type Observer func(providerName string, elapsed time.Duration, err error)

// CallWithRetryAndFailover tries the chain's providers in router order,
// retrying each, and stops at the first fatal error.
func CallWithRetryAndFailover(
	ctx context.Context,
	router Router,
	chainID string,
	method string,
	params []any,
	config RetryConfig,
	observe Observer,
) (json.RawMessage, error) {
	providers := router.GetAllProviders(chainID)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}

	var lastErr error
	for _, p := range providers {
		start := time.Now()
		result, err := CallWithRetry(ctx, p, method, params, config)
		latency := time.Since(start)
		if observe != nil {
			observe(p.GetName(), latency, err)
		}
		if err == nil {
			router.RecordSuccess(chainID, p.GetName(), latency)
			return result, nil
		}

		lastErr = err
		if ClassifyError(err) == ActionFatal {
			// The provider answered; the request was at fault.
			router.RecordSuccess(chainID, p.GetName(), latency)
			return nil, err
		}
		router.RecordFailure(chainID, p.GetName(), err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
