package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/payroll/internal/infra/rpc/provider"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionFailover},
		{errors.New("project rate limit exceeded"), ActionFailover},
		{errors.New("quota exceeded"), ActionFailover},
		{errors.New("daily request count exceeded"), ActionFailover},
		{errors.New("403 Forbidden"), ActionFailover},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("Method not found -32601"), ActionFatal},
		{errors.New("Parse error -32700"), ActionFatal},
		{&provider.RPCError{Code: 3, Message: "execution reverted: ERC20: insufficient allowance"}, ActionFatal},
		{&provider.RPCError{Code: -32000, Message: "nonce too low"}, ActionFatal},
		{&provider.RPCError{Code: -32000, Message: "header not found"}, ActionFailover},
		{fmt.Errorf("wrapped: %w", context.Canceled), ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

type scriptedProvider struct {
	name  string
	errs  []error
	calls int
}

func (p *scriptedProvider) GetName() string                  { return p.name }
func (p *scriptedProvider) GetHealth() provider.HealthStatus { return provider.HealthStatus{Available: true} }
func (p *scriptedProvider) IsAvailable() bool                { return true }
func (p *scriptedProvider) Close() error                     { return nil }

func (p *scriptedProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return json.RawMessage(`"0x1"`), nil
}

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiple: 2}

func TestCallWithRetry(t *testing.T) {
	p := &scriptedProvider{name: "a", errs: []error{errors.New("connection reset"), errors.New("EOF")}}

	res, err := CallWithRetry(context.Background(), p, "eth_chainId", nil, fastRetry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res) != `"0x1"` || p.calls != 3 {
		t.Errorf("result %s after %d calls", res, p.calls)
	}

	fatal := &scriptedProvider{name: "b", errs: []error{&provider.RPCError{Code: 3, Message: "execution reverted"}}}
	if _, err := CallWithRetry(context.Background(), fatal, "eth_call", nil, fastRetry); err == nil || fatal.calls != 1 {
		t.Errorf("fatal error must not be retried: err=%v calls=%d", err, fatal.calls)
	}
}

func TestCallWithRetryAndFailover(t *testing.T) {
	limited := &scriptedProvider{name: "limited", errs: []error{errors.New("429 Too Many Requests")}}
	healthy := &scriptedProvider{name: "healthy"}

	router := NewRouter()
	router.AddProvider("1", limited)
	router.AddProvider("1", healthy)

	var seen []string
	res, err := CallWithRetryAndFailover(context.Background(), router, "1", "eth_chainId", nil, fastRetry,
		func(name string, _ time.Duration, _ error) { seen = append(seen, name) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res) != `"0x1"` {
		t.Errorf("result = %s", res)
	}
	if limited.calls != 1 || healthy.calls != 1 {
		t.Errorf("calls: limited=%d healthy=%d", limited.calls, healthy.calls)
	}
	if len(seen) != 2 || seen[0] != "limited" || seen[1] != "healthy" {
		t.Errorf("observed %v", seen)
	}
}

func TestRouterCircuitBreaker(t *testing.T) {
	a := &scriptedProvider{name: "a"}
	b := &scriptedProvider{name: "b"}
	router := NewRouter()
	router.AddProvider("1", a)
	router.AddProvider("1", b)

	for i := 0; i < circuitThreshold; i++ {
		router.RecordFailure("1", "a", errors.New("boom"))
	}
	if !router.CircuitOpen("1", "a") {
		t.Fatal("circuit should be open")
	}

	for i := 0; i < 4; i++ {
		ps := router.GetAllProviders("1")
		if ps[0].GetName() != "b" || ps[1].GetName() != "a" {
			t.Errorf("round %d: tripped provider must be tried last, got %s,%s", i, ps[0].GetName(), ps[1].GetName())
		}
	}

	router.RecordSuccess("1", "a", time.Millisecond)
	if router.CircuitOpen("1", "a") {
		t.Errorf("success must close the circuit")
	}
}
