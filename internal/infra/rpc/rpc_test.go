package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/payroll/internal/infra/rpc/provider"
)

const testChain = "999"

// MockProvider implements provider.Provider for client tests
type MockProvider struct {
	name       string
	shouldFail bool
	result     string
	callCount  int
}

func (m *MockProvider) GetName() string {
	return m.name
}

func (m *MockProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	m.callCount++
	if m.shouldFail {
		return nil, fmt.Errorf("mock provider %s failed", m.name)
	}
	if m.result == "" {
		return json.RawMessage(`"success_result"`), nil
	}
	return json.RawMessage(m.result), nil
}

func (m *MockProvider) GetHealth() provider.HealthStatus {
	return provider.HealthStatus{Available: !m.shouldFail}
}

func (m *MockProvider) IsAvailable() bool {
	return true
}

func (m *MockProvider) Close() error {
	return nil
}

var testRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiple: 2}

// TestRPC_RetryAndFailover verifies retry on primary provider
// and failover to secondary provider
func TestRPC_RetryAndFailover(t *testing.T) {
	ctx := context.Background()

	primary := &MockProvider{name: "primary", shouldFail: true}
	secondary := &MockProvider{name: "secondary"}

	router := NewRouter()
	router.AddProvider(testChain, primary)
	router.AddProvider(testChain, secondary)

	client := NewClient(testChain, "TEST", router, testRetry)

	var result string
	if err := client.Call(ctx, &result, "test_method"); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result != "success_result" {
		t.Fatalf("unexpected result: %v", result)
	}

	if primary.callCount != testRetry.MaxAttempts {
		t.Errorf("primary provider expected %d retries, got %d", testRetry.MaxAttempts, primary.callCount)
	}
	if secondary.callCount != 1 {
		t.Errorf("secondary provider expected 1 call, got %d", secondary.callCount)
	}
}

func TestRPC_NullResult(t *testing.T) {
	router := NewRouter()
	router.AddProvider(testChain, &MockProvider{name: "p", result: "null"})
	client := NewClient(testChain, "TEST", router, testRetry)

	var out map[string]any
	if err := client.Call(context.Background(), &out, "eth_getTransactionReceipt", "0xabc"); !errors.Is(err, ErrNullResult) {
		t.Fatalf("expected ErrNullResult, got %v", err)
	}
	if err := client.Call(context.Background(), nil, "eth_getTransactionReceipt", "0xabc"); err != nil {
		t.Errorf("nil out must discard the result: %v", err)
	}
}

func TestRPC_NoProviders(t *testing.T) {
	client := NewClient(testChain, "TEST", NewRouter(), testRetry)
	if err := client.Call(context.Background(), nil, "eth_chainId"); err == nil {
		t.Fatal("expected error without providers")
	}
}
