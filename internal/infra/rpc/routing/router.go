// Package routing handles provider selection, failover and retry.
//
// This package contains:
//   - Router: interface for provider selection and health tracking
//   - DefaultRouter: round-robin selection with a circuit breaker
//   - Retry: retry logic with exponential backoff and failover
package routing

import (
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/payroll/internal/infra/rpc/provider"
)

// Router handles provider selection and health tracking.
type Router interface {
	// AddProvider registers a provider for a specific chain
	AddProvider(chainID string, p provider.Provider)

	// GetProvider returns the best available provider for a chain
	GetProvider(chainID string) (provider.Provider, error)

	// GetAllProviders returns the providers for a chain in the order they should be tried
	GetAllProviders(chainID string) []provider.Provider

	// RecordSuccess tracks successful calls
	RecordSuccess(chainID, providerName string, latency time.Duration)

	// RecordFailure tracks failed calls
	RecordFailure(chainID, providerName string, err error)
}

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

type providerMetrics struct {
	successCount     int
	failureCount     int
	totalLatency     time.Duration
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	consecutiveFails int
	circuitOpen      bool
}

func (m *providerMetrics) tripped(now time.Time) bool {
	return m.circuitOpen && now.Sub(m.lastFailureAt) < circuitCooldown
}

// DefaultRouter rotates the starting provider on every selection and skips
// providers whose circuit is open or whose monitor reports them blocked.
type DefaultRouter struct {
	mu             sync.Mutex
	chainProviders map[string][]provider.Provider
	providerHealth map[string]*providerMetrics
	next           map[string]int
}

// NewRouter creates a new router.
func NewRouter() *DefaultRouter {
	return &DefaultRouter{
		chainProviders: make(map[string][]provider.Provider),
		providerHealth: make(map[string]*providerMetrics),
		next:           make(map[string]int),
	}
}

func healthKey(chainID, name string) string {
	return chainID + "/" + name
}

// AddProvider registers a provider for a chain.
func (r *DefaultRouter) AddProvider(chainID string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chainProviders[chainID] = append(r.chainProviders[chainID], p)
	r.providerHealth[healthKey(chainID, p.GetName())] = &providerMetrics{
		lastSuccessAt: time.Now(),
	}
}

// GetProvider returns the next usable provider for a chain.
func (r *DefaultRouter) GetProvider(chainID string) (provider.Provider, error) {
	providers := r.GetAllProviders(chainID)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}
	return providers[0], nil
}

// GetAllProviders returns every provider for a chain, usable ones first,
// starting from the next provider in rotation.
func (r *DefaultRouter) GetAllProviders(chainID string) []provider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.chainProviders[chainID]
	n := len(providers)
	if n == 0 {
		return nil
	}

	start := r.next[chainID] % n
	r.next[chainID] = (start + 1) % n

	now := time.Now()
	usable := make([]provider.Provider, 0, n)
	var parked []provider.Provider
	for i := 0; i < n; i++ {
		p := providers[(start+i)%n]
		m := r.providerHealth[healthKey(chainID, p.GetName())]
		if (m != nil && m.tripped(now)) || !p.IsAvailable() {
			parked = append(parked, p)
			continue
		}
		usable = append(usable, p)
	}
	return append(usable, parked...)
}

// RecordSuccess records a successful call.
func (r *DefaultRouter) RecordSuccess(chainID, providerName string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[healthKey(chainID, providerName)]
	if !ok {
		return
	}
	m.successCount++
	m.totalLatency += latency
	m.lastSuccessAt = time.Now()
	m.consecutiveFails = 0
	m.circuitOpen = false
}

// RecordFailure records a failed call.
func (r *DefaultRouter) RecordFailure(chainID, providerName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[healthKey(chainID, providerName)]
	if !ok {
		return
	}
	m.failureCount++
	m.lastFailureAt = time.Now()
	m.consecutiveFails++
	if m.consecutiveFails >= circuitThreshold {
		m.circuitOpen = true
	}
}

// CircuitOpen reports whether calls to the provider are currently being skipped.
func (r *DefaultRouter) CircuitOpen(chainID, providerName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[healthKey(chainID, providerName)]
	return ok && m.tripped(time.Now())
}
