package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsTotal tracks finished payment runs per chain, token and outcome
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_payments_total",
			Help: "Total number of finished payment runs",
		},
		[]string{"chain", "token", "outcome"},
	)

	// PaymentPhaseTransitions tracks orchestrator phase changes
	PaymentPhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_payment_phase_transitions_total",
			Help: "Total number of payment phase transitions",
		},
		[]string{"chain", "phase"},
	)

	// PaymentDuration tracks wall time from submission to terminal phase
	PaymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payroll_payment_duration_seconds",
			Help:    "Payment run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"chain", "outcome"},
	)

	// ReceiptWait tracks how long receipts take to arrive
	ReceiptWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payroll_receipt_wait_seconds",
			Help:    "Time spent polling for transaction receipts",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"chain"},
	)

	// RPCCallsTotal tracks RPC calls per chain and provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payroll_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "provider", "method"},
	)

	// RPCProviderAvailable reports whether the router considers a provider usable
	RPCProviderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payroll_rpc_provider_available",
			Help: "1 when the provider is available, 0 when throttled or tripped",
		},
		[]string{"chain", "provider"},
	)

	// DBConnectionPoolUsage tracks the ledger database pool utilisation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payroll_db_connection_pool_usage_percent",
			Help: "Open connections as a percentage of the pool limit",
		},
	)
)
