// Package control wires configuration into running payroll components.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/payroll/internal/api"
	"github.com/vietddude/payroll/internal/core/config"
	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/invoice"
	"github.com/vietddude/payroll/internal/core/payment"
	"github.com/vietddude/payroll/internal/core/stream"
	"github.com/vietddude/payroll/internal/core/worker"
	"github.com/vietddude/payroll/internal/infra/chain/evm"
	redisclient "github.com/vietddude/payroll/internal/infra/redis"
	"github.com/vietddude/payroll/internal/infra/rpc"
	"github.com/vietddude/payroll/internal/infra/storage"
	"github.com/vietddude/payroll/internal/infra/storage/memory"
	"github.com/vietddude/payroll/internal/infra/storage/postgres"
	"github.com/vietddude/payroll/internal/metrics"
)

// Chain bundles the services bound to one configured network.
type Chain struct {
	Config   config.ChainConfig
	Info     domain.Chain
	Tokens   []domain.Token
	RPC      *rpc.Client
	Client   *evm.Client
	Payments *payment.Orchestrator
	Streams  *stream.Service
	Invoices *invoice.Service
}

// App is the main application struct that owns every long-lived resource.
type App struct {
	cfg         *config.AppConfig
	chains      []*Chain
	attempts    storage.AttemptRepository
	db          *postgres.DB
	redisClient *redisclient.Client
	server      *api.Server
	log         *slog.Logger
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{cfg: cfg, log: slog.Default()}

	// 1. Initialize Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.attempts = postgres.NewAttemptRepo(db)
		a.log.Info("Using PostgreSQL storage")
	} else {
		a.attempts = memory.NewAttemptRepo()
		a.log.Info("Using Memory storage")
	}

	// 2. Initialize Redis lock and notification channel
	notifiers := payment.MultiNotifier{payment.NewLogNotifier(nil)}
	var locker payment.Locker
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			a.log.Warn("Failed to connect to Redis, distributed lock disabled", "error", err)
		} else {
			a.redisClient = client
			locker = redisclient.NewLocker(client)
			notifiers = append(notifiers, redisclient.NewNotifier(client, cfg.Redis.Channel))
		}
	}

	// 3. Wallet and rates
	var signer *evm.Signer
	if cfg.Wallet.PrivateKey != "" {
		var err error
		signer, err = evm.NewSigner(cfg.Wallet.PrivateKey)
		if err != nil {
			a.Close()
			return nil, domain.NewError(domain.KindConfiguration, "load wallet", "", err)
		}
		a.log.Info("Wallet loaded", "account", signer.Address().Hex())
	} else {
		a.log.Warn("No wallet key configured, running read-only")
	}

	rates, err := payment.ParseRates(cfg.Rates)
	if err != nil {
		a.Close()
		return nil, domain.NewError(domain.KindConfiguration, "load rates", "", err)
	}

	// 4. Per-chain RPC router, client and services
	for _, chainCfg := range cfg.Chains {
		info := chainCfg.Chain()

		router := rpc.NewRouter()
		for _, p := range chainCfg.Providers {
			router.AddProvider(string(info.ID), rpc.NewHTTPProvider(p.Name, p.URL, p.Timeout))
		}
		rpcClient := rpc.NewClient(string(info.ID), info.Label(), router, rpc.DefaultRetryConfig)
		client := evm.NewClient(rpcClient, signer, evm.Config{PollInterval: chainCfg.PollInterval})

		orch := payment.NewOrchestrator(client, rates, a.attempts, notifiers, payment.Config{
			ReceiptTimeout: chainCfg.ReceiptTimeout,
			LockTTL:        cfg.Payment.LockTTL,
		})
		if locker != nil {
			orch.SetLocker(locker)
		}

		tokens := cfg.TokensFor(info)
		a.chains = append(a.chains, &Chain{
			Config:   chainCfg,
			Info:     info,
			Tokens:   tokens,
			RPC:      rpcClient,
			Client:   client,
			Payments: orch,
			Streams:  stream.NewService(client, info, tokens, chainCfg.ReceiptTimeout),
			Invoices: invoice.NewService(client, info, chainCfg.ReceiptTimeout),
		})
		a.log.Info("Chain configured",
			"chain", info.Label(),
			"providers", len(chainCfg.Providers),
			"bulk_transfer", info.Contracts.BulkTransfer != "",
			"stream", info.Contracts.Stream != "",
			"invoices", info.Contracts.Invoices != "",
		)
	}

	return a, nil
}

// Chain resolves a configured chain by numeric id or internal name. An empty
// ref selects the first configured chain.
func (a *App) Chain(ref string) (*Chain, error) {
	if ref == "" && len(a.chains) > 0 {
		return a.chains[0], nil
	}
	cfg, ok := a.cfg.FindChain(ref)
	if ok {
		for _, c := range a.chains {
			if c.Info.ID == cfg.ChainID {
				return c, nil
			}
		}
	}
	return nil, domain.NewError(domain.KindConfiguration, "select chain", fmt.Sprintf("chain %q is not configured", ref), nil)
}

// Chains returns every configured chain.
func (a *App) Chains() []*Chain {
	return a.chains
}

// Attempts returns the payment ledger.
func (a *App) Attempts() storage.AttemptRepository {
	return a.attempts
}

// Config returns the loaded configuration.
func (a *App) Config() *config.AppConfig {
	return a.cfg
}

// Start serves the HTTP API and starts background collectors.
func (a *App) Start(ctx context.Context) error {
	a.server = api.NewServer(a.cfg.Server.Port, a.attempts)
	for _, c := range a.chains {
		a.server.AddChain(api.ChainServices{
			Chain:     c.Info,
			Streams:   c.Streams,
			Invoices:  c.Invoices,
			Providers: c.RPC.GetProviderStats,
		})
	}
	if a.db != nil {
		a.server.AddCheck("database", a.db.Health)
	}
	if a.redisClient != nil {
		a.server.AddCheck("redis", a.redisClient.Health)
	}

	// Start API Server
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("API server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	// Start RPC Metrics Updater
	go a.runMetricsUpdater(ctx)

	// Start Ledger Pruner
	if a.cfg.Payment.Retention > 0 {
		go worker.NewPruner(a.cfg.Payment.Retention, a.attempts).Start(ctx)
	}

	a.log.Info("API server listening", "port", a.cfg.Server.Port)
	return nil
}

// Stop shuts the API server down and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping payroll...")

	var err error
	if a.server != nil {
		err = a.server.Stop(ctx)
	}
	a.Close()
	return err
}

// Close releases connections. Safe to call on a partially built App.
func (a *App) Close() {
	for _, c := range a.chains {
		if err := c.RPC.Close(); err != nil {
			a.log.Warn("Failed to close RPC client", "chain", c.Info.Label(), "error", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}

func (a *App) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.updateProviderMetrics()
		}
	}
}

func (a *App) updateProviderMetrics() {
	for _, c := range a.chains {
		for name, health := range c.RPC.GetProviderStats() {
			v := 0.0
			if health.Available {
				v = 1
			}
			metrics.RPCProviderAvailable.WithLabelValues(c.Info.Label(), name).Set(v)
		}
		slog.Debug("Updating RPC metrics", "chain", c.Info.Label())
	}
}
