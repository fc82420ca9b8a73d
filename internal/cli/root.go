package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/payroll/internal/control"
	"github.com/vietddude/payroll/internal/core/config"
)

var (
	cfgPath  string
	isDebug  bool
	chainRef string

	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:           "payroll",
	Short:         "On-chain payroll client",
	Long:          `Payroll sends bulk payouts and manages salary streams and invoices on EVM chains.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			stylelog.InitDefault()
			return err
		}
		setupLogging(cfg.Logging)
		appCfg = cfg
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&chainRef, "chain", "", "chain id or name (default is the first configured chain)")
}

func setupLogging(cfg config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Level == "error":
		slogLevel = slog.LevelError
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// openApp builds the application and resolves the --chain flag.
func openApp(ctx context.Context) (*control.App, *control.Chain, error) {
	app, err := control.NewApp(ctx, appCfg)
	if err != nil {
		return nil, nil, err
	}
	chain, err := app.Chain(chainRef)
	if err != nil {
		app.Close()
		return nil, nil, err
	}
	return app, chain, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
