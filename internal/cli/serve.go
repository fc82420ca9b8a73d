package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/payroll/internal/control"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stream, invoice and payment ledger views over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := control.NewApp(ctx, appCfg)
	if err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		app.Close()
		return err
	}
	slog.Info("Payroll started", "config", cfgPath, "chains", len(app.Chains()))

	<-ctx.Done()
	slog.Info("Received signal, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	return app.Stop(shutdownCtx)
}
