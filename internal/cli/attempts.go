package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/payroll/internal/control"
	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/infra/storage"
)

var (
	attemptsPhase string
	attemptsLimit int
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts [attempt_id]",
	Short: "Show the payment ledger",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAttempts,
}

func init() {
	attemptsCmd.Flags().StringVar(&attemptsPhase, "phase", "", "only show attempts in this phase")
	attemptsCmd.Flags().IntVar(&attemptsLimit, "limit", 20, "maximum number of attempts to show")
	rootCmd.AddCommand(attemptsCmd)
}

func runAttempts(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := control.NewApp(ctx, appCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		a, err := app.Attempts().Get(ctx, args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "attempt:   %s\nchain:     %s\naccount:   %s\ntoken:     %s\nphase:     %s\n",
			a.ID, a.ChainID, a.Account, a.Token.Symbol, a.Phase)
		_, _ = fmt.Fprintf(out, "total:     %s\napproval:  %s\ntransfer:  %s\n",
			units(a.Total, a.Token.Decimals), a.ApprovalTxHash, a.TransferTxHash)
		if a.Error != "" {
			_, _ = fmt.Fprintf(out, "error:     %s (%s)\n", a.Error, a.ErrorKind)
		}
		tw := newTable(out, "RECIPIENT\tAMOUNT")
		for i, r := range a.Recipients {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", r, units(a.Amounts[i], a.Token.Decimals))
		}
		return tw.Flush()
	}

	filter := storage.AttemptFilter{Phase: domain.Phase(attemptsPhase), Limit: attemptsLimit}
	if chainRef != "" {
		c, err := app.Chain(chainRef)
		if err != nil {
			return err
		}
		filter.ChainID = c.Info.ID
	}

	attempts, err := app.Attempts().List(ctx, filter)
	if err != nil {
		return err
	}
	tw := newTable(out, "ID\tCHAIN\tTOKEN\tRECIPIENTS\tTOTAL\tPHASE\tCREATED")
	for _, a := range attempts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			a.ID, a.ChainID, a.Token.Symbol, len(a.Recipients),
			units(a.Total, a.Token.Decimals), a.Phase, a.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
