package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/payment"
	"github.com/vietddude/payroll/internal/core/recipients"
)

var (
	payToken      string
	payRecipients string
	payDryRun     bool
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Pay every recipient of a CSV sheet in one bulk transfer",
	Long: `Pay converts each USD amount of the address,amount sheet into token base units
at the configured rate, approves the bulk transfer contract when the allowance is
short, then submits and confirms a single bulk transfer.`,
	Args: cobra.NoArgs,
	RunE: runPay,
}

func init() {
	payCmd.Flags().StringVar(&payToken, "token", "", "token symbol or address (default is the native coin)")
	payCmd.Flags().StringVar(&payRecipients, "recipients", "", "CSV file with address,amount rows (USD)")
	payCmd.Flags().BoolVar(&payDryRun, "dry-run", false, "print the converted amounts without sending")
	_ = payCmd.MarkFlagRequired("recipients")
	rootCmd.AddCommand(payCmd)
}

func runPay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sheet, err := loadSheet(payRecipients)
	if err != nil {
		return err
	}

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	token, err := resolveToken(ctx, c, payToken)
	if err != nil {
		return err
	}
	selected := sheet.Selected()

	if err := previewPayment(ctx, cmd, c.Client, token, selected); err != nil {
		return err
	}
	if payDryRun {
		return nil
	}

	c.Payments.OnPhase(func(p domain.Phase) {
		slog.Info("Payment phase", "phase", p)
	})

	attempt, err := c.Payments.Pay(ctx, payment.Request{
		Recipients: selected,
		Token:      token,
		Chain:      c.Info,
	})
	if attempt != nil {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "attempt %s: %s\n", attempt.ID, attempt.Phase)
		if attempt.ApprovalTxHash != "" {
			_, _ = fmt.Fprintf(out, "approval tx: %s\n", attempt.ApprovalTxHash)
		}
		if attempt.TransferTxHash != "" {
			_, _ = fmt.Fprintf(out, "transfer tx: %s\n", attempt.TransferTxHash)
		}
	}
	return err
}

func loadSheet(path string) (recipients.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return recipients.Sheet{}, fmt.Errorf("failed to open recipients file: %w", err)
	}
	defer f.Close()
	return recipients.ReadCSV(f)
}

type balanceReader interface {
	Account() string
	BalanceOf(ctx context.Context, token, account string) (*big.Int, error)
}

// previewPayment prints the converted amounts and warns when the wallet
// balance does not cover the total.
func previewPayment(
	ctx context.Context,
	cmd *cobra.Command,
	wallet balanceReader,
	token domain.Token,
	selected []domain.Recipient,
) error {
	rates, err := payment.ParseRates(appCfg.Rates)
	if err != nil {
		return err
	}
	rate, err := rates.Rate(ctx, token)
	if err != nil {
		return err
	}
	amounts, total, err := payment.Amounts(selected, rate, token.Decimals)
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout(), "ADDRESS\tUSD\t"+token.Symbol)
	for i, r := range selected {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Address, r.AmountUSD, units(amounts[i], token.Decimals))
	}
	_, _ = fmt.Fprintf(tw, "TOTAL\t\t%s\n", units(total, token.Decimals))
	_ = tw.Flush()

	account := wallet.Account()
	if account == "" {
		return nil
	}
	balance, err := wallet.BalanceOf(ctx, token.Address, account)
	if err != nil {
		slog.Warn("Failed to read balance", "token", token.Symbol, "error", err)
		return nil
	}
	if balance.Cmp(total) < 0 {
		slog.Warn("Balance does not cover the payment",
			"token", token.Symbol,
			"balance", units(balance, token.Decimals),
			"total", units(total, token.Decimals),
		)
	}
	return nil
}
