package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/payment"
)

var (
	streamToken      string
	streamRecipients string
	streamDuration   time.Duration
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "Work with salary streams",
}

var streamsListCmd = &cobra.Command{
	Use:   "list [address]",
	Short: "List the streams paying an address (default is the wallet)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStreamsList,
}

var streamsClaimCmd = &cobra.Command{
	Use:   "claim <stream_id>...",
	Short: "Claim the vested balance of one or more streams",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStreamsClaim,
}

var streamsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open one stream per row of an address,amount CSV (token units)",
	Args:  cobra.NoArgs,
	RunE:  runStreamsCreate,
}

func init() {
	streamsCreateCmd.Flags().StringVar(&streamToken, "token", "", "token symbol or address (default is the native coin)")
	streamsCreateCmd.Flags().StringVar(&streamRecipients, "recipients", "", "CSV file with address,amount rows (token units)")
	streamsCreateCmd.Flags().DurationVar(&streamDuration, "duration", 30*24*time.Hour, "vesting duration of every stream")
	_ = streamsCreateCmd.MarkFlagRequired("recipients")

	streamsCmd.AddCommand(streamsListCmd, streamsClaimCmd, streamsCreateCmd)
	rootCmd.AddCommand(streamsCmd)
}

func runStreamsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	address := c.Client.Account()
	if len(args) == 1 {
		address = args[0]
	}
	if address == "" {
		return domain.NewError(domain.KindValidation, "", "no address given and no wallet configured", nil)
	}

	views, err := c.Streams.Views(ctx, address, time.Now())
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout(), "ID\tTOKEN\tTOTAL\tCLAIMED\tCLAIMABLE\tPROGRESS\tPER HOUR\tSTATUS")
	for _, v := range views {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			v.ID, v.Symbol, v.TotalAmount, v.ClaimedAmount, v.ClaimableAmount,
			v.ProgressPct, v.FlowRatePerHour, v.Status)
	}
	return tw.Flush()
}

func runStreamsClaim(cmd *cobra.Command, args []string) error {
	ids := make([]uint64, len(args))
	for i, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return domain.NewError(domain.KindValidation, "", fmt.Sprintf("invalid stream id %q", a), nil)
		}
		ids[i] = id
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var receipt *domain.Receipt
	if len(ids) == 1 {
		receipt, err = c.Streams.Claim(ctx, ids[0])
	} else {
		receipt, err = c.Streams.ClaimMany(ctx, ids)
	}
	if err != nil {
		return err
	}
	printReceipt(cmd.OutOrStdout(), "claim", receipt)
	return nil
}

func runStreamsCreate(cmd *cobra.Command, args []string) error {
	seconds := uint64(streamDuration / time.Second)
	if seconds == 0 {
		return domain.NewError(domain.KindValidation, "", "duration must be at least one second", nil)
	}

	sheet, err := loadSheet(streamRecipients)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	token, err := resolveToken(ctx, c, streamToken)
	if err != nil {
		return err
	}

	// Stream sheets are denominated in token units, so the rate is one.
	amounts, _, err := payment.Amounts(sheet.Selected(), decimal.NewFromInt(1), token.Decimals)
	if err != nil {
		return err
	}
	reqs := make([]domain.StreamRequest, len(amounts))
	for i, r := range sheet.Selected() {
		reqs[i] = domain.StreamRequest{Recipient: r.Address, Amount: amounts[i], Duration: seconds}
	}

	receipt, err := c.Streams.CreateBulk(ctx, token, reqs)
	if err != nil {
		return err
	}
	printReceipt(cmd.OutOrStdout(), "create streams", receipt)
	return nil
}
