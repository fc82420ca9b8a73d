package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/payment"
)

var (
	invoiceName    string
	invoiceDetails string
	invoiceAmount  string
	invoiceOrigin  string
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Work with on-chain invoices",
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an invoice payable in the native coin",
	Args:  cobra.NoArgs,
	RunE:  runInvoiceCreate,
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <invoice_id>",
	Short: "Show one invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceShow,
}

var invoiceListCmd = &cobra.Command{
	Use:   "list [creator]",
	Short: "List the invoices created by an address (default is the wallet)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInvoiceList,
}

var invoicePayCmd = &cobra.Command{
	Use:   "pay <invoice_id>",
	Short: "Pay an invoice with its exact amount",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoicePay,
}

func init() {
	invoiceCreateCmd.Flags().StringVar(&invoiceName, "name", "", "invoice name")
	invoiceCreateCmd.Flags().StringVar(&invoiceDetails, "details", "", "free-form details")
	invoiceCreateCmd.Flags().StringVar(&invoiceAmount, "amount", "", "amount in native coin units, e.g. 0.25")
	_ = invoiceCreateCmd.MarkFlagRequired("name")
	_ = invoiceCreateCmd.MarkFlagRequired("amount")

	for _, c := range []*cobra.Command{invoiceShowCmd, invoicePayCmd} {
		c.Flags().StringVar(&invoiceOrigin, "origin", "", "chain the invoice was created on (default is --chain)")
	}

	invoiceCmd.AddCommand(invoiceCreateCmd, invoiceShowCmd, invoiceListCmd, invoicePayCmd)
	rootCmd.AddCommand(invoiceCmd)
}

func runInvoiceCreate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	amount, err := payment.ToBaseUnits(invoiceAmount, decimal.NewFromInt(1), domain.NativeToken(c.Info).Decimals)
	if err != nil {
		return err
	}
	receipt, err := c.Invoices.Create(ctx, invoiceName, invoiceDetails, amount)
	if err != nil {
		return err
	}
	printReceipt(cmd.OutOrStdout(), "create invoice", receipt)
	return nil
}

func runInvoiceShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	ref, err := invoiceRef(c.Info, args[0])
	if err != nil {
		return err
	}
	inv, err := c.Invoices.Get(ctx, ref)
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout(), invoiceHeader)
	printInvoice(tw, c.Info, inv)
	return tw.Flush()
}

func runInvoiceList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	creator := c.Client.Account()
	if len(args) == 1 {
		creator = args[0]
	}
	if creator == "" {
		return domain.NewError(domain.KindValidation, "", "no creator given and no wallet configured", nil)
	}

	invoices, err := c.Invoices.ListByCreator(ctx, creator)
	if err != nil {
		return err
	}
	tw := newTable(cmd.OutOrStdout(), invoiceHeader)
	for _, inv := range invoices {
		printInvoice(tw, c.Info, inv)
	}
	return tw.Flush()
}

func runInvoicePay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, c, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	ref, err := invoiceRef(c.Info, args[0])
	if err != nil {
		return err
	}
	receipt, err := c.Invoices.Pay(ctx, ref)
	if err != nil {
		return err
	}
	printReceipt(cmd.OutOrStdout(), "pay invoice", receipt)
	return nil
}

const invoiceHeader = "ID\tNAME\tAMOUNT\tPAID\tCREATOR\tCREATED"

func printInvoice(tw io.Writer, chain domain.Chain, inv domain.Invoice) {
	native := domain.NativeToken(chain)
	created := time.Unix(int64(inv.CreatedAt), 0).UTC().Format(time.RFC3339)
	_, _ = fmt.Fprintf(tw, "%d\t%s\t%s %s\t%t\t%s\t%s\n",
		inv.ID, inv.Name, units(inv.Amount, native.Decimals), native.Symbol, inv.Paid, inv.Creator, created)
}

// invoiceRef builds the reference from an id argument and the --origin flag.
// Origins that are not configured are taken as raw chain ids.
func invoiceRef(current domain.Chain, rawID string) (domain.InvoiceRef, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return domain.InvoiceRef{}, domain.NewError(domain.KindValidation, "", fmt.Sprintf("invalid invoice id %q", rawID), nil)
	}
	ref := domain.InvoiceRef{ChainID: current.ID, ID: id}
	if invoiceOrigin != "" {
		if origin, ok := appCfg.FindChain(invoiceOrigin); ok {
			ref.ChainID = origin.ChainID
		} else {
			ref.ChainID = domain.ChainID(invoiceOrigin)
		}
	}
	return ref, nil
}
