package cli

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/vietddude/payroll/internal/control"
	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/stream"
)

func newTable(w io.Writer, header string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, header)
	return tw
}

func printReceipt(w io.Writer, what string, r *domain.Receipt) {
	if r == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "%s confirmed: tx %s block %d gas %d\n", what, r.TxHash, r.BlockNumber, r.GasUsed)
}

func units(amount *big.Int, decimals uint8) string {
	return stream.FormatUnits(amount, decimals)
}

// resolveToken accepts a configured symbol or address, falling back to
// reading an unlisted ERC-20 from chain. An empty ref means the native coin.
func resolveToken(ctx context.Context, c *control.Chain, ref string) (domain.Token, error) {
	if ref == "" {
		return domain.NativeToken(c.Info), nil
	}
	if t, ok := appCfg.FindToken(c.Info, ref); ok {
		return t, nil
	}
	if err := domain.ValidateAddress(ref); err != nil {
		return domain.Token{}, domain.NewError(
			domain.KindConfiguration,
			"select token",
			fmt.Sprintf("token %q is not configured on %s", ref, c.Info.Label()),
			nil,
		)
	}
	t, err := c.Client.TokenInfo(ctx, ref)
	if err != nil {
		return domain.Token{}, domain.NewError(domain.KindRPC, "read token", "", err)
	}
	return t, nil
}
