// Package onchain holds the write-path steps shared by payouts, streams and
// invoices: the ERC-20 allowance gate and bounded receipt waiting.
package onchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/vietddude/payroll/internal/core/domain"
)

// DefaultReceiptTimeout bounds a receipt wait when the chain config sets none.
const DefaultReceiptTimeout = 3 * time.Minute

// ReceiptWaiter waits for a transaction to be mined.
type ReceiptWaiter interface {
	WaitReceipt(ctx context.Context, txHash string) (*domain.Receipt, error)
}

// AllowanceGateway is the wallet surface needed to gate on ERC-20 allowance.
type AllowanceGateway interface {
	ReceiptWaiter

	// Account returns the connected account address.
	Account() string

	// Allowance reads allowance(owner, spender) on token.
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)

	// Approve submits approve(spender, amount) on token and returns the tx hash.
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)
}

// Approval describes what EnsureAllowance did.
type Approval struct {
	Required bool
	TxHash   string
	Receipt  *domain.Receipt
}

// EnsureAllowance makes sure spender may move total of token on behalf of the
// connected account. Native tokens never need approval. When the current
// allowance is short, onApproving is called, an approve for exactly total is
// submitted and its receipt awaited before returning.
func EnsureAllowance(
	ctx context.Context,
	gw AllowanceGateway,
	token domain.Token,
	spender string,
	total *big.Int,
	timeout time.Duration,
	onApproving func(),
) (Approval, error) {
	if token.IsNative() {
		return Approval{}, nil
	}

	allowance, err := gw.Allowance(ctx, token.Address, gw.Account(), spender)
	if err != nil {
		return Approval{}, domain.NewError(domain.KindRPC, "read allowance", "", err)
	}
	if allowance != nil && allowance.Cmp(total) >= 0 {
		return Approval{}, nil
	}

	if onApproving != nil {
		onApproving()
	}

	hash, err := gw.Approve(ctx, token.Address, spender, total)
	if err != nil {
		return Approval{Required: true}, domain.NewError(domain.KindApprovalFailed, "approve", "", err)
	}

	receipt, err := AwaitReceipt(ctx, gw, hash, timeout, "approve")
	if err != nil {
		if domain.KindOf(err) == domain.KindRPC {
			err = domain.NewError(domain.KindApprovalFailed, "approve", "", err)
		}
		return Approval{Required: true, TxHash: hash, Receipt: receipt}, err
	}
	return Approval{Required: true, TxHash: hash, Receipt: receipt}, nil
}

// AwaitReceipt waits up to timeout for txHash and requires a successful status.
// Timeouts map to TimedOut, reverts to ReceiptFailed, anything else to RPC.
func AwaitReceipt(
	ctx context.Context,
	w ReceiptWaiter,
	txHash string,
	timeout time.Duration,
	op string,
) (*domain.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := w.WaitReceipt(waitCtx, txHash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.NewError(
				domain.KindTimedOut,
				op,
				fmt.Sprintf("no receipt for %s after %s", txHash, timeout),
				err,
			)
		}
		return nil, domain.NewError(domain.KindRPC, op, "", err)
	}

	slog.Debug("Receipt received", "op", op, "tx", txHash, "status", receipt.Status, "waited", time.Since(start))

	if !receipt.Succeeded() {
		return receipt, domain.NewError(
			domain.KindReceiptFailed,
			op,
			fmt.Sprintf("transaction %s reverted", txHash),
			nil,
		)
	}
	return receipt, nil
}

var rejectionPatterns = []string{
	"user rejected",
	"user denied",
	"rejected by user",
	"request rejected",
	"signing refused",
	"code 4001",
}

// IsUserRejection reports whether err looks like the signer declined the request.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range rejectionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
