// Package invoice creates, reads and settles invoices held by the invoices contract.
package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/onchain"
)

const readConcurrency = 5

// Gateway is the invoices contract surface plus the wallet.
type Gateway interface {
	onchain.ReceiptWaiter

	Account() string
	ChainID(ctx context.Context) (domain.ChainID, error)
	GetInvoice(ctx context.Context, contract string, id uint64) (domain.Invoice, error)
	InvoicesByCreator(ctx context.Context, contract, creator string) ([]uint64, error)
	CreateInvoice(ctx context.Context, contract, name, details string, amount *big.Int) (string, error)
	PayInvoice(ctx context.Context, contract string, id uint64, value *big.Int) (string, error)
}

// Service works against the invoices contract of one chain.
type Service struct {
	gw             Gateway
	chain          domain.Chain
	receiptTimeout time.Duration
	log            *slog.Logger
}

func NewService(gw Gateway, chain domain.Chain, receiptTimeout time.Duration) *Service {
	return &Service{
		gw:             gw,
		chain:          chain,
		receiptTimeout: receiptTimeout,
		log:            slog.Default().With("component", "invoice", "chain", chain.Label()),
	}
}

// Create submits createInvoice(name, details, amountWei).
func (s *Service) Create(ctx context.Context, name, details string, amountWei *big.Int) (*domain.Receipt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.KindValidation, "", "invoice name is required", nil)
	}
	if amountWei == nil || amountWei.Sign() <= 0 {
		return nil, domain.NewError(domain.KindValidation, "", "invoice amount must be positive", nil)
	}

	contract, err := s.contract()
	if err != nil {
		return nil, err
	}
	if err := s.requireChain(ctx, s.chain.ID); err != nil {
		return nil, err
	}

	hash, err := s.gw.CreateInvoice(ctx, contract, name, details, amountWei)
	if err != nil {
		return nil, domain.NewError(domain.KindTransferRejected, "create invoice", "", err)
	}
	s.log.Info("Invoice submitted", "name", name, "amount", amountWei.String(), "tx", hash)
	return onchain.AwaitReceipt(ctx, s.gw, hash, s.receiptTimeout, "create invoice")
}

// Get reads one invoice. ref must point at this service's chain.
func (s *Service) Get(ctx context.Context, ref domain.InvoiceRef) (domain.Invoice, error) {
	if ref.ChainID != s.chain.ID {
		return domain.Invoice{}, domain.NewError(domain.KindNetworkMismatch, "",
			fmt.Sprintf("invoice %d was created on chain %s, not %s", ref.ID, ref.ChainID, s.chain.ID), nil)
	}
	contract, err := s.contract()
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.get(ctx, contract, ref.ID)
}

// ListByCreator returns every invoice created by creator, in contract order.
func (s *Service) ListByCreator(ctx context.Context, creator string) ([]domain.Invoice, error) {
	if err := domain.ValidateAddress(creator); err != nil {
		return nil, err
	}
	contract, err := s.contract()
	if err != nil {
		return nil, err
	}

	ids, err := s.gw.InvoicesByCreator(ctx, contract, creator)
	if err != nil {
		return nil, domain.NewError(domain.KindRPC, "get invoices by creator", "", err)
	}

	out := make([]domain.Invoice, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			inv, err := s.get(gctx, contract, id)
			if err != nil {
				return err
			}
			out[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Pay settles an invoice with value equal to its amount. The wallet must be
// connected to the invoice's origin chain.
func (s *Service) Pay(ctx context.Context, ref domain.InvoiceRef) (*domain.Receipt, error) {
	if err := s.requireChain(ctx, ref.ChainID); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if inv.Paid {
		return nil, domain.NewError(domain.KindValidation, "", fmt.Sprintf("invoice %d is already paid", ref.ID), nil)
	}
	if inv.Amount == nil || inv.Amount.Sign() <= 0 {
		return nil, domain.NewError(domain.KindValidation, "", fmt.Sprintf("invoice %d has no amount", ref.ID), nil)
	}

	hash, err := s.gw.PayInvoice(ctx, s.chain.Contracts.Invoices, ref.ID, inv.Amount)
	if err != nil {
		return nil, domain.NewError(domain.KindTransferRejected, "pay invoice", "", err)
	}
	s.log.Info("Invoice payment submitted", "invoice", ref.ID, "amount", inv.Amount.String(), "tx", hash)
	return onchain.AwaitReceipt(ctx, s.gw, hash, s.receiptTimeout, "pay invoice")
}

func (s *Service) get(ctx context.Context, contract string, id uint64) (domain.Invoice, error) {
	inv, err := s.gw.GetInvoice(ctx, contract, id)
	if err != nil {
		return domain.Invoice{}, domain.NewError(domain.KindRPC, fmt.Sprintf("get invoice %d", id), "", err)
	}
	inv.ID = id
	inv.ChainID = s.chain.ID
	return inv, nil
}

func (s *Service) contract() (string, error) {
	if s.chain.Contracts.Invoices == "" {
		return "", domain.NewError(domain.KindConfiguration, "", "contract unavailable on this network", nil)
	}
	return s.chain.Contracts.Invoices, nil
}

func (s *Service) requireChain(ctx context.Context, want domain.ChainID) error {
	connected, err := s.gw.ChainID(ctx)
	if err != nil {
		return domain.NewError(domain.KindRPC, "read chain id", "", err)
	}
	if connected != want {
		return domain.NewError(domain.KindNetworkMismatch, "",
			fmt.Sprintf("wallet is connected to chain %s, invoice lives on chain %s", connected, want), nil)
	}
	return nil
}
