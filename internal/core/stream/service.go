package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/onchain"
)

// readConcurrency caps parallel getStream/getClaimableAmount reads.
const readConcurrency = 5

// Gateway is the stream contract surface plus the wallet.
type Gateway interface {
	onchain.AllowanceGateway

	ChainID(ctx context.Context) (domain.ChainID, error)
	RecipientStreams(ctx context.Context, contract, recipient string) ([]uint64, error)
	GetStream(ctx context.Context, contract string, id uint64) (domain.Stream, error)
	ClaimableAmount(ctx context.Context, contract string, id uint64) (*big.Int, error)
	ClaimStream(ctx context.Context, contract string, id uint64) (string, error)
	ClaimMultipleStreams(ctx context.Context, contract string, ids []uint64) (string, error)
	CreateBulkStreams(
		ctx context.Context,
		contract, token string,
		recipients []string,
		amounts []*big.Int,
		durations []uint64,
		value *big.Int,
	) (string, error)
}

// Service reads and writes streams on one chain.
type Service struct {
	gw             Gateway
	chain          domain.Chain
	known          []domain.Token
	receiptTimeout time.Duration
	log            *slog.Logger
}

// NewService creates a stream service. known is the token registry used for
// display symbols and decimals.
func NewService(gw Gateway, chain domain.Chain, known []domain.Token, receiptTimeout time.Duration) *Service {
	return &Service{
		gw:             gw,
		chain:          chain,
		known:          known,
		receiptTimeout: receiptTimeout,
		log:            slog.Default().With("component", "stream", "chain", chain.Label()),
	}
}

// RecipientStreams loads every stream paying address with its current
// claimable amount, in contract order.
func (s *Service) RecipientStreams(ctx context.Context, address string) ([]domain.Stream, error) {
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}
	contract, err := s.contract()
	if err != nil {
		return nil, err
	}

	ids, err := s.gw.RecipientStreams(ctx, contract, address)
	if err != nil {
		return nil, domain.NewError(domain.KindRPC, "get recipient streams", "", err)
	}

	streams := make([]domain.Stream, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			st, err := s.gw.GetStream(gctx, contract, id)
			if err != nil {
				return domain.NewError(domain.KindRPC, fmt.Sprintf("get stream %d", id), "", err)
			}
			claimable, err := s.gw.ClaimableAmount(gctx, contract, id)
			if err != nil {
				return domain.NewError(domain.KindRPC, fmt.Sprintf("get claimable amount %d", id), "", err)
			}
			st.ID = id
			st.ClaimableAmount = claimable
			streams[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug("Loaded recipient streams", "recipient", address, "count", len(streams))
	return streams, nil
}

// Views returns display projections of the streams paying address at now.
func (s *Service) Views(ctx context.Context, address string, now time.Time) ([]View, error) {
	streams, err := s.RecipientStreams(ctx, address)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(streams))
	for i, st := range streams {
		views[i] = NewView(st, uint64(now.Unix()), s.chain, s.known)
	}
	return views, nil
}

// Claim withdraws the vested balance of one stream.
func (s *Service) Claim(ctx context.Context, id uint64) (*domain.Receipt, error) {
	contract, err := s.writable(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := s.gw.ClaimStream(ctx, contract, id)
	if err != nil {
		return nil, domain.NewError(domain.KindTransferRejected, "claim stream", "", err)
	}
	s.log.Info("Claim submitted", "stream", id, "tx", hash)
	return onchain.AwaitReceipt(ctx, s.gw, hash, s.receiptTimeout, "claim stream")
}

// ClaimMany withdraws several streams in one transaction.
func (s *Service) ClaimMany(ctx context.Context, ids []uint64) (*domain.Receipt, error) {
	if len(ids) == 0 {
		return nil, domain.NewError(domain.KindValidation, "", "no streams selected", nil)
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, domain.NewError(domain.KindValidation, "", fmt.Sprintf("duplicate stream %d", id), nil)
		}
		seen[id] = struct{}{}
	}

	contract, err := s.writable(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := s.gw.ClaimMultipleStreams(ctx, contract, ids)
	if err != nil {
		return nil, domain.NewError(domain.KindTransferRejected, "claim streams", "", err)
	}
	s.log.Info("Claim submitted", "streams", len(ids), "tx", hash)
	return onchain.AwaitReceipt(ctx, s.gw, hash, s.receiptTimeout, "claim streams")
}

// CreateBulk opens one stream per request. Native streams attach the summed
// amount as value; ERC-20 streams first gate on allowance to the stream contract.
func (s *Service) CreateBulk(ctx context.Context, token domain.Token, reqs []domain.StreamRequest) (*domain.Receipt, error) {
	if len(reqs) == 0 {
		return nil, domain.NewError(domain.KindValidation, "", "no recipients selected", nil)
	}

	recipients := make([]string, len(reqs))
	amounts := make([]*big.Int, len(reqs))
	durations := make([]uint64, len(reqs))
	total := new(big.Int)
	for i, r := range reqs {
		if err := domain.ValidateAddress(r.Recipient); err != nil {
			return nil, err
		}
		if r.Amount == nil || r.Amount.Sign() <= 0 {
			return nil, domain.NewError(domain.KindValidation, "", fmt.Sprintf("stream amount for %s must be positive", r.Recipient), nil)
		}
		if r.Duration == 0 {
			return nil, domain.NewError(domain.KindValidation, "", fmt.Sprintf("stream duration for %s must be positive", r.Recipient), nil)
		}
		recipients[i] = r.Recipient
		amounts[i] = new(big.Int).Set(r.Amount)
		durations[i] = r.Duration
		total.Add(total, r.Amount)
	}

	contract, err := s.writable(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := onchain.EnsureAllowance(ctx, s.gw, token, contract, total, s.receiptTimeout, func() {
		s.log.Info("Approving stream contract", "token", token.Symbol, "amount", total.String())
	}); err != nil {
		return nil, err
	}

	value := new(big.Int)
	if token.IsNative() {
		value.Set(total)
	}

	hash, err := s.gw.CreateBulkStreams(ctx, contract, token.Address, recipients, amounts, durations, value)
	if err != nil {
		return nil, domain.NewError(domain.KindTransferRejected, "create streams", "", err)
	}
	s.log.Info("Streams submitted", "count", len(reqs), "token", token.Symbol, "tx", hash)
	return onchain.AwaitReceipt(ctx, s.gw, hash, s.receiptTimeout, "create streams")
}

func (s *Service) contract() (string, error) {
	if s.chain.Contracts.Stream == "" {
		return "", domain.NewError(domain.KindConfiguration, "", "contract unavailable on this network", nil)
	}
	return s.chain.Contracts.Stream, nil
}

// writable returns the stream contract after checking the wallet is on this chain.
func (s *Service) writable(ctx context.Context) (string, error) {
	contract, err := s.contract()
	if err != nil {
		return "", err
	}
	connected, err := s.gw.ChainID(ctx)
	if err != nil {
		return "", domain.NewError(domain.KindRPC, "read chain id", "", err)
	}
	if connected != s.chain.ID {
		return "", domain.NewError(domain.KindNetworkMismatch, "",
			fmt.Sprintf("wallet is connected to chain %s, streams live on chain %s", connected, s.chain.ID), nil)
	}
	return contract, nil
}
