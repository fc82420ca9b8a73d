// Package payment executes bulk payouts: USD amounts are converted to token
// base units, an ERC-20 allowance is granted when short, and the bulk transfer
// is submitted and confirmed.
//
// Phases only move forward:
//
//	idle → approving → sending → confirming → completed
//	idle → sending → confirming → completed
//
// Any phase may move to failed. completed and failed stay until Reset.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/onchain"
	"github.com/vietddude/payroll/internal/infra/storage"
	"github.com/vietddude/payroll/internal/metrics"
)

var (
	// ErrPaymentInProgress is returned when Pay is called while a run is outstanding.
	ErrPaymentInProgress = errors.New("payment already in progress")

	// ErrResetRequired is returned when Pay is called on a finished orchestrator.
	ErrResetRequired = errors.New("previous payment finished, reset before paying again")
)

// Gateway is the wallet and contract surface the orchestrator drives.
type Gateway interface {
	onchain.AllowanceGateway

	// ChainID returns the chain the wallet is connected to.
	ChainID(ctx context.Context) (domain.ChainID, error)

	// BulkTransfer submits bulkTransfer(token, recipients, amounts) to contract
	// with value attached and returns the tx hash.
	BulkTransfer(
		ctx context.Context,
		contract, token string,
		recipients []string,
		amounts []*big.Int,
		value *big.Int,
	) (string, error)
}

// Request is one pay action.
type Request struct {
	Recipients []domain.Recipient
	Token      domain.Token
	Chain      domain.Chain
}

// Config tunes waits and locking.
type Config struct {
	ReceiptTimeout time.Duration
	LockTTL        time.Duration
}

// State is the orchestrator's view-model. Hashes are cleared once a run completes.
type State struct {
	AttemptID      string
	Phase          domain.Phase
	ApprovalTxHash string
	TransferTxHash string
	Err            error
}

// Orchestrator runs one payment at a time.
type Orchestrator struct {
	gw       Gateway
	rates    RateSource
	repo     storage.AttemptRepository
	notifier Notifier
	locker   Locker
	cfg      Config
	log      *slog.Logger

	mu        sync.Mutex
	busy      bool
	state     State
	observers []func(domain.Phase)
}

// NewOrchestrator wires an orchestrator. repo and notifier may be nil.
func NewOrchestrator(
	gw Gateway,
	rates RateSource,
	repo storage.AttemptRepository,
	notifier Notifier,
	cfg Config,
) *Orchestrator {
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = onchain.DefaultReceiptTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.ReceiptTimeout*2 + time.Minute
	}
	if notifier == nil {
		notifier = NewLogNotifier(nil)
	}
	return &Orchestrator{
		gw:       gw,
		rates:    rates,
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		log:      slog.Default().With("component", "payment"),
		state:    State{Phase: domain.PhaseIdle},
	}
}

// SetLocker enables a cross-process guard in addition to the in-process one.
func (o *Orchestrator) SetLocker(l Locker) {
	o.locker = l
}

// OnPhase registers a callback invoked after every phase change.
func (o *Orchestrator) OnPhase(fn func(domain.Phase)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reset returns a finished orchestrator to idle.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy || o.state.Phase.InFlight() {
		return ErrPaymentInProgress
	}
	o.state = State{Phase: domain.PhaseIdle}
	return nil
}

// Pay executes req. A call made while another run is outstanding returns
// ErrPaymentInProgress without side effects.
func (o *Orchestrator) Pay(ctx context.Context, req Request) (*domain.Attempt, error) {
	o.mu.Lock()
	if o.busy || o.state.Phase.InFlight() {
		o.mu.Unlock()
		return nil, ErrPaymentInProgress
	}
	if o.state.Phase.Terminal() {
		o.mu.Unlock()
		return nil, ErrResetRequired
	}
	o.busy = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	start := time.Now()

	attempt, err := o.prepare(ctx, req)
	if err != nil {
		return nil, o.fail(ctx, req, nil, start, err)
	}

	if o.locker != nil {
		release, ok, err := o.locker.TryLock(ctx, lockKey(string(req.Chain.ID), attempt.Account), o.cfg.LockTTL)
		if err != nil {
			return nil, o.fail(ctx, req, nil, start, domain.NewError(domain.KindRPC, "acquire payment lock", "", err))
		}
		if !ok {
			return nil, ErrPaymentInProgress
		}
		defer release()
	}

	o.save(ctx, attempt)
	o.log.Info("Payment started",
		"attempt", attempt.ID,
		"chain", req.Chain.Label(),
		"token", req.Token.Symbol,
		"recipients", len(attempt.Recipients),
		"total", attempt.Total.String(),
	)

	spender := req.Chain.Contracts.BulkTransfer
	approval, err := onchain.EnsureAllowance(
		ctx,
		o.gw,
		req.Token,
		spender,
		attempt.Total,
		o.cfg.ReceiptTimeout,
		func() { o.setPhase(ctx, req, attempt, domain.PhaseApproving) },
	)
	if approval.TxHash != "" {
		o.mu.Lock()
		attempt.ApprovalTxHash = approval.TxHash
		o.state.ApprovalTxHash = approval.TxHash
		o.mu.Unlock()
	}
	if err != nil {
		err = o.fail(ctx, req, attempt, start, err)
		return attempt.Clone(), err
	}

	o.setPhase(ctx, req, attempt, domain.PhaseSending)

	hash, err := o.gw.BulkTransfer(ctx, spender, req.Token.Address, attempt.Recipients, attempt.Amounts, attempt.Value)
	if err != nil {
		err = o.fail(ctx, req, attempt, start, domain.NewError(domain.KindTransferRejected, "bulk transfer", "", err))
		return attempt.Clone(), err
	}

	o.mu.Lock()
	attempt.TransferTxHash = hash
	o.state.TransferTxHash = hash
	o.mu.Unlock()
	o.setPhase(ctx, req, attempt, domain.PhaseConfirming)

	waitStart := time.Now()
	_, err = onchain.AwaitReceipt(ctx, o.gw, hash, o.cfg.ReceiptTimeout, "bulk transfer")
	metrics.ReceiptWait.WithLabelValues(req.Chain.Label()).Observe(time.Since(waitStart).Seconds())
	if err != nil {
		err = o.fail(ctx, req, attempt, start, err)
		return attempt.Clone(), err
	}

	o.complete(ctx, req, attempt, start)
	return attempt.Clone(), nil
}

// prepare validates the request and computes exact base-unit amounts.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (*domain.Attempt, error) {
	if len(req.Recipients) == 0 {
		return nil, domain.NewError(domain.KindValidation, "", "no recipients selected", nil)
	}

	seen := make(map[string]struct{}, len(req.Recipients))
	addrs := make([]string, len(req.Recipients))
	for i, r := range req.Recipients {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		key := normalize(r.Address)
		if _, dup := seen[key]; dup {
			return nil, domain.NewError(domain.KindValidation, "", fmt.Sprintf("duplicate recipient %s", r.Address), nil)
		}
		seen[key] = struct{}{}
		addrs[i] = r.Address
	}

	if req.Chain.Contracts.BulkTransfer == "" {
		return nil, domain.NewError(domain.KindConfiguration, "", "contract unavailable on this network", nil)
	}

	connected, err := o.gw.ChainID(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindRPC, "read chain id", "", err)
	}
	if connected != req.Chain.ID {
		return nil, domain.NewError(
			domain.KindNetworkMismatch,
			"",
			fmt.Sprintf("wallet is connected to chain %s, payment targets chain %s", connected, req.Chain.ID),
			nil,
		)
	}

	rate, err := o.rates.Rate(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	amounts, total, err := Amounts(req.Recipients, rate, req.Token.Decimals)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if req.Token.IsNative() {
		value.Set(total)
	}

	now := time.Now().UTC()
	return &domain.Attempt{
		ID:         uuid.New().String(),
		ChainID:    req.Chain.ID,
		Account:    o.gw.Account(),
		Token:      req.Token,
		Recipients: addrs,
		Amounts:    amounts,
		Total:      total,
		Value:      value,
		Phase:      domain.PhaseIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (o *Orchestrator) setPhase(ctx context.Context, req Request, attempt *domain.Attempt, phase domain.Phase) {
	o.mu.Lock()
	attempt.Phase = phase
	attempt.UpdatedAt = time.Now().UTC()
	o.state.AttemptID = attempt.ID
	o.state.Phase = phase
	observers := append([]func(domain.Phase){}, o.observers...)
	o.mu.Unlock()

	metrics.PaymentPhaseTransitions.WithLabelValues(req.Chain.Label(), string(phase)).Inc()
	o.log.Debug("Payment phase changed", "attempt", attempt.ID, "phase", phase)
	o.save(ctx, attempt)

	for _, fn := range observers {
		fn(phase)
	}
}

func (o *Orchestrator) complete(ctx context.Context, req Request, attempt *domain.Attempt, start time.Time) {
	o.setPhase(ctx, req, attempt, domain.PhaseCompleted)

	metrics.PaymentsTotal.WithLabelValues(req.Chain.Label(), req.Token.Symbol, "completed").Inc()
	metrics.PaymentDuration.WithLabelValues(req.Chain.Label(), "completed").Observe(time.Since(start).Seconds())

	o.notify(ctx, domain.Notification{
		AttemptID: attempt.ID,
		ChainID:   req.Chain.ID,
		Level:     domain.NotificationSuccess,
		Message: fmt.Sprintf("Paid %d recipients %s %s",
			len(attempt.Recipients), formatUnits(attempt.Total, req.Token.Decimals), req.Token.Symbol),
		TxHash: attempt.TransferTxHash,
	})

	o.mu.Lock()
	o.state.ApprovalTxHash = ""
	o.state.TransferTxHash = ""
	o.mu.Unlock()
}

// fail moves to the failed phase and emits the single error notification.
// attempt may be nil when validation failed before one was created.
func (o *Orchestrator) fail(ctx context.Context, req Request, attempt *domain.Attempt, start time.Time, err error) error {
	if domain.KindOf(err) == "" {
		err = domain.NewError(domain.KindRPC, "", "", err)
	}
	kind := domain.KindOf(err)

	attemptID := ""
	if attempt != nil {
		attemptID = attempt.ID
	}
	o.log.Error("Payment failed", "attempt", attemptID, "kind", kind, "error", err)

	o.mu.Lock()
	o.state.Phase = domain.PhaseFailed
	o.state.AttemptID = attemptID
	o.state.Err = err
	observers := append([]func(domain.Phase){}, o.observers...)
	if attempt != nil {
		attempt.Phase = domain.PhaseFailed
		attempt.ErrorKind = kind
		attempt.Error = err.Error()
		attempt.UpdatedAt = time.Now().UTC()
	}
	o.mu.Unlock()

	if attempt != nil {
		o.save(ctx, attempt)
	}
	metrics.PaymentPhaseTransitions.WithLabelValues(req.Chain.Label(), string(domain.PhaseFailed)).Inc()
	metrics.PaymentsTotal.WithLabelValues(req.Chain.Label(), req.Token.Symbol, string(kind)).Inc()
	metrics.PaymentDuration.WithLabelValues(req.Chain.Label(), "failed").Observe(time.Since(start).Seconds())

	txHash := ""
	if attempt != nil {
		txHash = attempt.TransferTxHash
		if txHash == "" {
			txHash = attempt.ApprovalTxHash
		}
	}
	o.notify(ctx, domain.Notification{
		AttemptID: attemptID,
		ChainID:   req.Chain.ID,
		Level:     domain.NotificationError,
		Kind:      kind,
		Message:   userMessage(err),
		TxHash:    txHash,
	})

	for _, fn := range observers {
		fn(domain.PhaseFailed)
	}
	return err
}

func (o *Orchestrator) notify(ctx context.Context, n domain.Notification) {
	n.At = time.Now().UTC()
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.log.Warn("Failed to deliver notification", "attempt", n.AttemptID, "error", err)
	}
}

func (o *Orchestrator) save(ctx context.Context, attempt *domain.Attempt) {
	if o.repo == nil {
		return
	}
	o.mu.Lock()
	snapshot := attempt.Clone()
	o.mu.Unlock()

	// The ledger must not block a run whose transaction may already be on chain.
	if err := o.repo.Save(context.WithoutCancel(ctx), snapshot); err != nil {
		o.log.Warn("Failed to record attempt", "attempt", attempt.ID, "phase", attempt.Phase, "error", err)
	}
}

func userMessage(err error) string {
	var e *domain.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case domain.KindApprovalFailed:
		if onchain.IsUserRejection(err) {
			return "Approval was rejected in the wallet"
		}
		return "Token approval failed: " + err.Error()
	case domain.KindTransferRejected:
		if onchain.IsUserRejection(err) {
			return "Transfer was rejected in the wallet"
		}
		return "Transfer could not be submitted: " + err.Error()
	case domain.KindReceiptFailed:
		return "Transaction reverted on chain (gas was spent): " + err.Error()
	case domain.KindTimedOut:
		return "Timed out waiting for confirmation: " + err.Error()
	default:
		return err.Error()
	}
}
