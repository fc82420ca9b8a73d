package payment

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/infra/storage"
	"github.com/vietddude/payroll/internal/infra/storage/memory"
)

const (
	transferContract = "0x00000000000000000000000000000000000000b7"
	account          = "0x00000000000000000000000000000000000000ff"
)

var (
	testChain = domain.Chain{
		ID:           domain.ChainIDEthereum,
		Name:         domain.ChainNameEthereum,
		NativeSymbol: "ETH",
		Contracts:    domain.Contracts{BulkTransfer: transferContract},
	}
	usdc = domain.Token{Symbol: "USDC", Address: "0x00000000000000000000000000000000000000c1", Decimals: 0}
)

type transferCall struct {
	contract, token string
	recipients      []string
	amounts         []*big.Int
	value           *big.Int
}

// mockGateway records the order of wallet interactions.
type mockGateway struct {
	mu sync.Mutex

	chainID        domain.ChainID
	allowance      *big.Int
	allowanceErr   error
	approveErr     error
	transferErr    error
	receiptStatus  map[string]domain.ReceiptStatus
	blockReceipts  bool
	approveEntered chan struct{}
	approveRelease chan struct{}

	events    []string
	approvals []*big.Int
	transfers []transferCall
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		chainID:       domain.ChainIDEthereum,
		allowance:     big.NewInt(0),
		receiptStatus: map[string]domain.ReceiptStatus{},
	}
}

func (m *mockGateway) record(ev string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockGateway) Account() string { return account }

func (m *mockGateway) ChainID(ctx context.Context) (domain.ChainID, error) {
	return m.chainID, nil
}

func (m *mockGateway) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	m.record("allowance")
	if owner != account || spender != transferContract {
		return nil, errors.New("unexpected owner/spender")
	}
	return m.allowance, m.allowanceErr
}

func (m *mockGateway) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	m.record("approve")
	if m.approveEntered != nil {
		close(m.approveEntered)
		<-m.approveRelease
	}
	if m.approveErr != nil {
		return "", m.approveErr
	}
	m.mu.Lock()
	m.approvals = append(m.approvals, new(big.Int).Set(amount))
	m.mu.Unlock()
	return "0xapprove", nil
}

func (m *mockGateway) BulkTransfer(
	ctx context.Context,
	contract, token string,
	recipients []string,
	amounts []*big.Int,
	value *big.Int,
) (string, error) {
	m.record("transfer")
	if m.transferErr != nil {
		return "", m.transferErr
	}
	m.mu.Lock()
	m.transfers = append(m.transfers, transferCall{contract, token, recipients, amounts, new(big.Int).Set(value)})
	m.mu.Unlock()
	return "0xtransfer", nil
}

func (m *mockGateway) WaitReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	m.record("wait:" + txHash)
	if m.blockReceipts {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	status, ok := m.receiptStatus[txHash]
	if !ok {
		status = domain.ReceiptStatusSuccess
	}
	return &domain.Receipt{TxHash: txHash, Status: status}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

type fixture struct {
	gw       *mockGateway
	notifier *recordingNotifier
	repo     *memory.AttemptRepo
	orch     *Orchestrator
	phases   []domain.Phase
}

func newFixture(t *testing.T, rates StaticRates) *fixture {
	t.Helper()
	if rates == nil {
		rates = StaticRates{"USDC": decimal.NewFromInt(1), "ETH": decimal.NewFromInt(1)}
	}
	f := &fixture{
		gw:       newMockGateway(),
		notifier: &recordingNotifier{},
		repo:     memory.NewAttemptRepo(),
	}
	f.orch = NewOrchestrator(f.gw, rates, f.repo, f.notifier, Config{ReceiptTimeout: time.Second})
	f.orch.OnPhase(func(p domain.Phase) { f.phases = append(f.phases, p) })
	return f
}

func recipients(amounts ...string) []domain.Recipient {
	addrs := []string{
		"0xAAA0000000000000000000000000000000000001",
		"0xBBB0000000000000000000000000000000000002",
		"0xCCC0000000000000000000000000000000000003",
	}
	out := make([]domain.Recipient, len(amounts))
	for i, a := range amounts {
		out[i] = domain.Recipient{Address: addrs[i], AmountUSD: a}
	}
	return out
}

func indexOf(events []string, ev string) int {
	for i, e := range events {
		if e == ev {
			return i
		}
	}
	return -1
}

func TestPay_ApprovesWhenAllowanceShort(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.allowance = big.NewInt(5)

	attempt, err := f.orch.Pay(context.Background(), Request{Recipients: recipients("4", "6"), Token: usdc, Chain: testChain})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	approve := indexOf(f.gw.events, "approve")
	approveWait := indexOf(f.gw.events, "wait:0xapprove")
	transfer := indexOf(f.gw.events, "transfer")
	if approve < 0 || approveWait < approve || transfer < approveWait {
		t.Fatalf("expected approve → wait → transfer, got %v", f.gw.events)
	}
	if f.gw.approvals[0].Cmp(big.NewInt(10)) != 0 {
		t.Errorf("approve amount = %s, want 10", f.gw.approvals[0])
	}

	wantPhases := []domain.Phase{domain.PhaseApproving, domain.PhaseSending, domain.PhaseConfirming, domain.PhaseCompleted}
	if len(f.phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", f.phases, wantPhases)
	}
	for i := range wantPhases {
		if f.phases[i] != wantPhases[i] {
			t.Errorf("phase[%d] = %s, want %s", i, f.phases[i], wantPhases[i])
		}
	}
	if attempt.ApprovalTxHash != "0xapprove" || attempt.TransferTxHash != "0xtransfer" {
		t.Errorf("attempt hashes not recorded: %+v", attempt)
	}
}

func TestPay_SkipsApprovalWhenAllowanceCovers(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.allowance = big.NewInt(10)

	if _, err := f.orch.Pay(context.Background(), Request{Recipients: recipients("4", "6"), Token: usdc, Chain: testChain}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if indexOf(f.gw.events, "approve") >= 0 {
		t.Errorf("approve must be skipped, events: %v", f.gw.events)
	}
	for _, p := range f.phases {
		if p == domain.PhaseApproving {
			t.Errorf("approving phase must be skipped")
		}
	}
	if f.gw.transfers[0].value.Sign() != 0 {
		t.Errorf("ERC-20 transfer must attach zero value, got %s", f.gw.transfers[0].value)
	}
}

func TestPay_EndToEnd(t *testing.T) {
	rates := StaticRates{"ETH": decimal.NewFromInt(2), "DAI": decimal.NewFromInt(2)}
	e18 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	want := []*big.Int{
		new(big.Int).Mul(big.NewInt(200), e18),
		new(big.Int).Mul(big.NewInt(100), e18),
	}
	wantTotal := new(big.Int).Mul(big.NewInt(300), e18)

	t.Run("native", func(t *testing.T) {
		f := newFixture(t, rates)
		native := domain.NativeToken(testChain)

		if _, err := f.orch.Pay(context.Background(), Request{Recipients: recipients("100", "50"), Token: native, Chain: testChain}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if indexOf(f.gw.events, "allowance") >= 0 {
			t.Errorf("native payments must not read allowance")
		}
		call := f.gw.transfers[0]
		if call.value.Cmp(wantTotal) != 0 {
			t.Errorf("value = %s, want %s", call.value, wantTotal)
		}
		for i := range want {
			if call.amounts[i].Cmp(want[i]) != 0 {
				t.Errorf("amounts[%d] = %s, want %s", i, call.amounts[i], want[i])
			}
		}
		if call.token != domain.NativeTokenAddress || call.contract != transferContract {
			t.Errorf("unexpected call target %+v", call)
		}
	})

	t.Run("erc20 with zero allowance", func(t *testing.T) {
		f := newFixture(t, rates)
		dai := domain.Token{Symbol: "DAI", Address: "0x00000000000000000000000000000000000000d1", Decimals: 18}

		if _, err := f.orch.Pay(context.Background(), Request{Recipients: recipients("100", "50"), Token: dai, Chain: testChain}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(f.gw.approvals) != 1 || f.gw.approvals[0].Cmp(wantTotal) != 0 {
			t.Fatalf("expected approve(spender, %s), got %v", wantTotal, f.gw.approvals)
		}
		if indexOf(f.gw.events, "wait:0xapprove") > indexOf(f.gw.events, "transfer") {
			t.Errorf("approval receipt must be awaited before transfer: %v", f.gw.events)
		}
		if f.gw.transfers[0].value.Sign() != 0 {
			t.Errorf("ERC-20 transfer must attach zero value")
		}
	})
}

func TestPay_RejectsReentry(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.approveEntered = make(chan struct{})
	f.gw.approveRelease = make(chan struct{})

	req := Request{Recipients: recipients("4", "6"), Token: usdc, Chain: testChain}
	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Pay(context.Background(), req)
		done <- err
	}()

	<-f.gw.approveEntered
	if got := f.orch.State().Phase; got != domain.PhaseApproving {
		t.Fatalf("phase = %s, want approving", got)
	}

	attempt, err := f.orch.Pay(context.Background(), req)
	if !errors.Is(err, ErrPaymentInProgress) || attempt != nil {
		t.Fatalf("second Pay = (%v, %v), want ErrPaymentInProgress", attempt, err)
	}
	if err := f.orch.Reset(); !errors.Is(err, ErrPaymentInProgress) {
		t.Errorf("Reset during a run = %v, want ErrPaymentInProgress", err)
	}

	close(f.gw.approveRelease)
	if err := <-done; err != nil {
		t.Fatalf("first Pay failed: %v", err)
	}

	if len(f.gw.transfers) != 1 {
		t.Errorf("expected exactly one transfer, got %d", len(f.gw.transfers))
	}
	if n := f.notifier.count(); n != 1 {
		t.Errorf("expected one notification, got %d", n)
	}
}

func TestPay_Failures(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(f *fixture)
		req          func() Request
		want         *domain.Error
		wantTransfer bool
	}{
		{
			name: "no recipients",
			req:  func() Request { return Request{Token: usdc, Chain: testChain} },
			want: domain.ErrValidation,
		},
		{
			name: "invalid address",
			req: func() Request {
				return Request{Recipients: []domain.Recipient{{Address: "0x12", AmountUSD: "1"}}, Token: usdc, Chain: testChain}
			},
			want: domain.ErrValidation,
		},
		{
			name: "duplicate recipient",
			req: func() Request {
				r := recipients("1", "2")
				r[1].Address = "0xaaa0000000000000000000000000000000000001"
				return Request{Recipients: r, Token: usdc, Chain: testChain}
			},
			want: domain.ErrValidation,
		},
		{
			name: "contract missing",
			req: func() Request {
				c := testChain
				c.Contracts.BulkTransfer = ""
				return Request{Recipients: recipients("1"), Token: usdc, Chain: c}
			},
			want: domain.ErrConfiguration,
		},
		{
			name:  "wrong network",
			setup: func(f *fixture) { f.gw.chainID = domain.ChainIDPolygon },
			req:   func() Request { return Request{Recipients: recipients("1"), Token: usdc, Chain: testChain} },
			want:  domain.ErrNetworkMismatch,
		},
		{
			name: "missing rate",
			req: func() Request {
				return Request{Recipients: recipients("1"), Token: domain.Token{Symbol: "XYZ", Address: usdc.Address}, Chain: testChain}
			},
			want: domain.ErrConfiguration,
		},
		{
			name:  "allowance read fails",
			setup: func(f *fixture) { f.gw.allowanceErr = errors.New("connection refused") },
			req:   func() Request { return Request{Recipients: recipients("1"), Token: usdc, Chain: testChain} },
			want:  domain.ErrRPC,
		},
		{
			name:  "approval rejected",
			setup: func(f *fixture) { f.gw.approveErr = errors.New("user rejected the request") },
			req:   func() Request { return Request{Recipients: recipients("1"), Token: usdc, Chain: testChain} },
			want:  domain.ErrApprovalFailed,
		},
		{
			name:  "approval reverted",
			setup: func(f *fixture) { f.gw.receiptStatus["0xapprove"] = domain.ReceiptStatusFailed },
			req:   func() Request { return Request{Recipients: recipients("1"), Token: usdc, Chain: testChain} },
			want:  domain.ErrReceiptFailed,
		},
		{
			name:  "transfer rejected",
			setup: func(f *fixture) {
				f.gw.allowance = big.NewInt(100)
				f.gw.transferErr = errors.New("user denied transaction signature")
			},
			req:   func() Request { return Request{Recipients: recipients("1"), Token: usdc, Chain: testChain} },
			want:  domain.ErrTransferRejected,
		},
		{
			name:         "transfer reverted",
			setup: func(f *fixture) {
				f.gw.allowance = big.NewInt(100)
				f.gw.receiptStatus["0xtransfer"] = domain.ReceiptStatusFailed
			},
			req:          func() Request { return Request{Recipients: recipients("1"), Token: usdc, Chain: testChain} },
			want:         domain.ErrReceiptFailed,
			wantTransfer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.orch.Pay(context.Background(), tt.req())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want kind %s", err, tt.want.Kind)
			}
			if got := len(f.gw.transfers) > 0; got != tt.wantTransfer {
				t.Errorf("transfer submitted = %v, want %v (events %v)", got, tt.wantTransfer, f.gw.events)
			}
			if n := f.notifier.count(); n != 1 {
				t.Errorf("expected exactly one notification, got %d", n)
			}
			if note := f.notifier.notes[0]; note.Level != domain.NotificationError || note.Kind != tt.want.Kind {
				t.Errorf("notification = %+v", note)
			}
			if st := f.orch.State(); st.Phase != domain.PhaseFailed || st.Err == nil {
				t.Errorf("state = %+v, want failed", st)
			}
		})
	}
}

func TestPay_TimesOutWaitingForReceipt(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.allowance = big.NewInt(100)
	f.gw.blockReceipts = true
	f.orch.cfg.ReceiptTimeout = 20 * time.Millisecond

	attempt, err := f.orch.Pay(context.Background(), Request{Recipients: recipients("1"), Token: usdc, Chain: testChain})
	if !errors.Is(err, domain.ErrTimedOut) {
		t.Fatalf("expected TimedOut, got %v", err)
	}
	if attempt == nil || attempt.TransferTxHash != "0xtransfer" || attempt.Phase != domain.PhaseFailed {
		t.Errorf("attempt = %+v", attempt)
	}
}

func TestPay_TerminalUntilReset(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.allowance = big.NewInt(100)
	req := Request{Recipients: recipients("1"), Token: usdc, Chain: testChain}

	attempt, err := f.orch.Pay(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := f.orch.State()
	if st.Phase != domain.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", st.Phase)
	}
	if st.TransferTxHash != "" || st.ApprovalTxHash != "" {
		t.Errorf("hashes must be cleared after completion: %+v", st)
	}

	stored, err := f.repo.Get(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("ledger lookup: %v", err)
	}
	if stored.Phase != domain.PhaseCompleted || stored.TransferTxHash != "0xtransfer" {
		t.Errorf("ledger record = %+v", stored)
	}

	if _, err := f.orch.Pay(context.Background(), req); !errors.Is(err, ErrResetRequired) {
		t.Fatalf("Pay after completion = %v, want ErrResetRequired", err)
	}
	if err := f.orch.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := f.orch.Pay(context.Background(), req); err != nil {
		t.Fatalf("Pay after reset: %v", err)
	}

	list, _ := f.repo.List(context.Background(), storage.AttemptFilter{})
	if len(list) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(list))
	}
}

type denyingLocker struct{ calls int }

func (l *denyingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.calls++
	return nil, false, nil
}

func TestPay_DistributedLockHeld(t *testing.T) {
	f := newFixture(t, nil)
	locker := &denyingLocker{}
	f.orch.SetLocker(locker)

	_, err := f.orch.Pay(context.Background(), Request{Recipients: recipients("1"), Token: usdc, Chain: testChain})
	if !errors.Is(err, ErrPaymentInProgress) {
		t.Fatalf("expected ErrPaymentInProgress, got %v", err)
	}
	if locker.calls != 1 {
		t.Errorf("locker calls = %d", locker.calls)
	}
	if len(f.gw.events) != 0 {
		t.Errorf("no wallet interaction expected, got %v", f.gw.events)
	}
	if f.notifier.count() != 0 {
		t.Errorf("a rejected duplicate run must not notify")
	}
	if f.orch.State().Phase != domain.PhaseIdle {
		t.Errorf("state must remain idle")
	}
}
