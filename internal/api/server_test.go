package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/stream"
	"github.com/vietddude/payroll/internal/infra/storage"
	"github.com/vietddude/payroll/internal/infra/storage/memory"
)

type fakeStreams struct {
	views []stream.View
	err   error
	got   string
}

func (f *fakeStreams) Views(ctx context.Context, address string, now time.Time) ([]stream.View, error) {
	f.got = address
	return f.views, f.err
}

type fakeInvoices struct {
	invoices map[uint64]domain.Invoice
}

func (f *fakeInvoices) Get(ctx context.Context, ref domain.InvoiceRef) (domain.Invoice, error) {
	inv, ok := f.invoices[ref.ID]
	if !ok {
		return domain.Invoice{}, domain.NewError(domain.KindRPC, "get invoice", "execution reverted", nil)
	}
	return inv, nil
}

var sepolia = domain.Chain{ID: domain.ChainIDSepolia, Name: domain.ChainNameSepolia, NativeSymbol: "ETH"}

const alice = "0x00000000000000000000000000000000000000a1"

func newTestServer(t *testing.T) (*Server, *fakeStreams, *memory.AttemptRepo) {
	t.Helper()
	repo := memory.NewAttemptRepo()
	streams := &fakeStreams{views: []stream.View{{ID: 7, Recipient: alice, ProgressPct: 40}}}
	invoices := &fakeInvoices{invoices: map[uint64]domain.Invoice{
		3: {ID: 3, ChainID: sepolia.ID, Name: "march", Amount: big.NewInt(1000)},
	}}

	s := NewServer(0, repo)
	s.AddChain(ChainServices{Chain: sepolia, Streams: streams, Invoices: invoices})
	return s, streams, repo
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: invalid json %q: %v", path, rec.Body.String(), err)
	}
	return rec, body
}

func TestStreamsEndpoint(t *testing.T) {
	s, streams, _ := newTestServer(t)

	for _, chain := range []string{"11155111", "ethereum_sepolia"} {
		rec, body := get(t, s.Handler(), "/v1/chains/"+chain+"/streams/"+alice)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body %v", chain, rec.Code, body)
		}
		list, _ := body["streams"].([]any)
		if len(list) != 1 {
			t.Errorf("%s: streams = %v", chain, body["streams"])
		}
	}
	if streams.got != alice {
		t.Errorf("address = %q", streams.got)
	}

	rec, body := get(t, s.Handler(), "/v1/chains/11155111/streams/0x1234")
	if rec.Code != http.StatusBadRequest || body["kind"] != "validation" {
		t.Errorf("bad address: status = %d, body %v", rec.Code, body)
	}

	rec, _ = get(t, s.Handler(), "/v1/chains/137/streams/"+alice)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown chain: status = %d", rec.Code)
	}

	streams.err = domain.NewError(domain.KindConfiguration, "", "contract unavailable on this network", nil)
	rec, _ = get(t, s.Handler(), "/v1/chains/11155111/streams/"+alice)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("no contract: status = %d", rec.Code)
	}
}

func TestInvoiceEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, body := get(t, s.Handler(), "/v1/chains/11155111/invoices/3")
	if rec.Code != http.StatusOK || body["name"] != "march" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}

	rec, _ = get(t, s.Handler(), "/v1/chains/11155111/invoices/abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", rec.Code)
	}

	rec, _ = get(t, s.Handler(), "/v1/chains/11155111/invoices/99")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("missing invoice: status = %d", rec.Code)
	}
}

func TestAttemptEndpoints(t *testing.T) {
	s, _, repo := newTestServer(t)
	ctx := context.Background()
	now := time.Now()

	for i, phase := range []domain.Phase{domain.PhaseCompleted, domain.PhaseFailed} {
		_ = repo.Save(ctx, &domain.Attempt{
			ID:         string(rune('a' + i)),
			ChainID:    sepolia.ID,
			Recipients: []string{alice},
			Amounts:    []*big.Int{big.NewInt(5)},
			Total:      big.NewInt(5),
			Value:      big.NewInt(5),
			Phase:      phase,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		})
	}

	rec, body := get(t, s.Handler(), "/v1/attempts?chain=ethereum_sepolia&phase=failed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list, _ := body["attempts"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["id"] != "b" {
		t.Errorf("attempts = %v", body["attempts"])
	}

	rec, body = get(t, s.Handler(), "/v1/attempts/a")
	if rec.Code != http.StatusOK || body["total"] != "5" {
		t.Errorf("status = %d, body %v", rec.Code, body)
	}

	rec, _ = get(t, s.Handler(), "/v1/attempts/zzz")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing attempt: status = %d", rec.Code)
	}

	rec, _ = get(t, s.Handler(), "/v1/attempts?limit=-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.AddCheck("database", func(ctx context.Context) error { return nil })

	rec, body := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}

	s.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	rec, body = get(t, s.Handler(), "/health")
	if rec.Code != http.StatusServiceUnavailable || body["status"] != "unhealthy" {
		t.Errorf("status = %d, body %v", rec.Code, body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrAttemptNotFound, http.StatusNotFound},
		{domain.NewError(domain.KindNetworkMismatch, "", "", nil), http.StatusConflict},
		{domain.NewError(domain.KindTimedOut, "", "", nil), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
