// Package api serves read-only payroll views and operational endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/core/stream"
	"github.com/vietddude/payroll/internal/infra/rpc"
	"github.com/vietddude/payroll/internal/infra/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// StreamReader lists the streams paying an address.
type StreamReader interface {
	Views(ctx context.Context, address string, now time.Time) ([]stream.View, error)
}

// InvoiceReader loads a single invoice.
type InvoiceReader interface {
	Get(ctx context.Context, ref domain.InvoiceRef) (domain.Invoice, error)
}

// ChainServices are the per-chain readers exposed by the server.
type ChainServices struct {
	Chain    domain.Chain
	Streams  StreamReader
	Invoices InvoiceReader
	// Providers reports RPC provider health. Optional.
	Providers func() map[string]rpc.HealthStatus
}

// Check is a named dependency probe reported by /health.
type Check func(ctx context.Context) error

// Server provides the HTTP endpoints.
type Server struct {
	chains   map[string]ChainServices
	attempts storage.AttemptRepository
	checks   map[string]Check
	now      func() time.Time
	server   *http.Server
}

// NewServer creates a server. Register chains and checks before Start.
func NewServer(port int, attempts storage.AttemptRepository) *Server {
	mux := http.NewServeMux()
	s := &Server{
		chains:   make(map[string]ChainServices),
		attempts: attempts,
		checks:   make(map[string]Check),
		now:      time.Now,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/chains/{chain}/streams/{address}", s.handleStreams)
	mux.HandleFunc("GET /v1/chains/{chain}/invoices/{id}", s.handleInvoice)
	mux.HandleFunc("GET /v1/attempts", s.handleAttempts)
	mux.HandleFunc("GET /v1/attempts/{id}", s.handleAttempt)

	return s
}

// AddChain exposes svc under both the numeric chain id and the internal name.
func (s *Server) AddChain(svc ChainServices) {
	s.chains[string(svc.Chain.ID)] = svc
	if svc.Chain.Name != "" {
		s.chains[strings.ToLower(string(svc.Chain.Name))] = svc
	}
}

// AddCheck registers a dependency probe.
func (s *Server) AddCheck(name string, c Check) {
	s.checks[name] = c
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := make(map[string]map[string]rpc.HealthStatus)
	for key, svc := range s.chains {
		if key != string(svc.Chain.ID) || svc.Providers == nil {
			continue
		}
		report[svc.Chain.Label()] = svc.Providers()
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.chain(w, r)
	if !ok {
		return
	}
	if svc.Streams == nil {
		writeError(w, domain.NewError(domain.KindConfiguration, "", "streams unavailable on this network", nil))
		return
	}

	address := r.PathValue("address")
	if err := domain.ValidateAddress(address); err != nil {
		writeError(w, err)
		return
	}

	views, err := svc.Streams.Views(r.Context(), address, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": views})
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.chain(w, r)
	if !ok {
		return
	}
	if svc.Invoices == nil {
		writeError(w, domain.NewError(domain.KindConfiguration, "", "invoices unavailable on this network", nil))
		return
	}

	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, domain.NewError(domain.KindValidation, "", fmt.Sprintf("invalid invoice id %q", r.PathValue("id")), nil))
		return
	}

	inv, err := svc.Invoices.Get(r.Context(), domain.InvoiceRef{ChainID: svc.Chain.ID, ID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AttemptFilter{
		Phase: domain.Phase(q.Get("phase")),
		Limit: defaultListLimit,
	}
	if ref := q.Get("chain"); ref != "" {
		svc, ok := s.chains[strings.ToLower(ref)]
		if !ok {
			writeError(w, unknownChain(ref))
			return
		}
		filter.ChainID = svc.Chain.ID
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, domain.NewError(domain.KindValidation, "", fmt.Sprintf("invalid limit %q", raw), nil))
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	attempts, err := s.attempts.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, newAttemptResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
}

func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := s.attempts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttemptResponse(a))
}

func (s *Server) chain(w http.ResponseWriter, r *http.Request) (ChainServices, bool) {
	ref := r.PathValue("chain")
	svc, ok := s.chains[strings.ToLower(ref)]
	if !ok {
		writeError(w, unknownChain(ref))
	}
	return svc, ok
}

func unknownChain(ref string) error {
	return fmt.Errorf("%w: chain %s", errNotFound, ref)
}

var errNotFound = errors.New("not found")

type attemptResponse struct {
	ID             string       `json:"id"`
	ChainID        string       `json:"chain_id"`
	Account        string       `json:"account"`
	Token          domain.Token `json:"token"`
	Recipients     []string     `json:"recipients"`
	Amounts        []string     `json:"amounts"`
	Total          string       `json:"total"`
	Value          string       `json:"value"`
	ApprovalTxHash string       `json:"approval_tx_hash,omitempty"`
	TransferTxHash string       `json:"transfer_tx_hash,omitempty"`
	Phase          domain.Phase `json:"phase"`
	ErrorKind      string       `json:"error_kind,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func newAttemptResponse(a *domain.Attempt) attemptResponse {
	amounts := make([]string, len(a.Amounts))
	for i, amt := range a.Amounts {
		amounts[i] = amt.String()
	}
	return attemptResponse{
		ID:             a.ID,
		ChainID:        string(a.ChainID),
		Account:        a.Account,
		Token:          a.Token,
		Recipients:     a.Recipients,
		Amounts:        amounts,
		Total:          a.Total.String(),
		Value:          a.Value.String(),
		ApprovalTxHash: a.ApprovalTxHash,
		TransferTxHash: a.TransferTxHash,
		Phase:          a.Phase,
		ErrorKind:      string(a.ErrorKind),
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errNotFound), errors.Is(err, storage.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNetworkMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrRPC):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	body := map[string]string{"error": err.Error()}
	if kind := domain.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
