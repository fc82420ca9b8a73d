// Package stream derives display metrics from stream contract state and
// wraps the stream contract reads and writes.
//
// Functions in accounting.go are pure: no I/O, no clock reads, no mutation.
package stream

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/payroll/internal/core/domain"
)

// UnknownSymbol is returned when a token address cannot be resolved.
const UnknownSymbol = "UNKNOWN"

var (
	hundred        = big.NewInt(100)
	secondsPerHour = decimal.NewFromInt(3600)
)

// Progress returns round(clamp((claimed+claimable)/total*100, 0, 100)).
// A zero or missing total yields 0.
func Progress(s domain.Stream) int {
	if s.TotalAmount == nil || s.TotalAmount.Sign() <= 0 {
		return 0
	}

	vested := new(big.Int)
	if s.ClaimedAmount != nil {
		vested.Add(vested, s.ClaimedAmount)
	}
	if s.ClaimableAmount != nil {
		vested.Add(vested, s.ClaimableAmount)
	}
	if vested.Sign() <= 0 {
		return 0
	}
	if vested.Cmp(s.TotalAmount) >= 0 {
		return 100
	}

	// round half up: (vested*100*2 + total) / (total*2)
	num := new(big.Int).Mul(vested, hundred)
	num.Mul(num, big.NewInt(2))
	num.Add(num, s.TotalAmount)
	den := new(big.Int).Mul(s.TotalAmount, big.NewInt(2))
	return int(num.Quo(num, den).Int64())
}

// FlowRatePerHour returns total base units released per hour, or zero when the
// stream has no positive duration. Display only.
func FlowRatePerHour(s domain.Stream) decimal.Decimal {
	if s.TotalAmount == nil || s.TotalAmount.Sign() <= 0 || s.EndTime <= s.StartTime {
		return decimal.Zero
	}
	hours := decimal.NewFromInt(int64(s.EndTime - s.StartTime)).Div(secondsPerHour)
	if !hours.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(s.TotalAmount, 0).Div(hours)
}

// Status derives the lifecycle state at unix time now.
func Status(s domain.Stream, now uint64) domain.StreamStatus {
	switch {
	case !s.Active:
		return domain.StreamStatusCancelled
	case now >= s.EndTime:
		return domain.StreamStatusCompleted
	default:
		return domain.StreamStatusActive
	}
}

// TokenSymbolFor resolves a token address to a display symbol.
func TokenSymbolFor(address string, chain domain.Chain, known []domain.Token) string {
	if domain.IsNativeAddress(address) {
		if chain.NativeSymbol == "" {
			return UnknownSymbol
		}
		return chain.NativeSymbol
	}
	for _, t := range known {
		if strings.EqualFold(t.Address, address) {
			return t.Symbol
		}
	}
	return UnknownSymbol
}

// TokenFor resolves a token descriptor, ok is false when the address is unknown.
func TokenFor(address string, chain domain.Chain, known []domain.Token) (domain.Token, bool) {
	if domain.IsNativeAddress(address) {
		return domain.NativeToken(chain), true
	}
	for _, t := range known {
		if strings.EqualFold(t.Address, address) {
			return t, true
		}
	}
	return domain.Token{Symbol: UnknownSymbol, Address: address}, false
}

// FormatUnits renders a base-unit amount in whole-token units.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// View is the display projection of a stream.
type View struct {
	ID              uint64              `json:"id"`
	Sender          string              `json:"sender"`
	Recipient       string              `json:"recipient"`
	Token           string              `json:"token"`
	Symbol          string              `json:"symbol"`
	TotalAmount     string              `json:"total_amount"`
	ClaimedAmount   string              `json:"claimed_amount"`
	ClaimableAmount string              `json:"claimable_amount"`
	StartTime       uint64              `json:"start_time"`
	EndTime         uint64              `json:"end_time"`
	Status          domain.StreamStatus `json:"status"`
	ProgressPct     int                 `json:"progress_pct"`
	FlowRatePerHour string              `json:"flow_rate_per_hour"`
}

// NewView projects s for display. Amounts are rendered in token units when
// the token is known, base units otherwise.
func NewView(s domain.Stream, now uint64, chain domain.Chain, known []domain.Token) View {
	token, ok := TokenFor(s.Token, chain, known)
	var decimals uint8
	if ok {
		decimals = token.Decimals
	}

	flow := FlowRatePerHour(s)
	if ok {
		flow = flow.Shift(-int32(decimals))
	}

	return View{
		ID:              s.ID,
		Sender:          s.Sender,
		Recipient:       s.Recipient,
		Token:           s.Token,
		Symbol:          token.Symbol,
		TotalAmount:     FormatUnits(s.TotalAmount, decimals),
		ClaimedAmount:   FormatUnits(s.ClaimedAmount, decimals),
		ClaimableAmount: FormatUnits(s.ClaimableAmount, decimals),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Status:          Status(s, now),
		ProgressPct:     Progress(s),
		FlowRatePerHour: flow.StringFixed(6),
	}
}
