package payment

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/payroll/internal/core/domain"
)

// RateSource supplies the USD → token-unit multiplier.
type RateSource interface {
	Rate(ctx context.Context, token domain.Token) (decimal.Decimal, error)
}

// StaticRates is a RateSource backed by configuration, keyed by token symbol.
type StaticRates map[string]decimal.Decimal

// ParseRates builds StaticRates from decimal strings.
func ParseRates(raw map[string]string) (StaticRates, error) {
	rates := make(StaticRates, len(raw))
	for symbol, v := range raw {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", symbol, err)
		}
		if !d.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", symbol)
		}
		rates[strings.ToUpper(symbol)] = d
	}
	return rates, nil
}

func (r StaticRates) Rate(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	rate, ok := r[strings.ToUpper(token.Symbol)]
	if !ok {
		return decimal.Zero, domain.NewError(
			domain.KindConfiguration,
			"exchange rate",
			fmt.Sprintf("no exchange rate configured for %s", token.Symbol),
			nil,
		)
	}
	return rate, nil
}

// ToBaseUnits converts a USD amount into integer token base units:
// truncate(amountUSD * rate * 10^decimals).
func ToBaseUnits(amountUSD string, rate decimal.Decimal, decimals uint8) (*big.Int, error) {
	usd, err := domain.ParseAmount(amountUSD)
	if err != nil {
		return nil, err
	}
	units := usd.Mul(rate).Shift(int32(decimals)).Truncate(0)
	if !units.IsPositive() {
		return nil, domain.NewError(
			domain.KindValidation,
			"convert amount",
			fmt.Sprintf("amount %s is below one base unit", amountUSD),
			nil,
		)
	}
	return units.BigInt(), nil
}

// Amounts converts every recipient and returns the per-recipient amounts and their sum.
func Amounts(
	recipients []domain.Recipient,
	rate decimal.Decimal,
	decimals uint8,
) ([]*big.Int, *big.Int, error) {
	amounts := make([]*big.Int, len(recipients))
	total := new(big.Int)
	for i, r := range recipients {
		amt, err := ToBaseUnits(r.AmountUSD, rate, decimals)
		if err != nil {
			return nil, nil, fmt.Errorf("recipient %s: %w", r.Address, err)
		}
		amounts[i] = amt
		total.Add(total, amt)
	}
	return amounts, total, nil
}

func formatUnits(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func normalize(address string) string {
	return strings.ToLower(address)
}
