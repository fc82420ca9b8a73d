package payment

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vietddude/payroll/internal/core/domain"
)

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		usd      string
		rate     string
		decimals uint8
		want     *big.Int
	}{
		{"100", "2", 18, new(big.Int).Mul(big.NewInt(200), exp10(18))},
		{"1.5", "1", 6, big.NewInt(1_500_000)},
		{"0.1", "0.0003", 18, new(big.Int).Mul(big.NewInt(3), exp10(13))},
		{"1", "0.3333333", 6, big.NewInt(333_333)},
		{"19.99", "1", 0, big.NewInt(19)},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.usd, decimal.RequireFromString(tt.rate), tt.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%s, %s): %v", tt.usd, tt.rate, err)
		}
		if got.Cmp(tt.want) != 0 {
			t.Errorf("ToBaseUnits(%s, %s, %d) = %s, want %s", tt.usd, tt.rate, tt.decimals, got, tt.want)
		}
	}
}

func TestToBaseUnits_RejectsDust(t *testing.T) {
	_, err := ToBaseUnits("0.1", decimal.NewFromInt(1), 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for sub-unit amount, got %v", err)
	}
}

func TestAmounts_ExactTotal(t *testing.T) {
	recipients := []domain.Recipient{
		{Address: "0xAAA0000000000000000000000000000000000001", AmountUSD: "100"},
		{Address: "0xBBB0000000000000000000000000000000000002", AmountUSD: "50"},
	}

	amounts, total, err := Amounts(recipients, decimal.NewFromInt(2), 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []*big.Int{
		new(big.Int).Mul(big.NewInt(200), exp10(18)),
		new(big.Int).Mul(big.NewInt(100), exp10(18)),
	}
	for i := range want {
		if amounts[i].Cmp(want[i]) != 0 {
			t.Errorf("amounts[%d] = %s, want %s", i, amounts[i], want[i])
		}
	}
	if wantTotal := new(big.Int).Mul(big.NewInt(300), exp10(18)); total.Cmp(wantTotal) != 0 {
		t.Errorf("total = %s, want %s", total, wantTotal)
	}
}

func TestStaticRates(t *testing.T) {
	rates, err := ParseRates(map[string]string{"eth": "0.0004", "USDC": "1"})
	if err != nil {
		t.Fatalf("ParseRates: %v", err)
	}

	r, err := rates.Rate(context.Background(), domain.Token{Symbol: "ETH"})
	if err != nil || !r.Equal(decimal.RequireFromString("0.0004")) {
		t.Errorf("ETH rate = %s, %v", r, err)
	}

	_, err = rates.Rate(context.Background(), domain.Token{Symbol: "DAI"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("missing rate should be a configuration error, got %v", err)
	}

	if _, err := ParseRates(map[string]string{"ETH": "-1"}); err == nil {
		t.Errorf("negative rate must be rejected")
	}
}
