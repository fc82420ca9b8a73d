package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Recipient is one payee in a batch operation.
type Recipient struct {
	Address   string `json:"address"`
	AmountUSD string `json:"amount_usd"`
}

// ValidateAddress checks the 0x-prefixed, 42 character hex form.
func ValidateAddress(address string) error {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return NewError(KindValidation, "validate address", fmt.Sprintf("invalid wallet address %q", address), nil)
	}
	return nil
}

// ParseAmount parses a positive decimal amount.
func ParseAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, NewError(KindValidation, "validate amount", fmt.Sprintf("invalid amount %q", amount), err)
	}
	if !d.IsPositive() {
		return decimal.Zero, NewError(KindValidation, "validate amount", fmt.Sprintf("amount must be positive, got %s", amount), nil)
	}
	return d, nil
}

// Validate checks address format and amount.
func (r Recipient) Validate() error {
	if err := ValidateAddress(r.Address); err != nil {
		return err
	}
	_, err := ParseAmount(r.AmountUSD)
	return err
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
