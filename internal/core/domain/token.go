package domain

import "strings"

// NativeTokenAddress is the pseudo-address the payroll contracts use for the
// chain's native coin.
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

// Token describes a fungible asset.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// IsNative reports whether the token is the chain's native coin.
func (t Token) IsNative() bool {
	return IsNativeAddress(t.Address)
}

// IsNativeAddress reports whether address is the native sentinel.
func IsNativeAddress(address string) bool {
	return strings.EqualFold(address, NativeTokenAddress)
}

// NativeToken returns the native coin descriptor for a chain (18 decimals on every EVM chain).
func NativeToken(chain Chain) Token {
	return Token{
		Symbol:   chain.NativeSymbol,
		Address:  NativeTokenAddress,
		Decimals: 18,
	}
}
