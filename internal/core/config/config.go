package config

import (
	"strings"
	"time"

	"github.com/vietddude/payroll/internal/core/domain"
	redisclient "github.com/vietddude/payroll/internal/infra/redis"
	"github.com/vietddude/payroll/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Wallet   WalletConfig       `yaml:"wallet"`
	Payment  PaymentConfig      `yaml:"payment"`
	Chains   []ChainConfig      `yaml:"chains"   validate:"required,min=1,unique=ChainID,dive"`
	Tokens   []TokenConfig      `yaml:"tokens"   validate:"dive"`
	Rates    map[string]string  `yaml:"rates"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=0,max=65535"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// WalletConfig holds the signing key. Leave empty for read-only use.
type WalletConfig struct {
	PrivateKey string `yaml:"private_key" validate:"omitempty,hexadecimal"`
}

// PaymentConfig tunes payment runs and the attempt ledger.
type PaymentConfig struct {
	LockTTL time.Duration `yaml:"lock_ttl"`
	// Retention removes finished attempts older than this. 0 keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// ChainConfig holds settings for a specific blockchain.
type ChainConfig struct {
	ChainID        domain.ChainID   `yaml:"id"              validate:"required,numeric"`
	Name           domain.ChainName `yaml:"name"`
	NativeSymbol   string           `yaml:"native_symbol"   validate:"required"`
	Contracts      ContractsConfig  `yaml:"contracts"`
	ReceiptTimeout time.Duration    `yaml:"receipt_timeout"`
	PollInterval   time.Duration    `yaml:"poll_interval"`
	Providers      []ProviderConfig `yaml:"providers"       validate:"required,min=1,dive"`
}

// ContractsConfig holds the payroll contract addresses deployed on a chain.
type ContractsConfig struct {
	BulkTransfer string `yaml:"bulk_transfer" validate:"omitempty,eth_addr"`
	Stream       string `yaml:"stream"        validate:"omitempty,eth_addr"`
	Invoices     string `yaml:"invoices"      validate:"omitempty,eth_addr"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"    validate:"required"`
	URL     string        `yaml:"url"     validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TokenConfig lists an ERC-20 token selectable on a chain.
type TokenConfig struct {
	Chain    domain.ChainID `yaml:"chain"    validate:"required"`
	Symbol   string         `yaml:"symbol"   validate:"required"`
	Address  string         `yaml:"address"  validate:"required,eth_addr"`
	Decimals uint8          `yaml:"decimals" validate:"max=36"`
}

// Chain converts the config entry to the domain descriptor.
func (c ChainConfig) Chain() domain.Chain {
	return domain.Chain{
		ID:           c.ChainID,
		Name:         c.Name,
		NativeSymbol: c.NativeSymbol,
		Contracts: domain.Contracts{
			BulkTransfer: c.Contracts.BulkTransfer,
			Stream:       c.Contracts.Stream,
			Invoices:     c.Contracts.Invoices,
		},
	}
}

// FindChain looks a chain up by numeric id or internal name.
func (c *AppConfig) FindChain(ref string) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if string(ch.ChainID) == ref || strings.EqualFold(string(ch.Name), ref) {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// TokensFor returns the native coin followed by the configured tokens of a chain.
func (c *AppConfig) TokensFor(chain domain.Chain) []domain.Token {
	out := []domain.Token{domain.NativeToken(chain)}
	for _, t := range c.Tokens {
		if t.Chain != chain.ID {
			continue
		}
		out = append(out, domain.Token{
			Symbol:   t.Symbol,
			Address:  t.Address,
			Decimals: t.Decimals,
		})
	}
	return out
}

// FindToken resolves a symbol or address among the tokens of a chain.
func (c *AppConfig) FindToken(chain domain.Chain, ref string) (domain.Token, bool) {
	for _, t := range c.TokensFor(chain) {
		if strings.EqualFold(t.Symbol, ref) || domain.SameAddress(t.Address, ref) {
			return t, true
		}
	}
	return domain.Token{}, false
}
