package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/payroll/internal/core/domain"
)

const (
	defaultPort            = 8080
	defaultReceiptTimeout  = 3 * time.Minute
	defaultPollInterval    = 2 * time.Second
	defaultProviderTimeout = 15 * time.Second
)

var validate = validator.New()

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding environment variables, fills defaults and validates.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if c.Name == "" {
			c.Name = domain.ChainIDToName[c.ChainID]
		}
		if c.ReceiptTimeout == 0 {
			c.ReceiptTimeout = defaultReceiptTimeout
		}
		if c.PollInterval == 0 {
			c.PollInterval = defaultPollInterval
		}
		for j := range c.Providers {
			if c.Providers[j].Timeout == 0 {
				c.Providers[j].Timeout = defaultProviderTimeout
			}
		}
	}
}

// Validate checks struct tags, then cross-field rules the tags cannot express.
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return domain.NewError(domain.KindConfiguration, "load config", strings.Join(msgs, "; "), nil)
		}
		return domain.NewError(domain.KindConfiguration, "load config", "", err)
	}

	for _, t := range cfg.Tokens {
		if _, ok := cfg.FindChain(string(t.Chain)); !ok {
			return domain.NewError(
				domain.KindConfiguration,
				"load config",
				fmt.Sprintf("token %s references unknown chain %s", t.Symbol, t.Chain),
				nil,
			)
		}
	}
	for symbol, rate := range cfg.Rates {
		if _, err := domain.ParseAmount(rate); err != nil {
			return domain.NewError(
				domain.KindConfiguration,
				"load config",
				fmt.Sprintf("rate for %s: %q is not a decimal", symbol, rate),
				nil,
			)
		}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "eth_addr":
		return fmt.Sprintf("%s must be a 0x-prefixed 20-byte address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must not repeat %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
