// Package config defines the top-level configuration for the flowpay gateway
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FLOWPAY_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Payment    PaymentConfig    `toml:"payment"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost        string   `toml:"clob_host"`
	GammaHost       string   `toml:"gamma_host"`
	ChainID         int      `toml:"chain_id"`
	SignatureType   int      `toml:"signature_type"`
	ExchangeAddress string   `toml:"exchange_address"`
	RequestTimeout  duration `toml:"request_timeout"`
}

// PaymentConfig holds x402 payment gate parameters. Prices maps
// "METHOD /path" route keys to atomic-unit amounts; routes not listed are
// served for free.
type PaymentConfig struct {
	FacilitatorURL    string            `toml:"facilitator_url"`
	PayTo             string            `toml:"pay_to"`
	Network           string            `toml:"network"`
	Asset             string            `toml:"asset"`
	AssetName         string            `toml:"asset_name"`
	AssetVersion      string            `toml:"asset_version"`
	Description       string            `toml:"description"`
	MaxTimeoutSeconds int               `toml:"max_timeout_seconds"`
	ReplayTTL         duration          `toml:"replay_ttl"`
	RequestTimeout    duration          `toml:"request_timeout"`
	Prices            map[string]string `toml:"prices"`
}

// RedisConfig holds Redis connection parameters. When disabled, the gateway
// falls back to an in-process replay guard and skips rate limiting.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the settlement
// ledger. When disabled, settlements are not persisted.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:        "https://clob.polymarket.com",
			GammaHost:       "https://gamma-api.polymarket.com",
			ChainID:         137,
			SignatureType:   0,
			ExchangeAddress: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
			RequestTimeout:  duration{30 * time.Second},
		},
		Payment: PaymentConfig{
			FacilitatorURL:    "https://x402.org/facilitator",
			Network:           "base-sepolia",
			Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			AssetName:         "USDC",
			AssetVersion:      "2",
			Description:       "Polymarket trading API access",
			MaxTimeoutSeconds: 60,
			ReplayTTL:         duration{10 * time.Minute},
			RequestTimeout:    duration{30 * time.Second},
			Prices:            map[string]string{},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "flowpay",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Port:            8402,
			CORSOrigins:     []string{},
			RateLimit:       0,
			RateLimitWindow: duration{time.Minute},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — one credential source must be specified.
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (email/magic) or 2 (proxy), got %d", c.Polymarket.SignatureType))
	}
	if c.Polymarket.ExchangeAddress == "" {
		errs = append(errs, "polymarket: exchange_address must not be empty")
	}

	// Payment
	if c.Payment.FacilitatorURL == "" {
		errs = append(errs, "payment: facilitator_url must not be empty")
	}
	if c.Payment.PayTo == "" {
		errs = append(errs, "payment: pay_to must not be empty")
	}
	if c.Payment.Network == "" {
		errs = append(errs, "payment: network must not be empty")
	}
	if c.Payment.Asset == "" {
		errs = append(errs, "payment: asset must not be empty")
	}
	if c.Payment.ReplayTTL.Duration <= 0 {
		errs = append(errs, "payment: replay_ttl must be positive")
	}
	for route, amount := range c.Payment.Prices {
		if !strings.Contains(route, " ") {
			errs = append(errs, fmt.Sprintf("payment: price key %q must be \"METHOD /path\"", route))
		}
		if amount == "" {
			errs = append(errs, fmt.Sprintf("payment: price for %q must not be empty", route))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "server: rate_limit_window must be positive when rate_limit is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
