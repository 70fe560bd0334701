package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLOWPAY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLOWPAY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "FLOWPAY_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "FLOWPAY_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "FLOWPAY_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "FLOWPAY_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "FLOWPAY_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "FLOWPAY_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "FLOWPAY_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ExchangeAddress, "FLOWPAY_POLYMARKET_EXCHANGE_ADDRESS")
	setDuration(&cfg.Polymarket.RequestTimeout, "FLOWPAY_POLYMARKET_REQUEST_TIMEOUT")

	// ── Payment ──
	setStr(&cfg.Payment.FacilitatorURL, "FLOWPAY_PAYMENT_FACILITATOR_URL")
	setStr(&cfg.Payment.PayTo, "FLOWPAY_PAYMENT_PAY_TO")
	setStr(&cfg.Payment.Network, "FLOWPAY_PAYMENT_NETWORK")
	setStr(&cfg.Payment.Asset, "FLOWPAY_PAYMENT_ASSET")
	setStr(&cfg.Payment.AssetName, "FLOWPAY_PAYMENT_ASSET_NAME")
	setStr(&cfg.Payment.AssetVersion, "FLOWPAY_PAYMENT_ASSET_VERSION")
	setStr(&cfg.Payment.Description, "FLOWPAY_PAYMENT_DESCRIPTION")
	setInt(&cfg.Payment.MaxTimeoutSeconds, "FLOWPAY_PAYMENT_MAX_TIMEOUT_SECONDS")
	setDuration(&cfg.Payment.ReplayTTL, "FLOWPAY_PAYMENT_REPLAY_TTL")
	setDuration(&cfg.Payment.RequestTimeout, "FLOWPAY_PAYMENT_REQUEST_TIMEOUT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FLOWPAY_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FLOWPAY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLOWPAY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLOWPAY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLOWPAY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLOWPAY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLOWPAY_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "FLOWPAY_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "FLOWPAY_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLOWPAY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLOWPAY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLOWPAY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLOWPAY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLOWPAY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLOWPAY_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLOWPAY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLOWPAY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLOWPAY_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setInt(&cfg.Server.Port, "FLOWPAY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FLOWPAY_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "FLOWPAY_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "FLOWPAY_SERVER_RATE_LIMIT_WINDOW")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FLOWPAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
