package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[polymarket]
chain_id = 80002

[payment]
pay_to = "0x1111111111111111111111111111111111111111"
replay_ttl = "5m"

[payment.prices]
"GET /markets" = "1000"

[server]
port = 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 80002, cfg.Polymarket.ChainID)
	// Untouched fields keep their defaults.
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Payment.ReplayTTL.Duration)
	assert.Equal(t, "1000", cfg.Payment.Prices["GET /markets"])
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
[polymarket]
chain_id = 137

[payment]
pay_to = "0x1111111111111111111111111111111111111111"
`)

	t.Setenv("FLOWPAY_POLYMARKET_CHAIN_ID", "80002")
	t.Setenv("FLOWPAY_WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("FLOWPAY_PAYMENT_PAY_TO", "0x2222222222222222222222222222222222222222")
	t.Setenv("FLOWPAY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FLOWPAY_PAYMENT_REPLAY_TTL", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 80002, cfg.Polymarket.ChainID)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Payment.PayTo)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Payment.ReplayTTL.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Defaults()
		cfg.Wallet.PrivateKey = "deadbeef"
		cfg.Payment.PayTo = "0x1111111111111111111111111111111111111111"
		return cfg
	}

	t.Run("defaults plus credentials pass", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := base()
		cfg.LogLevel = "verbose"
		cfg.Wallet.PrivateKey = ""
		cfg.Server.Port = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_level")
		assert.Contains(t, err.Error(), "wallet")
		assert.Contains(t, err.Error(), "port")
	})

	t.Run("price keys must carry a method", func(t *testing.T) {
		cfg := base()
		cfg.Payment.Prices = map[string]string{"/markets": "1000"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "METHOD /path")
	})

	t.Run("encrypted key path requires password", func(t *testing.T) {
		cfg := base()
		cfg.Wallet.PrivateKey = ""
		cfg.Wallet.EncryptedKeyPath = "/etc/flowpay/key.json"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key_password")
	})
}
