package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth() *HMACAuth {
	return &HMACAuth{
		Key:        "api-key-1",
		Secret:     base64.StdEncoding.EncodeToString([]byte("super-secret")),
		Passphrase: "pass-1",
	}
}

func TestL2HeadersAt(t *testing.T) {
	auth := testAuth()
	const address = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"

	headers := auth.L2HeadersAt(address, "GET", "/balance-allowance", "", 1700000000)

	assert.Equal(t, address, headers["POLY_ADDRESS"])
	assert.Equal(t, "api-key-1", headers["POLY_API_KEY"])
	assert.Equal(t, "1700000000", headers["POLY_TIMESTAMP"])
	assert.Equal(t, "pass-1", headers["POLY_PASSPHRASE"])
	require.NotEmpty(t, headers["POLY_SIGNATURE"])

	// Same inputs, same signature.
	again := auth.L2HeadersAt(address, "GET", "/balance-allowance", "", 1700000000)
	assert.Equal(t, headers["POLY_SIGNATURE"], again["POLY_SIGNATURE"])

	// Any input change flips the signature.
	other := auth.L2HeadersAt(address, "POST", "/balance-allowance", "", 1700000000)
	assert.NotEqual(t, headers["POLY_SIGNATURE"], other["POLY_SIGNATURE"])

	withBody := auth.L2HeadersAt(address, "GET", "/balance-allowance", `{"x":1}`, 1700000000)
	assert.NotEqual(t, headers["POLY_SIGNATURE"], withBody["POLY_SIGNATURE"])
}

func TestHMACAuthStringRedactsSecrets(t *testing.T) {
	auth := testAuth()

	s := auth.String()
	assert.NotContains(t, s, auth.Secret)
	assert.Contains(t, s, "****")
}
