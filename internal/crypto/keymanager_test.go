package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	plain, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, plain)
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKey, "")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "hunter2")
	assert.Error(t, err, "short keys must be rejected")

	_, err = EncryptKey("zz-not-hex", "hunter2")
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	t.Run("raw key wins and is normalized", func(t *testing.T) {
		k, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
		require.NoError(t, err)
		assert.Equal(t, testKey, k)
	})

	t.Run("raw key must be hex", func(t *testing.T) {
		_, err := LoadKey(KeyConfig{RawPrivateKey: "not hex"})
		assert.Error(t, err)
	})

	t.Run("encrypted file fallback", func(t *testing.T) {
		blob, err := EncryptKey(testKey, "hunter2")
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		k, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
		require.NoError(t, err)
		assert.Equal(t, testKey, k)
	})

	t.Run("no source configured", func(t *testing.T) {
		_, err := LoadKey(KeyConfig{})
		assert.Error(t, err)
	})
}
