package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	// Each encryption uses a fresh salt and nonce.
	blob2, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, string(blob), string(blob2))
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt")
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	require.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32-byte")

	_, err = EncryptKey("not hex", "pw")
	require.Error(t, err)
}

func TestDecryptKeyRejectsUnknownVersion(t *testing.T) {
	_, err := DecryptKey([]byte(`{"version":99}`), "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 99")
}

func TestLoadKeyRawWinsAndStripsPrefix(t *testing.T) {
	got, err := LoadKey(KeyConfig{
		RawPrivateKey:    "0x" + strings.ToUpper(testKeyHex),
		EncryptedKeyPath: "/does/not/exist",
	})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.enc")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key source")
}
