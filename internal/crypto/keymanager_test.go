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
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestEncryptAcceptsHexPrefix(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestEncryptRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err)

	_, err = EncryptKey("not-hex", "hunter2")
	assert.Error(t, err)

	_, err = EncryptKey("deadbeef", "hunter2")
	assert.Error(t, err, "short keys are rejected")
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)
	tampered := strings.Replace(string(blob), `"version": 1`, `"version": 9`, 1)

	_, err = DecryptKey([]byte(tampered), "hunter2")
	assert.Error(t, err)
}

func TestLoadKeyRawWins(t *testing.T) {
	got, err := LoadKey(KeySource{RawKey: "0x" + testKeyHex, EncryptedPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeySource{EncryptedPath: path, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeySource{})
	assert.Error(t, err)
}
