package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	ciphertext, err := Encrypt(key, "imap-app-password")
	require.NoError(t, err)
	assert.NotEqual(t, "imap-app-password", ciphertext)

	plaintext, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "imap-app-password", plaintext)
}

func TestEncryptEmptyPassthrough(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	ciphertext, err := Encrypt(key, "")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	plaintext, err := Decrypt(key, "")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestDecryptRejectsBadInput(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	_, err := Decrypt(key, "not-base64!!!")
	assert.Error(t, err)

	_, err = Decrypt(key, "YWJj") // decodes to 3 bytes, shorter than the IV
	assert.Error(t, err)
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := Encrypt([]byte("short"), "secret")
	assert.Error(t, err)
}
