package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	aead, err := NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	sealed, err := Encrypt(aead, []byte("sk-user-key"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "sk-user-key")

	plain, err := Decrypt(aead, sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-user-key", string(plain))
}

func TestDecryptRejectsTamperedSeal(t *testing.T) {
	aead, err := NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	sealed, err := Encrypt(aead, []byte("sk-user-key"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = Decrypt(aead, sealed)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	aead, err := NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	_, err = Decrypt(aead, []byte("tiny"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewAESGCMRejectsBadKeySize(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
