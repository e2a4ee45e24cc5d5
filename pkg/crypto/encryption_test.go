package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid 32 byte key", key: strings.Repeat("k", 32), wantErr: false},
		{name: "too short", key: "short", wantErr: true},
		{name: "too long", key: strings.Repeat("k", 33), wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, enc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, enc)
			}
		})
	}
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(strings.Repeat("k", 32))
	require.NoError(t, err)

	plaintext := "+14155550123"

	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), plaintext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptor_NoncesDiffer(t *testing.T) {
	enc, err := NewEncryptor(strings.Repeat("k", 32))
	require.NoError(t, err)

	// Same plaintext must not produce the same ciphertext twice
	first, err := enc.Encrypt("+14155550123")
	require.NoError(t, err)
	second, err := enc.Encrypt("+14155550123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptor_StoredLayout(t *testing.T) {
	enc, err := NewEncryptor(strings.Repeat("k", 32))
	require.NoError(t, err)

	plaintext := "+14155550123"
	stored, err := enc.Encrypt(plaintext)
	require.NoError(t, err)

	// nonce (12) || ciphertext || tag (16); the column stores exactly
	// this, nothing else.
	assert.Len(t, stored, 12+len(plaintext)+16)
}

func TestEncryptor_WrongKey(t *testing.T) {
	enc1, err := NewEncryptor(strings.Repeat("a", 32))
	require.NoError(t, err)
	enc2, err := NewEncryptor(strings.Repeat("b", 32))
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestEncryptor_ShortCiphertext(t *testing.T) {
	enc, err := NewEncryptor(strings.Repeat("k", 32))
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte("tiny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}
