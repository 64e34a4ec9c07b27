package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantErr   bool
		errString string
	}{
		{
			name:    "valid 32-byte key",
			key:     testKey(),
			wantErr: false,
		},
		{
			name:      "not base64",
			key:       "not-base64!!!",
			wantErr:   true,
			errString: "failed to decode encryption key",
		},
		{
			name:      "wrong length",
			key:       base64.StdEncoding.EncodeToString([]byte("short")),
			wantErr:   true,
			errString: "must be 32 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, enc)
			} else {
				require.NoError(t, err)
				require.NotNil(t, enc)
			}
		})
	}
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	token, err := enc.Encrypt("reseller42", "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, token, "reseller42")
	assert.NotContains(t, token, "hunter2")

	user, pass, err := enc.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "reseller42", user)
	assert.Equal(t, "hunter2", pass)
}

func TestEncryptor_TokensAreUnique(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	first, err := enc.Encrypt("u", "p")
	require.NoError(t, err)
	second, err := enc.Encrypt("u", "p")
	require.NoError(t, err)

	// Random nonce per call; identical plaintext never repeats on the wire.
	assert.NotEqual(t, first, second)
}

func TestEncryptor_DecryptRejectsGarbage(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	_, _, err = enc.Decrypt("@@@")
	require.Error(t, err)

	_, _, err = enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("tampered-token-bytes")))
	require.Error(t, err)
}
