package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Encryptor seals marketplace credentials into an opaque token. Callers only
// ever see the token; plaintext never touches the database.
type Encryptor struct {
	aead cipher.AEAD
}

type credentialPair struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// NewEncryptor builds an AES-256-GCM encryptor from a base64-encoded 32-byte
// key.
func NewEncryptor(encodedKey string) (*Encryptor, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt seals a username/password pair into a base64 token. The nonce is
// prepended to the ciphertext.
func (e *Encryptor) Encrypt(username, password string) (string, error) {
	plaintext, err := json.Marshal(credentialPair{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt.
func (e *Encryptor) Decrypt(token string) (username, password string, err error) {
	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode token: %w", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", "", fmt.Errorf("token too short")
	}

	plaintext, err := e.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt token: %w", err)
	}

	var pair credentialPair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return pair.Username, pair.Password, nil
}
