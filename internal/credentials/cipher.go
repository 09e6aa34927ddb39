// Package credentials encrypts and decrypts arr API keys at rest.
//
// Keys are sealed with XChaCha20-Poly1305 under a key derived from the
// configured secret with Argon2id. Ciphertext is stored as
// "v1:" + base64(nonce || sealed).
package credentials

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt marks ciphertext that could not be opened: malformed encoding,
// an unknown version, or a failed authentication tag.
var ErrDecrypt = errors.New("credential decryption failed")

const (
	formatPrefix = "v1:"

	// MinSecretLength is the shortest secret NewCipher accepts.
	MinSecretLength = 32

	kdfTime    = 2
	kdfMemory  = 19 * 1024
	kdfThreads = 1
)

// kdfSalt is fixed so one secret always derives the same key across restarts.
var kdfSalt = []byte("splintarr/credentials/v1")

// Cipher seals and opens credentials with one derived key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the encryption key from secret.
func NewCipher(secret string) (*Cipher, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d characters", MinSecretLength)
	}
	key := argon2.IDKey([]byte(secret), kdfSalt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return formatPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext produced by Encrypt. Every failure wraps
// ErrDecrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(ciphertext), formatPrefix)
	if !ok {
		return "", fmt.Errorf("%w: unsupported format", ErrDecrypt)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrDecrypt, err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
