// Package crypto encrypts token secrets before they leave the process.
//
// SecretEncryptor uses AES-256-GCM, so a ciphertext is both confidential and tamper
// evident. Every call to Encrypt draws a fresh random nonce, which means encrypting the
// same secret twice yields different ciphertexts.
//
// Example usage:
//
//	encryptor, err := crypto.NewSecretEncryptor(os.Getenv("AMP_TOKEN_ENCRYPTION_KEY"))
//	if err != nil {
//		return err
//	}
//
//	sealed, err := encryptor.Encrypt(secret)
//	...
//	secret, err = encryptor.Decrypt(sealed)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"amp-session/internal/common/errors"
)

const (
	keySalt       = "amp-session-token-salt"
	keyIterations = 10000
	keyLength     = 32
)

// SecretEncryptor encrypts and decrypts strings with a key derived from a passphrase.
// It is safe for concurrent use.
type SecretEncryptor struct {
	aead cipher.AEAD
}

// NewSecretEncryptor derives a 32-byte AES key from passphrase with PBKDF2. The salt is
// fixed, so the same passphrase always opens what it sealed, across processes too.
func NewSecretEncryptor(passphrase string) (*SecretEncryptor, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), []byte(keySalt), keyIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &SecretEncryptor{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext). Empty input stays empty.
func (e *SecretEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key or a modified ciphertext fails authentication.
func (e *SecretEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.ValidationError("ciphertext is not valid base64")
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}
	return string(plaintext), nil
}
