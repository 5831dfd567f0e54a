package tokenstore

import (
	"time"

	"amp-session/internal/common/errors"
	"amp-session/internal/token"
)

// SecretCipher encrypts the token secret at rest. *crypto.SecretEncryptor implements it.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Option configures a FileStore or RedisStore
type Option func(*codec)

// WithCipher stores the secret encrypted. Plaintext records written before a key was
// configured are still readable and get encrypted on the next save.
func WithCipher(c SecretCipher) Option {
	return func(cd *codec) {
		cd.cipher = c
	}
}

// record is the persisted shape of a token
type record struct {
	Secret     string    `json:"token"`
	Encrypted  bool      `json:"encrypted,omitempty"`
	ObtainedAt time.Time `json:"obtained_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type codec struct {
	cipher SecretCipher
}

func newCodec(opts []Option) codec {
	var c codec
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c codec) encode(tok token.Token) (record, error) {
	rec := record{Secret: tok.Secret, ObtainedAt: tok.ObtainedAt, ExpiresAt: tok.ExpiresAt}
	if c.cipher == nil {
		return rec, nil
	}

	sealed, err := c.cipher.Encrypt(tok.Secret)
	if err != nil {
		return record{}, errors.StorageError("failed to encrypt token", err)
	}
	rec.Secret = sealed
	rec.Encrypted = true
	return rec, nil
}

func (c codec) decode(rec record) (*token.Token, error) {
	secret := rec.Secret
	if rec.Encrypted {
		if c.cipher == nil {
			return nil, errors.StorageError("persisted token is encrypted but no encryption key is configured", nil)
		}
		opened, err := c.cipher.Decrypt(rec.Secret)
		if err != nil {
			return nil, errors.StorageError("failed to decrypt persisted token", err)
		}
		secret = opened
	}
	return &token.Token{Secret: secret, ObtainedAt: rec.ObtainedAt, ExpiresAt: rec.ExpiresAt}, nil
}
