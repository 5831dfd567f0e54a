package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedJWT(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestFixedValidity(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(24*time.Hour), FixedValidity(DefaultValidity)("anything", now))
	assert.Equal(t, now.Add(time.Minute), FixedValidity(time.Minute)("anything", now))
}

func TestJWTExpiry(t *testing.T) {
	now := time.Now()
	policy := JWTExpiry(FixedValidity(time.Hour))

	t.Run("uses exp claim", func(t *testing.T) {
		exp := now.Add(2 * time.Hour)
		secret := signedJWT(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

		assert.Equal(t, exp.Unix(), policy(secret, now).Unix())
	})

	t.Run("opaque token falls back", func(t *testing.T) {
		assert.Equal(t, now.Add(time.Hour), policy("f00dfacecafe", now))
	})

	t.Run("jwt without exp falls back", func(t *testing.T) {
		secret := signedJWT(t, jwt.RegisteredClaims{Subject: "issuer"})
		assert.Equal(t, now.Add(time.Hour), policy(secret, now))
	})

	t.Run("exp in the past falls back", func(t *testing.T) {
		secret := signedJWT(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
		assert.Equal(t, now.Add(time.Hour), policy(secret, now))
	})
}
