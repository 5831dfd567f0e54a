package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultValidity is the lifetime assumed for tokens when the server does not say otherwise
const DefaultValidity = 24 * time.Hour

// ExpiryPolicy computes when a freshly issued secret expires
type ExpiryPolicy func(secret string, now time.Time) time.Time

// FixedValidity gives every token the same lifetime
func FixedValidity(validity time.Duration) ExpiryPolicy {
	return func(_ string, now time.Time) time.Time {
		return now.Add(validity)
	}
}

// JWTExpiry uses the exp claim when the secret is a JWT whose exp lies in the future, and
// fallback otherwise. The signature is not verified; the claim is only a scheduling hint.
func JWTExpiry(fallback ExpiryPolicy) ExpiryPolicy {
	parser := jwt.NewParser()

	return func(secret string, now time.Time) time.Time {
		claims := &jwt.RegisteredClaims{}
		if _, _, err := parser.ParseUnverified(secret, claims); err != nil {
			return fallback(secret, now)
		}
		if claims.ExpiresAt == nil || !claims.ExpiresAt.After(now) {
			return fallback(secret, now)
		}
		return claims.ExpiresAt.Time
	}
}
