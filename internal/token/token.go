package token

import (
	"fmt"
	"sync"
	"time"

	"amp-session/internal/common/logging"
)

// DefaultRefreshWindow is how long before expiry a token is proactively renewed
const DefaultRefreshWindow = 5 * time.Minute

// Token is an opaque bearer secret with its validity interval
type Token struct {
	Secret     string    `json:"token"`
	ObtainedAt time.Time `json:"obtained_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports now >= ExpiresAt
func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresSoon reports now >= ExpiresAt - window
func (t Token) ExpiresSoon(now time.Time, window time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-window))
}

// Snapshot derives diagnostic information about t at now
func (t Token) Snapshot(now time.Time, window time.Duration) Snapshot {
	return Snapshot{
		ObtainedAt:    t.ObtainedAt,
		ExpiresAt:     t.ExpiresAt,
		Age:           now.Sub(t.ObtainedAt),
		TimeRemaining: t.ExpiresAt.Sub(now),
		IsExpired:     t.IsExpired(now),
		ExpiresSoon:   t.ExpiresSoon(now, window),
	}
}

// String masks the secret
func (t Token) String() string {
	return fmt.Sprintf("Token{Secret: %s, ObtainedAt: %s, ExpiresAt: %s}",
		logging.Mask(t.Secret), t.ObtainedAt.Format(time.RFC3339), t.ExpiresAt.Format(time.RFC3339))
}

// Snapshot is a read-only view of the cached token. TimeRemaining is negative once expired.
type Snapshot struct {
	ObtainedAt    time.Time     `json:"obtained_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Age           time.Duration `json:"age"`
	TimeRemaining time.Duration `json:"time_remaining"`
	IsExpired     bool          `json:"is_expired"`
	ExpiresSoon   bool          `json:"expires_soon"`
}

// Store is the token slot. Writes replace the whole value so readers never see a secret
// paired with another update's timestamps.
type Store struct {
	mu    sync.RWMutex
	token *Token
}

// NewStore creates an empty slot
func NewStore() *Store {
	return &Store{}
}

// Load returns a copy of the current token
func (s *Store) Load() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return Token{}, false
	}
	return *s.token, true
}

// Replace installs tok
func (s *Store) Replace(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &tok
}

// Clear empties the slot
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}
