package token

import (
	"context"
	"time"

	"amp-session/internal/common/logging"
	"amp-session/internal/credentials"
)

// Clock returns the current time
type Clock func() time.Time

// Manager caches one token and renews it before it expires. It is safe for concurrent use.
//
// Reads of a comfortably valid token take only the store's read lock. Everything that may
// hit the network runs behind a single-flight gate, so N concurrent callers racing on an
// expiring token cause one upstream call and all receive its result.
type Manager struct {
	auth   Authenticator
	creds  credentials.Source
	store  *Store
	gate   gate
	window time.Duration
	expiry ExpiryPolicy
	now    Clock
	logger logging.Logger

	onCommit func(Token)
	onClear  func()
}

// Option configures a Manager
type Option func(*Manager)

// WithRefreshWindow sets how long before expiry the token is renewed
func WithRefreshWindow(window time.Duration) Option {
	return func(m *Manager) {
		m.window = window
	}
}

// WithExpiryPolicy sets how the expiry of new tokens is computed
func WithExpiryPolicy(policy ExpiryPolicy) Option {
	return func(m *Manager) {
		m.expiry = policy
	}
}

// WithValidity is shorthand for WithExpiryPolicy(FixedValidity(validity))
func WithValidity(validity time.Duration) Option {
	return WithExpiryPolicy(FixedValidity(validity))
}

// WithClock replaces time.Now
func WithClock(now Clock) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithCommitHook is called with every token the manager installs, after the slot is updated
// and while the single-flight gate is still held.
func WithCommitHook(hook func(Token)) Option {
	return func(m *Manager) {
		m.onCommit = hook
	}
}

// WithClearHook is called after ClearToken empties the slot
func WithClearHook(hook func()) Option {
	return func(m *Manager) {
		m.onClear = hook
	}
}

// WithInitialToken seeds the slot, typically from a persisted copy
func WithInitialToken(tok Token) Option {
	return func(m *Manager) {
		m.store.Replace(tok)
	}
}

// NewManager creates a Manager with an empty slot unless WithInitialToken is given
func NewManager(auth Authenticator, creds credentials.Source, opts ...Option) *Manager {
	m := &Manager{
		auth:   auth,
		creds:  creds,
		store:  NewStore(),
		gate:   newGate(),
		window: DefaultRefreshWindow,
		expiry: FixedValidity(DefaultValidity),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.GetGlobalLogger()
	}
	return m
}

// GetToken returns a token that is not expiring soon, obtaining or refreshing one if needed.
// Errors are the terminal errors of the obtain path: missing_credential, rate_limit,
// timeout or obtain_failed. A failed refresh is never returned; it falls back to obtain.
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	if tok, ok := m.store.Load(); ok && !tok.ExpiresSoon(m.now(), m.windowFor(tok)) {
		return tok.Secret, nil
	}

	if err := m.gate.acquire(ctx); err != nil {
		return "", err
	}
	defer m.gate.release()

	// another caller may have renewed the token while we waited
	tok, ok := m.store.Load()
	now := m.now()
	if ok && !tok.ExpiresSoon(now, m.windowFor(tok)) {
		return tok.Secret, nil
	}

	if ok && !tok.IsExpired(now) {
		return m.refreshOrObtain(ctx, tok)
	}
	return m.obtain(ctx)
}

// ForceRefresh renews the token even if it is still valid. Use it when the upstream has
// rejected a token that has not expired locally.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	if err := m.gate.acquire(ctx); err != nil {
		return "", err
	}
	defer m.gate.release()

	tok, ok := m.store.Load()
	if ok && !tok.IsExpired(m.now()) {
		return m.refreshOrObtain(ctx, tok)
	}
	return m.obtain(ctx)
}

// Obtain discards any cached token in favour of a freshly obtained one
func (m *Manager) Obtain(ctx context.Context) (string, error) {
	if err := m.gate.acquire(ctx); err != nil {
		return "", err
	}
	defer m.gate.release()

	return m.obtain(ctx)
}

// ClearToken empties the slot without waiting for an in-flight renewal
func (m *Manager) ClearToken() {
	m.store.Clear()
	m.logger.Info("Token cleared")

	if m.onClear != nil {
		m.onClear()
	}
}

// Snapshot describes the cached token. It never touches the network.
func (m *Manager) Snapshot() (Snapshot, bool) {
	tok, ok := m.store.Load()
	if !ok {
		return Snapshot{}, false
	}
	return tok.Snapshot(m.now(), m.windowFor(tok)), true
}

// AuthorizationHeader returns the header value for business requests
func (m *Manager) AuthorizationHeader(ctx context.Context) (string, error) {
	secret, err := m.GetToken(ctx)
	if err != nil {
		return "", err
	}
	return "token " + secret, nil
}

// RefreshWindow returns the configured proactive renewal window
func (m *Manager) RefreshWindow() time.Duration {
	return m.window
}

// windowFor is the refresh window applied to tok. A token whose whole lifetime is shorter
// than twice the window is renewed halfway through instead, otherwise it would be born
// expiring and every call would renew it.
func (m *Manager) windowFor(tok Token) time.Duration {
	lifetime := tok.ExpiresAt.Sub(tok.ObtainedAt)
	if lifetime > 0 && lifetime/2 < m.window {
		return lifetime / 2
	}
	return m.window
}

func (m *Manager) refreshOrObtain(ctx context.Context, current Token) (string, error) {
	if secret, ok := m.attemptRefresh(ctx, current); ok {
		return secret, nil
	}
	return m.obtain(ctx)
}

// attemptRefresh reports false when the caller should fall back to obtain
func (m *Manager) attemptRefresh(ctx context.Context, current Token) (string, bool) {
	m.logger.Debug("Refreshing token",
		logging.Secret("token", current.Secret),
		logging.Time("expires_at", current.ExpiresAt),
	)

	secret, err := m.auth.Refresh(ctx, current.Secret)
	if err != nil {
		m.logger.Warn("Token refresh failed, falling back to obtain",
			logging.Err(err),
			logging.Secret("token", current.Secret),
		)
		return "", false
	}

	m.commit(secret, "refreshed")
	return secret, true
}

func (m *Manager) obtain(ctx context.Context) (string, error) {
	creds, err := m.creds.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if err := creds.Validate(); err != nil {
		return "", err
	}

	secret, err := m.auth.Obtain(ctx, creds)
	if err != nil {
		m.logger.Error("Failed to obtain token", err,
			logging.String("username", creds.Username),
		)
		return "", err
	}

	m.commit(secret, "obtained")
	return secret, nil
}

func (m *Manager) commit(secret, how string) {
	now := m.now()
	tok := Token{
		Secret:     secret,
		ObtainedAt: now,
		ExpiresAt:  m.expiry(secret, now),
	}
	m.store.Replace(tok)

	m.logger.Info("Token "+how,
		logging.Secret("token", secret),
		logging.Time("expires_at", tok.ExpiresAt),
	)
	if window := m.windowFor(tok); window < m.window {
		m.logger.Warn("Token lifetime is shorter than twice the refresh window",
			logging.Duration("lifetime", tok.ExpiresAt.Sub(now)),
			logging.Duration("effective_window", window),
		)
	}

	if m.onCommit != nil {
		m.onCommit(tok)
	}
}
