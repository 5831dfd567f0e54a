// Package tokenstore persists the manager's token outside the process so restarts can
// reuse it instead of obtaining a new one.
package tokenstore

import (
	"context"
	"time"

	"amp-session/internal/common/logging"
	"amp-session/internal/token"
)

// Persister saves and restores a single token
type Persister interface {
	// Load returns nil without error when nothing is stored
	Load(ctx context.Context) (*token.Token, error)
	Save(ctx context.Context, tok token.Token) error
	Delete(ctx context.Context) error
}

// DefaultTimeout bounds each persistence call made from manager hooks
const DefaultTimeout = 5 * time.Second

// ManagerOptions restores a usable persisted token and returns the options that keep p in
// step with the manager. Persistence failures are logged and never fail token operations.
func ManagerOptions(ctx context.Context, p Persister, logger logging.Logger, now time.Time) []token.Option {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	opts := []token.Option{
		token.WithCommitHook(func(tok token.Token) {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
			defer cancel()
			if err := p.Save(ctx, tok); err != nil {
				logger.Error("Failed to persist token", err)
			}
		}),
		token.WithClearHook(func() {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
			defer cancel()
			if err := p.Delete(ctx); err != nil {
				logger.Error("Failed to delete persisted token", err)
			}
		}),
	}

	tok, err := p.Load(ctx)
	switch {
	case err != nil:
		logger.Warn("Ignoring unreadable persisted token", logging.Err(err))
	case tok == nil:
		logger.Debug("No persisted token")
	case tok.Secret == "" || tok.IsExpired(now):
		logger.Info("Persisted token expired, ignoring", logging.Time("expires_at", tok.ExpiresAt))
	default:
		logger.Info("Restored persisted token",
			logging.Secret("token", tok.Secret),
			logging.Time("expires_at", tok.ExpiresAt),
		)
		opts = append(opts, token.WithInitialToken(*tok))
	}

	return opts
}
