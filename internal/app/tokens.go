package app

import (
	"context"

	"amp-session/internal/common/logging"
	"amp-session/internal/token"
	"amp-session/internal/tokenstore"
)

func (app *App) initializeTokens(ctx context.Context) {
	logger := app.Logger.WithFields(logging.String("component", "token"))

	expiry := token.FixedValidity(app.Config.TokenValidity)
	if app.Config.TokenExpiryFromJWT {
		expiry = token.JWTExpiry(expiry)
	}

	opts := []token.Option{
		token.WithExpiryPolicy(expiry),
		token.WithRefreshWindow(app.Config.TokenRefreshWindow),
		token.WithClock(app.now),
		token.WithLogger(logger),
	}
	if app.Persister != nil {
		opts = append(opts, tokenstore.ManagerOptions(ctx, app.Persister, logger, app.now())...)
	}

	app.Tokens = token.NewManager(app.Authenticator, app.credentials, opts...)
}
