package app

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"amp-session/internal/api"
	"amp-session/internal/circuitbreaker"
	"amp-session/internal/common/logging"
	"amp-session/internal/config"
	"amp-session/internal/credentials"
	"amp-session/internal/redis"
	"amp-session/internal/retry"
	"amp-session/internal/token"
	"amp-session/internal/tokenstore"
)

// App holds the wired session layer
type App struct {
	Config        *config.Config
	Executor      *retry.Executor
	Authenticator *token.HTTPAuthenticator
	Tokens        *token.Manager
	API           *api.Client
	Persister     tokenstore.Persister
	Breaker       *circuitbreaker.GoBreakerAdapter
	RedisClient   *redis.Client
	Logger        logging.Logger

	credentials credentials.Source
	limiter     *rate.Limiter
	now         func() time.Time
}

// Option adjusts how New wires the application
type Option func(*App)

// WithCredentials replaces the environment credential source
func WithCredentials(source credentials.Source) Option {
	return func(app *App) {
		app.credentials = source
	}
}

// WithLogger sets the logger used by every component
func WithLogger(logger logging.Logger) Option {
	return func(app *App) {
		app.Logger = logger
	}
}

// withClock replaces time.Now for the token manager
func withClock(now func() time.Time) Option {
	return func(app *App) {
		app.now = now
	}
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{
		Config:      cfg,
		credentials: credentials.NewEnvSource(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.Logger == nil {
		app.Logger = logging.GetGlobalLogger()
	}

	retryConfig, err := cfg.RetryConfig()
	if err != nil {
		return nil, err
	}

	if err := app.initializeExecutor(); err != nil {
		return nil, err
	}

	app.Authenticator, err = token.NewHTTPAuthenticator(cfg.APIBaseURL, app.Executor, retryConfig)
	if err != nil {
		return nil, err
	}

	if err := app.initializePersistence(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeTokens(ctx)

	app.API, err = api.NewClient(cfg.APIBaseURL, app.Tokens, app.Executor, retryConfig,
		app.Logger.WithFields(logging.String("component", "api")))
	if err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

// Cleanup releases external connections
func (app *App) Cleanup() {
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Failed to close Redis client", logging.Err(err))
		}
		app.RedisClient = nil
	}
}
