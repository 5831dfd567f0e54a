package app

import (
	"golang.org/x/time/rate"

	"amp-session/internal/circuitbreaker"
	"amp-session/internal/common/logging"
	"amp-session/internal/retry"
)

func (app *App) initializeExecutor() error {
	logger := app.Logger.WithFields(logging.String("component", "executor"))
	opts := []retry.ExecutorOption{retry.WithLogger(logger)}

	if app.Config.CircuitBreaker {
		cb, err := circuitbreaker.NewGoBreaker("amp-api", circuitbreaker.DefaultConfig(), logger)
		if err != nil {
			return err
		}
		app.Breaker = cb
		opts = append(opts, retry.WithCircuitBreaker(cb))
		app.Logger.Info("Circuit breaker: Enabled", logging.String("name", cb.Name()))
	}

	if rps := app.Config.RateLimitRPS; rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		app.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		opts = append(opts, retry.WithRateLimiter(app.limiter))
		app.Logger.Info("Rate limiting: Enabled",
			logging.Field{Key: "requests_per_second", Value: rps},
			logging.Int("burst", burst),
		)
	}

	app.Executor = retry.NewExecutor(opts...)
	return nil
}
