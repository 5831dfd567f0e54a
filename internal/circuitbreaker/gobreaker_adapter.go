// Package circuitbreaker guards upstream calls with Sony's gobreaker
package circuitbreaker

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"amp-session/internal/common/errors"
	"amp-session/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before transitioning to half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the number of probes allowed while half-open
	MaxConcurrentRequests int
	// Interval is the rolling window after which closed-state counts are cleared
	Interval time.Duration
}

// DefaultConfig returns the configuration used for the AMP upstream
func DefaultConfig() Config {
	return UpstreamConfig
}

// UpstreamConfig is for token and API calls against a single upstream host
var UpstreamConfig = Config{
	MaxFailures:           5,
	Timeout:               60 * time.Second,
	MaxConcurrentRequests: 1,
	Interval:              time.Minute,
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return errors.ConfigError(fmt.Sprintf("circuit breaker max failures must be positive, got %d", c.MaxFailures))
	}
	if c.Timeout <= 0 {
		return errors.ConfigError(fmt.Sprintf("circuit breaker timeout must be positive, got %v", c.Timeout))
	}
	if c.MaxConcurrentRequests <= 0 {
		return errors.ConfigError(fmt.Sprintf("circuit breaker max concurrent requests must be positive, got %d", c.MaxConcurrentRequests))
	}
	if c.Interval < 0 {
		return errors.ConfigError(fmt.Sprintf("circuit breaker interval must not be negative, got %v", c.Interval))
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	// StateClosed lets requests through
	StateClosed State = iota
	// StateOpen rejects requests without calling the upstream
	StateOpen
	// StateHalfOpen lets a limited number of probes through
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of the breaker counters
type Stats struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	Requests             int    `json:"requests"`
	Failures             int    `json:"failures"`
	Successes            int    `json:"successes"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
}

// GoBreakerAdapter wraps gobreaker behind the module's error and logging types
type GoBreakerAdapter struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewGoBreaker creates a breaker. An invalid config is reported rather than replaced.
func NewGoBreaker(name string, config Config, logger logging.Logger) (*GoBreakerAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	}

	return &GoBreakerAdapter{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}, nil
}

// isSuccessful keeps local and client-side failures from tripping the breaker
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	switch errors.GetType(err) {
	case errors.ErrTypeValidation, errors.ErrTypeMissingCredential, errors.ErrTypeConfig:
		return true
	}
	return false
}

// Execute runs fn within the circuit breaker. When the circuit rejects the call fn is not
// invoked and the returned error satisfies IsOpenError.
func (g *GoBreakerAdapter) Execute(fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if stderrors.Is(err, gobreaker.ErrOpenState) {
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' is open", g.name), err)
	}
	if stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' has too many requests", g.name), err)
	}

	return err
}

// IsOpenError reports whether err is a rejection by an open or saturated breaker
func IsOpenError(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}

// Name returns the breaker name
func (g *GoBreakerAdapter) Name() string {
	return g.name
}

// State returns the current state of the circuit breaker
func (g *GoBreakerAdapter) State() State {
	switch g.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Stats returns current statistics
func (g *GoBreakerAdapter) Stats() Stats {
	counts := g.breaker.Counts()

	return Stats{
		Name:                 g.name,
		State:                g.State().String(),
		Requests:             int(counts.Requests),
		Failures:             int(counts.TotalFailures),
		Successes:            int(counts.TotalSuccesses),
		ConsecutiveFailures:  int(counts.ConsecutiveFailures),
		ConsecutiveSuccesses: int(counts.ConsecutiveSuccesses),
	}
}
