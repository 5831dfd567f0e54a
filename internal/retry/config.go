package retry

import (
	"fmt"
	"time"

	"amp-session/internal/common/errors"
)

// Config bounds a single logical operation: how many attempts, how long to wait between
// them, and how long each attempt may take.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int
	// BaseDelay is the first backoff delay; later delays double from here
	BaseDelay time.Duration
	// MaxDelay caps every wait, including server-requested Retry-After waits
	MaxDelay time.Duration
	// Timeout bounds each individual attempt
	Timeout time.Duration
}

// DefaultConfig returns 3 attempts, 1s base delay, 30s max delay and a 10s attempt timeout.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1000 * time.Millisecond,
		MaxDelay:    30000 * time.Millisecond,
		Timeout:     10 * time.Second,
	}
}

// FastConfig is the reduced preset for test suites: 2 attempts, 500ms/5s delays, 5s timeout.
func FastConfig() Config {
	return Config{
		MaxAttempts: 2,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5000 * time.Millisecond,
		Timeout:     5 * time.Second,
	}
}

// Option modifies a Config under construction
type Option func(*Config)

// WithMaxAttempts sets the attempt budget
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithBaseDelay sets the initial backoff delay
func WithBaseDelay(d time.Duration) Option {
	return func(c *Config) {
		c.BaseDelay = d
	}
}

// WithMaxDelay sets the backoff ceiling
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// NewConfig applies opts over DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	return DefaultConfig().With(opts...)
}

// With returns a validated copy of c with opts applied.
func (c Config) With(opts ...Option) (Config, error) {
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects configurations that cannot be executed. Values are never clamped.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.ConfigError(fmt.Sprintf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BaseDelay < time.Millisecond {
		return errors.ConfigError(fmt.Sprintf("base delay must be at least 1ms, got %v", c.BaseDelay))
	}
	if c.MaxDelay < c.BaseDelay {
		return errors.ConfigError(fmt.Sprintf("max delay %v must not be less than base delay %v", c.MaxDelay, c.BaseDelay))
	}
	if c.Timeout < time.Millisecond {
		return errors.ConfigError(fmt.Sprintf("timeout must be at least 1ms, got %v", c.Timeout))
	}
	return nil
}

// TimeoutSeconds reports the attempt timeout in whole seconds, rounding sub-second values up.
func (c Config) TimeoutSeconds() int {
	seconds := int(c.Timeout / time.Second)
	if c.Timeout%time.Second != 0 {
		seconds++
	}
	return seconds
}
