// Package config loads the session layer's settings from the environment.
//
// Values are read from the process environment after an optional .env file has been
// merged in with godotenv. Variables already set in the environment win over the file.
//
// Environment Variables:
//
// Upstream:
//   - AMP_API_BASE_URL: API root (default: https://amp-test.blockstream.com/api)
//   - AMP_USERNAME, AMP_PASSWORD: credentials, checked only when a token must be obtained
//
// Retry:
//   - API_RETRY_MAX_ATTEMPTS: attempts per operation (default: 3)
//   - API_RETRY_BASE_DELAY_MS: first backoff delay (default: 1000)
//   - API_RETRY_MAX_DELAY_MS: backoff ceiling (default: 30000)
//   - API_REQUEST_TIMEOUT_SECONDS: per-attempt timeout (default: 10)
//   - API_RATE_LIMIT_RPS: client-side request rate, 0 disables (default: 0)
//   - API_CIRCUIT_BREAKER: guard upstream calls with a circuit breaker (default: false)
//
// Token:
//   - AMP_TOKEN_VALIDITY: assumed token lifetime (default: 24h)
//   - AMP_TOKEN_REFRESH_WINDOW: renew this long before expiry (default: 5m)
//   - AMP_TOKEN_EXPIRY_FROM_JWT: prefer the exp claim of JWT tokens (default: false)
//
// Persistence:
//   - AMP_TOKEN_PERSISTENCE: none, file or redis (default: none)
//   - AMP_TOKEN_FILE: token file for file persistence (default: token.json)
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB: Redis connection (default: localhost:6379, "", 0)
//   - AMP_TOKEN_REDIS_KEY: Redis key holding the token (default: amp:token)
//   - AMP_TOKEN_ENCRYPTION_KEY: passphrase for encrypting the persisted token (default: unset, plaintext)
//
// Logging:
//   - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default: INFO)
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"amp-session/internal/common/errors"
	"amp-session/internal/retry"
)

// Persistence modes
const (
	PersistenceNone  = "none"
	PersistenceFile  = "file"
	PersistenceRedis = "redis"
)

// DefaultBaseURL is the AMP test environment
const DefaultBaseURL = "https://amp-test.blockstream.com/api"

// Config holds all settings. Credentials are deliberately absent; they are resolved from
// the environment each time a token has to be obtained.
type Config struct {
	APIBaseURL string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RequestTimeout   time.Duration
	RateLimitRPS     float64
	CircuitBreaker   bool

	TokenValidity      time.Duration
	TokenRefreshWindow time.Duration
	TokenExpiryFromJWT bool

	Persistence   string
	TokenFile     string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	// TokenEncryptionKey enables AES-GCM encryption of the persisted secret when set
	TokenEncryptionKey string

	LogLevel string
}

// Load merges envFiles (default ".env", missing files are skipped) into the environment,
// parses every variable and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("failed to load %s: %v", file, err))
		}
	}

	r := &envReader{}
	c := &Config{
		APIBaseURL: getEnv("AMP_API_BASE_URL", DefaultBaseURL),

		RetryMaxAttempts: r.int("API_RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   time.Duration(r.int("API_RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
		RetryMaxDelay:    time.Duration(r.int("API_RETRY_MAX_DELAY_MS", 30000)) * time.Millisecond,
		RequestTimeout:   time.Duration(r.int("API_REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		RateLimitRPS:     r.float("API_RATE_LIMIT_RPS", 0),
		CircuitBreaker:   r.bool("API_CIRCUIT_BREAKER", false),

		TokenValidity:      r.duration("AMP_TOKEN_VALIDITY", 24*time.Hour),
		TokenRefreshWindow: r.duration("AMP_TOKEN_REFRESH_WINDOW", 5*time.Minute),
		TokenExpiryFromJWT: r.bool("AMP_TOKEN_EXPIRY_FROM_JWT", false),

		Persistence:   strings.ToLower(getEnv("AMP_TOKEN_PERSISTENCE", PersistenceNone)),
		TokenFile:     getEnv("AMP_TOKEN_FILE", "token.json"),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       r.int("REDIS_DB", 0),
		RedisKey:      getEnv("AMP_TOKEN_REDIS_KEY", "amp:token"),

		TokenEncryptionKey: getEnv("AMP_TOKEN_ENCRYPTION_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if len(r.errs) > 0 {
		return nil, errors.ConfigError(strings.Join(r.errs, "; "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.ConfigError(fmt.Sprintf("AMP_API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL))
	}

	if _, err := c.RetryConfig(); err != nil {
		return err
	}

	if c.RateLimitRPS < 0 {
		return errors.ConfigError("API_RATE_LIMIT_RPS must not be negative")
	}
	if c.TokenValidity <= 0 {
		return errors.ConfigError("AMP_TOKEN_VALIDITY must be positive")
	}
	if c.TokenRefreshWindow < 0 || c.TokenRefreshWindow >= c.TokenValidity {
		return errors.ConfigError("AMP_TOKEN_REFRESH_WINDOW must be non-negative and shorter than AMP_TOKEN_VALIDITY")
	}

	switch c.Persistence {
	case PersistenceNone:
	case PersistenceFile:
		if c.TokenFile == "" {
			return errors.ConfigError("AMP_TOKEN_FILE is required for file persistence")
		}
	case PersistenceRedis:
		if c.RedisAddress == "" {
			return errors.ConfigError("REDIS_ADDRESS is required for redis persistence")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return errors.ConfigError("REDIS_DB must be a number between 0 and 15")
		}
	default:
		return errors.ConfigError(fmt.Sprintf("AMP_TOKEN_PERSISTENCE must be none, file or redis, got %q", c.Persistence))
	}

	return nil
}

// RetryConfig converts the retry settings, rejecting invalid combinations
func (c *Config) RetryConfig() (retry.Config, error) {
	return retry.NewConfig(
		retry.WithMaxAttempts(c.RetryMaxAttempts),
		retry.WithBaseDelay(c.RetryBaseDelay),
		retry.WithMaxDelay(c.RetryMaxDelay),
		retry.WithTimeout(c.RequestTimeout),
	)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and collects every malformed one
type envReader struct {
	errs []string
}

func (r *envReader) int(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (r *envReader) float(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a number, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (r *envReader) bool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a boolean, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (r *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a duration such as 5m or 24h, got %q", key, value))
		return defaultValue
	}
	return parsed
}
