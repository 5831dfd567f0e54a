package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-session/internal/common/errors"
	"amp-session/internal/retry"
)

var envVars = []string{
	"AMP_API_BASE_URL",
	"API_RETRY_MAX_ATTEMPTS",
	"API_RETRY_BASE_DELAY_MS",
	"API_RETRY_MAX_DELAY_MS",
	"API_REQUEST_TIMEOUT_SECONDS",
	"API_RATE_LIMIT_RPS",
	"API_CIRCUIT_BREAKER",
	"AMP_TOKEN_VALIDITY",
	"AMP_TOKEN_REFRESH_WINDOW",
	"AMP_TOKEN_EXPIRY_FROM_JWT",
	"AMP_TOKEN_PERSISTENCE",
	"AMP_TOKEN_FILE",
	"REDIS_ADDRESS",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"AMP_TOKEN_REDIS_KEY",
	"AMP_TOKEN_ENCRYPTION_KEY",
	"LOG_LEVEL",
}

// clearEnv blanks every variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, c.APIBaseURL)
	assert.Equal(t, 3, c.RetryMaxAttempts)
	assert.Equal(t, time.Second, c.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, c.RetryMaxDelay)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, float64(0), c.RateLimitRPS)
	assert.False(t, c.CircuitBreaker)
	assert.Equal(t, 24*time.Hour, c.TokenValidity)
	assert.Equal(t, 5*time.Minute, c.TokenRefreshWindow)
	assert.False(t, c.TokenExpiryFromJWT)
	assert.Equal(t, PersistenceNone, c.Persistence)
	assert.Equal(t, "token.json", c.TokenFile)
	assert.Equal(t, "localhost:6379", c.RedisAddress)
	assert.Equal(t, 0, c.RedisDB)
	assert.Equal(t, "amp:token", c.RedisKey)
	assert.Empty(t, c.TokenEncryptionKey)
	assert.Equal(t, "INFO", c.LogLevel)

	rc, err := c.RetryConfig()
	require.NoError(t, err)
	assert.Equal(t, retry.DefaultConfig(), rc)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AMP_API_BASE_URL", "http://localhost:9000/api")
	t.Setenv("API_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("API_RETRY_BASE_DELAY_MS", "500")
	t.Setenv("API_RETRY_MAX_DELAY_MS", "5000")
	t.Setenv("API_REQUEST_TIMEOUT_SECONDS", "5")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_CIRCUIT_BREAKER", "true")
	t.Setenv("AMP_TOKEN_VALIDITY", "1h")
	t.Setenv("AMP_TOKEN_REFRESH_WINDOW", "10m")
	t.Setenv("AMP_TOKEN_EXPIRY_FROM_JWT", "1")
	t.Setenv("AMP_TOKEN_PERSISTENCE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AMP_TOKEN_ENCRYPTION_KEY", "passphrase")

	c, err := Load(noEnvFile(t))
	require.NoError(t, err)

	rc, err := c.RetryConfig()
	require.NoError(t, err)
	assert.Equal(t, retry.FastConfig(), rc)

	assert.Equal(t, 2.5, c.RateLimitRPS)
	assert.True(t, c.CircuitBreaker)
	assert.Equal(t, time.Hour, c.TokenValidity)
	assert.Equal(t, 10*time.Minute, c.TokenRefreshWindow)
	assert.True(t, c.TokenExpiryFromJWT)
	assert.Equal(t, PersistenceRedis, c.Persistence)
	assert.Equal(t, 3, c.RedisDB)
	assert.Equal(t, "passphrase", c.TokenEncryptionKey)
}

func TestLoad_UnparseableValuesFail(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"API_RETRY_MAX_ATTEMPTS", "three"},
		{"API_RETRY_BASE_DELAY_MS", "1s"},
		{"API_REQUEST_TIMEOUT_SECONDS", "ten"},
		{"API_RATE_LIMIT_RPS", "fast"},
		{"API_CIRCUIT_BREAKER", "maybe"},
		{"AMP_TOKEN_VALIDITY", "forever"},
		{"REDIS_DB", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(noEnvFile(t))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero attempts", map[string]string{"API_RETRY_MAX_ATTEMPTS": "0"}},
		{"max delay below base", map[string]string{"API_RETRY_BASE_DELAY_MS": "2000", "API_RETRY_MAX_DELAY_MS": "1000"}},
		{"zero timeout", map[string]string{"API_REQUEST_TIMEOUT_SECONDS": "0"}},
		{"bad base url", map[string]string{"AMP_API_BASE_URL": "ftp://example.com"}},
		{"window exceeds validity", map[string]string{"AMP_TOKEN_VALIDITY": "5m", "AMP_TOKEN_REFRESH_WINDOW": "10m"}},
		{"unknown persistence", map[string]string{"AMP_TOKEN_PERSISTENCE": "s3"}},
		{"redis db out of range", map[string]string{"AMP_TOKEN_PERSISTENCE": "redis", "REDIS_DB": "16"}},
		{"negative rate", map[string]string{"API_RATE_LIMIT_RPS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(noEnvFile(t))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already set, even to empty
	for _, key := range []string{"API_RETRY_MAX_ATTEMPTS", "AMP_TOKEN_FILE"} {
		value, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if had {
				os.Setenv(key, value)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("API_RETRY_MAX_ATTEMPTS=5\nAMP_TOKEN_FILE=/tmp/amp-token.json\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, c.RetryMaxAttempts)
	assert.Equal(t, "/tmp/amp-token.json", c.TokenFile)
}
