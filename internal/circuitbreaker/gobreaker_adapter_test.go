package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-session/internal/common/errors"
	"amp-session/internal/common/logging"
)

func newTestBreaker(t *testing.T, maxFailures int, timeout time.Duration) *GoBreakerAdapter {
	t.Helper()

	cb, err := NewGoBreaker(t.Name(), Config{
		MaxFailures:           maxFailures,
		Timeout:               timeout,
		MaxConcurrentRequests: 1,
	}, logging.Nop())
	require.NoError(t, err)
	return cb
}

func TestGoBreakerAdapter(t *testing.T) {
	t.Run("starts closed and passes calls through", func(t *testing.T) {
		cb := newTestBreaker(t, 2, 100*time.Millisecond)

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 1, cb.Stats().Successes)
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		cb := newTestBreaker(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error {
				return fmt.Errorf("failure %d", i)
			})
			assert.Error(t, err)
			assert.False(t, IsOpenError(err))
		}

		assert.Equal(t, StateOpen, cb.State())

		called := false
		err := cb.Execute(func() error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.True(t, IsOpenError(err))
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
		assert.Contains(t, err.Error(), "is open")
	})

	t.Run("half-open after timeout then closes on success", func(t *testing.T) {
		cb := newTestBreaker(t, 1, 20*time.Millisecond)

		_ = cb.Execute(func() error { return fmt.Errorf("failure") })
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("client-side errors do not trip", func(t *testing.T) {
		cb := newTestBreaker(t, 1, time.Minute)

		err := cb.Execute(func() error { return errors.ValidationError("bad body") })
		assert.Error(t, err)
		err = cb.Execute(func() error { return errors.MissingCredentialError("AMP_USERNAME") })
		assert.Error(t, err)

		assert.Equal(t, StateClosed, cb.State())
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		config Config
	}{
		{"zero failures", Config{MaxFailures: 0, Timeout: time.Second, MaxConcurrentRequests: 1}},
		{"zero timeout", Config{MaxFailures: 1, Timeout: 0, MaxConcurrentRequests: 1}},
		{"zero concurrency", Config{MaxFailures: 1, Timeout: time.Second, MaxConcurrentRequests: 0}},
		{"negative interval", Config{MaxFailures: 1, Timeout: time.Second, MaxConcurrentRequests: 1, Interval: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

			_, err = NewGoBreaker("invalid", tt.config, nil)
			assert.Error(t, err)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
