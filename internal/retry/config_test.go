package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-session/internal/common/errors"
)

func TestPresets(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, time.Second, def.BaseDelay)
	assert.Equal(t, 30*time.Second, def.MaxDelay)
	assert.Equal(t, 10*time.Second, def.Timeout)
	assert.NoError(t, def.Validate())

	fast := FastConfig()
	assert.Equal(t, 2, fast.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, fast.BaseDelay)
	assert.Equal(t, 5*time.Second, fast.MaxDelay)
	assert.Equal(t, 5*time.Second, fast.Timeout)
	assert.NoError(t, fast.Validate())
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(
		WithMaxAttempts(5),
		WithBaseDelay(200*time.Millisecond),
		WithMaxDelay(2*time.Second),
		WithTimeout(3*time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, Config{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Timeout:     3 * time.Second,
	}, cfg)
}

func TestNewConfig_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero attempts", []Option{WithMaxAttempts(0)}},
		{"sub-millisecond base delay", []Option{WithBaseDelay(500 * time.Microsecond)}},
		{"max delay below base delay", []Option{WithBaseDelay(2 * time.Second), WithMaxDelay(time.Second)}},
		{"zero timeout", []Option{WithTimeout(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestConfig_WithDoesNotMutateReceiver(t *testing.T) {
	base := FastConfig()
	changed, err := base.With(WithMaxAttempts(4))
	require.NoError(t, err)

	assert.Equal(t, 4, changed.MaxAttempts)
	assert.Equal(t, 2, base.MaxAttempts)
}

func TestTimeoutSeconds(t *testing.T) {
	assert.Equal(t, 10, Config{Timeout: 10 * time.Second}.TimeoutSeconds())
	assert.Equal(t, 1, Config{Timeout: 50 * time.Millisecond}.TimeoutSeconds())
	assert.Equal(t, 2, Config{Timeout: 1500 * time.Millisecond}.TimeoutSeconds())
}
