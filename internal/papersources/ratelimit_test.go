package papersources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, 3)
	require.NotNil(t, rl)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "should allow request %d within burst", i+1)
	}
	assert.False(t, rl.allow())
}

func TestNewIntervalLimiter(t *testing.T) {
	t.Run("first event passes then one per interval", func(t *testing.T) {
		rl := NewIntervalLimiter(2 * time.Second)

		assert.True(t, rl.allow())
		assert.False(t, rl.allow())
		assert.Equal(t, 2*time.Second, rl.Interval())
	})

	t.Run("zero interval never blocks", func(t *testing.T) {
		rl := NewIntervalLimiter(0)

		for i := 0; i < 50; i++ {
			assert.True(t, rl.allow())
		}
		assert.Equal(t, time.Duration(0), rl.Interval())
	})

	t.Run("wait spaces events", func(t *testing.T) {
		rl := NewIntervalLimiter(30 * time.Millisecond)
		ctx := context.Background()

		start := time.Now()
		require.NoError(t, rl.Wait(ctx))
		require.NoError(t, rl.Wait(ctx))
		require.NoError(t, rl.Wait(ctx))

		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("wait honours cancellation", func(t *testing.T) {
		rl := NewIntervalLimiter(time.Hour)
		require.True(t, rl.allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, rl.Wait(ctx))
	})
}
