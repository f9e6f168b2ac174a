package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	t.Run("with type field", func(t *testing.T) {
		t.Parallel()
		err := &APIError{
			Provider:   "gemini",
			StatusCode: 429,
			Message:    "quota exceeded",
			Type:       "RESOURCE_EXHAUSTED",
		}
		assert.Equal(t, "gemini: API error (status 429, type RESOURCE_EXHAUSTED): quota exceeded", err.Error())
	})

	t.Run("without type field", func(t *testing.T) {
		t.Parallel()
		err := &APIError{
			Provider:   "anthropic",
			StatusCode: 500,
			Message:    "internal server error",
		}
		assert.Equal(t, "anthropic: API error (status 500): internal server error", err.Error())
	})
}

func TestAPIError_IsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{name: "429 is transient", statusCode: 429, want: true},
		{name: "500 is transient", statusCode: 500, want: true},
		{name: "503 is transient", statusCode: 503, want: true},
		{name: "no response is transient", statusCode: 0, want: true},
		{name: "400 is not transient", statusCode: 400, want: false},
		{name: "401 is not transient", statusCode: 401, want: false},
		{name: "404 is not transient", statusCode: 404, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := &APIError{Provider: "test", StatusCode: tc.statusCode}
			assert.Equal(t, tc.want, err.IsTransient())
		})
	}
}

func TestIsTransientError(t *testing.T) {
	t.Parallel()

	assert.True(t, isTransientError(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 502})))
	assert.False(t, isTransientError(&APIError{StatusCode: 403}))
	assert.False(t, isTransientError(errors.New("plain")))
	assert.False(t, isTransientError(nil))
}

func TestWithRetries(t *testing.T) {
	t.Parallel()

	t.Run("retries transient errors then succeeds", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := withRetries(context.Background(), "test", 3, time.Millisecond, func() (string, error) {
			calls++
			if calls < 3 {
				return "", &APIError{StatusCode: 503}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-transient error", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := withRetries(context.Background(), "test", 3, time.Millisecond, func() (string, error) {
			calls++
			return "", &APIError{StatusCode: 400, Message: "bad"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("reports exhaustion", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := withRetries(context.Background(), "test", 2, time.Millisecond, func() (int, error) {
			calls++
			return 0, &APIError{StatusCode: 500}
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exhausted 2 retries")
		assert.Equal(t, 3, calls)

		var apiErr *APIError
		assert.True(t, errors.As(err, &apiErr))
	})

	t.Run("honours cancellation during wait", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		_, err := withRetries(ctx, "test", 5, time.Hour, func() (int, error) {
			cancel()
			return 0, &APIError{StatusCode: 500}
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
