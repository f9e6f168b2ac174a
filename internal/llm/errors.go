package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "openai", "anthropic").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error is a transient error that may succeed
// on retry. This includes rate limiting (429), server errors (5xx), and network
// errors (StatusCode 0 indicates no HTTP response was received).
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

func isTransientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTransient()
}

// withRetries calls fn until it succeeds, returns a non-transient error, or
// maxRetries extra attempts were spent. The wait grows linearly with the attempt.
func withRetries[T any](ctx context.Context, provider string, maxRetries int, delay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%s: context cancelled during retry wait: %w", provider, ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isTransientError(err) {
			return zero, err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%s: exhausted %d retries: %w", provider, maxRetries, lastErr)
}
