package papersources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{})

		require.NotNil(t, client)
		assert.Equal(t, 30*time.Second, client.client.Timeout)
		assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
		assert.Equal(t, 0, client.config.MaxRetries)
		assert.Equal(t, time.Second, client.config.RetryDelay)
		assert.Equal(t, float64(10), client.config.RateLimit)
		assert.Equal(t, 1, client.config.BurstSize)
	})

	t.Run("negative retries clamp to zero", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{MaxRetries: -4})
		assert.Equal(t, 0, client.config.MaxRetries)
	})

	t.Run("wraps provided client", func(t *testing.T) {
		base := &http.Client{}
		client := NewHTTPClientWith(base, HTTPClientConfig{Timeout: 5 * time.Second})

		assert.Same(t, base, client.client)
		assert.Equal(t, 5*time.Second, base.Timeout)
	})
}

func TestHTTPClient_Do(t *testing.T) {
	t.Run("sets User-Agent", func(t *testing.T) {
		var ua string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua = r.Header.Get("User-Agent")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{UserAgent: "TestAgent/2.0", RateLimit: 100, BurstSize: 10})

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"status":"ok"}`, string(body))
		assert.Equal(t, "TestAgent/2.0", ua)
	})

	t.Run("no retries by default", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{RateLimit: 100, BurstSize: 10})

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries 5xx when enabled", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{
			RateLimit:  100,
			BurstSize:  10,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("returns last response when retries are exhausted", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{
			RateLimit:  100,
			BurstSize:  10,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		})

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{RateLimit: 100, BurstSize: 10, MaxRetries: 3, RetryDelay: time.Millisecond})

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("canceled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{RateLimit: 100, BurstSize: 10})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		assert.Error(t, err)
	})
}

func TestHTTPClient_RetryDelay(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{RetryDelay: 250 * time.Millisecond})

	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{name: "no header", header: "", expected: 250 * time.Millisecond},
		{name: "seconds", header: "3", expected: 3 * time.Second},
		{name: "zero seconds", header: "0", expected: 250 * time.Millisecond},
		{name: "garbage", header: "soon", expected: 250 * time.Millisecond},
		{name: "date in the past", header: "Mon, 02 Jan 2006 15:04:05 GMT", expected: 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.expected, client.retryDelay(resp))
		})
	}
}
