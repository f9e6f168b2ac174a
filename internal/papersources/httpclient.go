package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultUserAgent is sent when the caller does not set one.
const DefaultUserAgent = "openalex-analyzer/1.0"

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of extra attempts on 429 and 5xx responses.
	// Zero disables retries: the first failure is returned to the caller.
	MaxRetries int

	// RetryDelay is the delay between retries when the server sends no Retry-After.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// HTTPClient wraps http.Client with rate limiting and optional retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	return NewHTTPClientWith(&http.Client{}, cfg)
}

// NewHTTPClientWith wraps an existing http.Client. The client's Timeout is
// overwritten with cfg.Timeout.
func NewHTTPClientWith(client *http.Client, cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client.Timeout = cfg.Timeout
	return &HTTPClient{
		client:      client,
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request after waiting for the rate limiter.
// With MaxRetries > 0 it retries 429 and 5xx responses, honouring
// Retry-After. With MaxRetries == 0 the response is returned as-is and the
// caller decides what a non-2xx status means.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		retriesLeft := attempt < c.config.MaxRetries

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !retriesLeft {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			if err := c.prepareRetry(req, c.config.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if !retriesLeft || !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		delay := c.retryDelay(resp)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if err := c.prepareRetry(req, delay); err != nil {
			return nil, err
		}
	}
}

func (c *HTTPClient) prepareRetry(req *http.Request, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
	}

	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("cannot retry request: %w", err)
	}
	req.Body = body
	return nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// retryDelay reads Retry-After as seconds or an HTTP date, falling back to RetryDelay.
func (c *HTTPClient) retryDelay(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return c.config.RetryDelay
	}
	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return c.config.RetryDelay
}
