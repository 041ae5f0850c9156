package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/pitlab/pkg/logger"
)

// ErrTooManyRequests is returned when the upstream answers 429. Callers own
// the backoff policy; this client does not retry rate-limit responses.
var ErrTooManyRequests = errors.New("upstream returned 429")

// Client is an HTTP client wrapper with retry logic and request logging.
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	retry      RetryConfig
}

// RetryConfig bounds the 5xx retry loop.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// New creates a client with a default 30s timeout and 5xx retries.
func New(log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
		retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
}

// WithTimeout overrides the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithRetry overrides the retry budget.
func (c *Client) WithRetry(cfg RetryConfig) *Client {
	c.retry = cfg
	return c
}

// GetBody performs a GET and returns the response body.
// 429는 재시도하지 않고 ErrTooManyRequests로 즉시 반환 - 백오프는 호출자 몫
func (c *Client) GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	delay := c.retry.InitialDelay

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"url":     url,
			}).Warn("Retrying HTTP request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}

		body, retriable, err := c.once(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retriable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.retry.MaxRetries, lastErr)
}

func (c *Client) once(ctx context.Context, url string, headers map[string]string) (body []byte, retriable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(map[string]interface{}{
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    time.Since(start).String(),
	}).Debug("HTTP request completed")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, fmt.Errorf("%w (retry-after=%s)", ErrTooManyRequests, resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(b), 200))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}
	return b, false, nil
}

// RetryAfter parses a Retry-After fragment embedded by GetBody, returning
// the suggested wait and whether one was present.
func RetryAfter(err error) (time.Duration, bool) {
	var s string
	if _, scanErr := fmt.Sscanf(err.Error(), "upstream returned 429 (retry-after=%s)", &s); scanErr != nil {
		return 0, false
	}
	s = trimParen(s)
	if secs, convErr := strconv.Atoi(s); convErr == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func trimParen(s string) string {
	for len(s) > 0 && s[len(s)-1] == ')' {
		s = s[:len(s)-1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
