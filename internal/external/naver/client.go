package naver

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/httputil"
	"github.com/wonny/pitlab/pkg/logger"
)

// Endpoint names the collector routes through this client.
const (
	EndpointDailyPrice = "daily_price"
	EndpointIndexLevel = "index_level"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	chartURL   string
	financeURL string
}

// NewClient creates a new Naver Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		chartURL:   "https://fchart.stock.naver.com",
		financeURL: "https://finance.naver.com",
	}
}

// Fetch implements contracts.Fetcher.
func (c *Client) Fetch(ctx context.Context, symbol, endpoint string, window contracts.DateRange) ([]contracts.RawRecord, error) {
	switch endpoint {
	case EndpointDailyPrice:
		return c.fetchDailyPrices(ctx, symbol, window)
	case EndpointIndexLevel:
		return c.fetchIndexLevels(ctx, symbol, window)
	default:
		return nil, fmt.Errorf("naver: unsupported endpoint %q: %w", endpoint, contracts.ErrNotFound)
	}
}

var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	"Referer":    "https://finance.naver.com/",
}

// fetchBody fetches one URL, translating upstream throttling into the
// collector's rate-limit error.
func (c *Client) fetchBody(ctx context.Context, fullURL string) ([]byte, error) {
	body, err := c.httpClient.GetBody(ctx, fullURL, browserHeaders)
	if err != nil {
		if errors.Is(err, httputil.ErrTooManyRequests) {
			return nil, fmt.Errorf("naver throttled: %w", contracts.ErrRateLimited)
		}
		return nil, err
	}
	return body, nil
}

// fetchHTML fetches one Naver Finance page.
func (c *Client) fetchHTML(ctx context.Context, path string, params url.Values) (string, error) {
	fullURL := c.financeURL + path
	if len(params) > 0 {
		fullURL = fullURL + "?" + params.Encode()
	}
	body, err := c.fetchBody(ctx, fullURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
