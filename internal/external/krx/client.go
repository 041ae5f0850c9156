package krx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

// EndpointMarketCap is the endpoint name for whole-market cap listings.
// The collector passes the market name (KOSPI/KOSDAQ) as the symbol.
const EndpointMarketCap = "market_cap"

// Client handles communication with the KRX data portal
// ⭐ SSOT: KRX 시장 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new KRX client
func NewClient(log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
		baseURL:    "http://data.krx.co.kr/comm/bldAttendant/getJsonData.cmd",
	}
}

// krxMarketCapResponse represents the KRX portal response
type krxMarketCapResponse struct {
	OutBlock1 []krxMarketCapRow `json:"OutBlock_1"`
}

type krxMarketCapRow struct {
	IsuSrtCd  string `json:"ISU_SRT_CD"` // 종목코드 (단축)
	IsuAbbrv  string `json:"ISU_ABBRV"`  // 종목명
	TddClsprc string `json:"TDD_CLSPRC"` // 종가
	Mktcap    string `json:"MKTCAP"`     // 시가총액
	ListShrs  string `json:"LIST_SHRS"`  // 상장주식수
}

// Fetch implements contracts.Fetcher. symbol is the market name; one raw
// record per listed stock per trading day in the window.
func (c *Client) Fetch(ctx context.Context, symbol, endpoint string, window contracts.DateRange) ([]contracts.RawRecord, error) {
	if endpoint != EndpointMarketCap {
		return nil, fmt.Errorf("krx: unsupported endpoint %q: %w", endpoint, contracts.ErrNotFound)
	}

	mktID, err := marketID(symbol)
	if err != nil {
		return nil, err
	}

	var records []contracts.RawRecord
	for d := contracts.NormalizeDate(window.From); !d.After(contracts.NormalizeDate(window.To)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		rows, err := c.fetchDay(ctx, mktID, d)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			records = append(records, contracts.RawRecord{
				Symbol:   row.IsuSrtCd,
				Endpoint: EndpointMarketCap,
				Payload: map[string]string{
					"date":       d.Format("20060102"),
					"close":      row.TddClsprc,
					"market_cap": row.Mktcap,
					"shares":     row.ListShrs,
					"name":       row.IsuAbbrv,
				},
			})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("krx: %s %s: %w", symbol, window.Key(), contracts.ErrNotFound)
	}
	return records, nil
}

// fetchDay fetches the full market-cap table for one trading day.
// ⭐ SSOT: KRX 시가총액/상장주식수 조회는 이 함수에서만
func (c *Client) fetchDay(ctx context.Context, mktID string, date time.Time) ([]krxMarketCapRow, error) {
	formData := url.Values{
		"bld":         {"dbms/MDC/STAT/standard/MDCSTAT01501"},
		"locale":      {"ko_KR"},
		"mktId":       {mktID},
		"trdDd":       {date.Format("20060102")},
		"share":       {"1"},
		"money":       {"1"},
		"csvxls_isNo": {"false"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		bytes.NewBufferString(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// KRX blocks non-browser requests
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Referer", "http://data.krx.co.kr/contents/MDC/MDI/mdiLoader/index.cmd")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("krx throttled: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var result krxMarketCapResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.OutBlock1, nil
}

func marketID(market string) (string, error) {
	switch strings.ToUpper(market) {
	case "KOSPI":
		return "STK", nil
	case "KOSDAQ":
		return "KSQ", nil
	default:
		return "", fmt.Errorf("unsupported market: %s", market)
	}
}
