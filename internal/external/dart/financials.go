package dart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// EndpointFinancials is the endpoint name the collector uses for
// fundamental statements.
const EndpointFinancials = "financials"

// financialResponse represents the DART single-account statement response.
type financialResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	List    []financialItem `json:"list"`
}

// financialItem is one account line from fnlttSinglAcnt.
type financialItem struct {
	RceptNo      string `json:"rcept_no"`      // 접수번호 (앞 8자리 = 접수일 YYYYMMDD)
	StockCode    string `json:"stock_code"`    // 종목코드
	AccountNm    string `json:"account_nm"`    // 계정명
	FsDiv        string `json:"fs_div"`        // CFS: 연결, OFS: 개별
	ThstrmAmount string `json:"thstrm_amount"` // 당기 금액
	ThstrmDt     string `json:"thstrm_dt"`     // 당기 기간 (예: "2023.12.31 현재")
	ReprtCode    string `json:"reprt_code"`
	BsnsYear     string `json:"bsns_year"`
}

// accountMetrics maps DART account names onto canonical metric names.
// 연결(CFS) 우선, 계정명은 DART 표준 한글 명칭
var accountMetrics = map[string]string{
	"당기순이익": contracts.MetricNetIncomeTTM,
	"매출액":   contracts.MetricRevenueTTM,
	"자본총계":  contracts.MetricBookValue,
}

// Fetch implements contracts.Fetcher for the financials endpoint. One raw
// record per account line; the parser turns them into fundamental facts.
func (c *Client) Fetch(ctx context.Context, symbol, endpoint string, window contracts.DateRange) ([]contracts.RawRecord, error) {
	if endpoint != EndpointFinancials {
		return nil, fmt.Errorf("dart: unsupported endpoint %q: %w", endpoint, contracts.ErrNotFound)
	}

	var records []contracts.RawRecord
	for _, period := range reportPeriods(window) {
		items, err := c.fetchStatement(ctx, symbol, period.year, period.reprtCode)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			records = append(records, contracts.RawRecord{
				Symbol:   symbol,
				Endpoint: EndpointFinancials,
				Payload: map[string]string{
					"rcept_no":      item.RceptNo,
					"account_nm":    item.AccountNm,
					"fs_div":        item.FsDiv,
					"thstrm_amount": item.ThstrmAmount,
					"thstrm_dt":     item.ThstrmDt,
					"reprt_code":    item.ReprtCode,
					"bsns_year":     item.BsnsYear,
				},
			})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dart: %s %s: %w", symbol, window.Key(), contracts.ErrNotFound)
	}
	return records, nil
}

// fetchStatement fetches one (year, report) statement for a corp code.
// ⭐ SSOT: DART 재무제표 호출은 이 함수에서만
func (c *Client) fetchStatement(ctx context.Context, corpCode, year, reprtCode string) ([]financialItem, error) {
	fullURL := fmt.Sprintf(
		"%s/api/fnlttSinglAcnt.json?crtfc_key=%s&corp_code=%s&bsns_year=%s&reprt_code=%s",
		c.baseURL, c.apiKey, corpCode, year, reprtCode,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, contracts.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result financialResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Status codes:
	// 000 = success
	// 013 = no data (ok)
	// 020 = usage limit exceeded
	switch result.Status {
	case "000":
		return result.List, nil
	case "013":
		return nil, nil
	case "020":
		return nil, fmt.Errorf("dart quota: %w", contracts.ErrRateLimited)
	default:
		return nil, fmt.Errorf("API error: %s - %s", result.Status, result.Message)
	}
}

type reportPeriod struct {
	year      string
	reprtCode string
}

// reportPeriods expands a calendar window into the (business year, report
// code) pairs whose filings can fall in it. 11011=사업, 11012=반기,
// 11013=1분기, 11014=3분기
func reportPeriods(window contracts.DateRange) []reportPeriod {
	var periods []reportPeriod
	// 전년도 사업보고서는 3~4월에 접수되므로 한 해 앞까지 포함
	for year := window.From.Year() - 1; year <= window.To.Year(); year++ {
		y := strconv.Itoa(year)
		for _, code := range []string{"11011", "11012", "11013", "11014"} {
			periods = append(periods, reportPeriod{year: y, reprtCode: code})
		}
	}
	return periods
}

// ParseFacts converts raw financial records into fundamental facts.
// AvailableDate comes from the filing receipt date (접수번호 앞 8자리):
// the day the statement became publicly consumable, not the period it
// reports on.
func ParseFacts(records []contracts.RawRecord, ingestSeq int64) ([]contracts.FundamentalFact, error) {
	var facts []contracts.FundamentalFact

	for _, rec := range records {
		payload := rec.Payload
		metric, ok := accountMetrics[strings.TrimSpace(payload["account_nm"])]
		if !ok {
			continue
		}
		// 연결재무제표만 사용, 개별은 중복이므로 버림
		if payload["fs_div"] != "" && payload["fs_div"] != "CFS" {
			continue
		}

		value, err := parseAmount(payload["thstrm_amount"])
		if err != nil {
			continue // 금액 없는 계정 라인은 건너뜀
		}

		available, err := receiptDate(payload["rcept_no"])
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: %w", rec.Symbol, metric, err)
		}

		periodEnd, err := parsePeriodEnd(payload["thstrm_dt"])
		if err != nil {
			periodEnd = available // 기간 미상이면 접수일로 보수적 처리
		}

		facts = append(facts, contracts.FundamentalFact{
			Symbol:        rec.Symbol,
			Metric:        metric,
			Value:         value,
			PeriodEnd:     periodEnd,
			ReportedDate:  available,
			AvailableDate: available,
			IngestSeq:     ingestSeq,
		})
	}
	return facts, nil
}

// receiptDate extracts the filing date from a DART receipt number.
func receiptDate(rceptNo string) (time.Time, error) {
	if len(rceptNo) < 8 {
		return time.Time{}, fmt.Errorf("malformed rcept_no %q", rceptNo)
	}
	t, err := time.Parse("20060102", rceptNo[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed rcept_no %q: %w", rceptNo, err)
	}
	return contracts.NormalizeDate(t), nil
}

// parseAmount parses DART comma-grouped amounts, e.g. "1,234,567".
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(s, 64)
}

// parsePeriodEnd parses "2023.12.31 현재" / "2023.01.01 ~ 2023.12.31" forms.
func parsePeriodEnd(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "~"); idx >= 0 {
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.Index(s, " "); idx >= 0 {
		s = s[:idx]
	}
	t, err := time.Parse("2006.01.02", s)
	if err != nil {
		return time.Time{}, err
	}
	return contracts.NormalizeDate(t), nil
}
