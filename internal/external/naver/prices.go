package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// fetchDailyPrices fetches daily bars from the Naver chart API.
// ⭐ SSOT: Naver 가격 호출은 이 함수에서만
func (c *Client) fetchDailyPrices(ctx context.Context, symbol string, window contracts.DateRange) ([]contracts.RawRecord, error) {
	fullURL := fmt.Sprintf(
		"%s/siseJson.naver?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.chartURL, symbol, window.From.Format("20060102"), window.To.Format("20060102"),
	)

	body, err := c.fetchBody(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	records := parsePriceBody(symbol, string(body))
	if len(records) == 0 {
		return nil, fmt.Errorf("naver: %s %s: %w", symbol, window.Key(), contracts.ErrNotFound)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(records),
	}).Debug("Fetched prices")
	return records, nil
}

// parsePriceBody parses the siseJson response. The endpoint returns a
// JSON-ish array with single quotes; try real JSON first, regex as fallback.
func parsePriceBody(symbol, body string) []contracts.RawRecord {
	body = strings.TrimSpace(strings.ReplaceAll(body, "'", "\""))

	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return parsePriceRows(symbol, rawData)
	}
	return parsePriceRegex(symbol, body)
}

func parsePriceRows(symbol string, rawData [][]interface{}) []contracts.RawRecord {
	var records []contracts.RawRecord
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue // 헤더 행
		}
		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		dateStr = strings.Trim(dateStr, "\"")
		if _, err := time.Parse("20060102", dateStr); err != nil {
			continue
		}
		records = append(records, priceRecord(symbol, dateStr,
			numString(row[4]), numString(row[5])))
	}
	return records
}

var priceRowRe = regexp.MustCompile(`\["(\d{8})",\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+)`)

func parsePriceRegex(symbol, body string) []contracts.RawRecord {
	var records []contracts.RawRecord
	for _, match := range priceRowRe.FindAllStringSubmatch(body, -1) {
		records = append(records, priceRecord(symbol, match[1], match[5], match[6]))
	}
	return records
}

func priceRecord(symbol, date, closePrice, volume string) contracts.RawRecord {
	return contracts.RawRecord{
		Symbol:   symbol,
		Endpoint: EndpointDailyPrice,
		Payload: map[string]string{
			"date":   date,
			"close":  closePrice,
			"volume": volume,
		},
	}
}

func numString(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return strings.Trim(n, "\"")
	default:
		return ""
	}
}

// ParseBars converts daily-price records into finalized bars. The chart
// endpoint returns already-adjusted closes, so AdjFactor starts at 1 and
// later corporate actions re-ingest the affected span.
func ParseBars(records []contracts.RawRecord) ([]contracts.PriceBar, error) {
	var bars []contracts.PriceBar
	for _, rec := range records {
		date, err := time.Parse("20060102", rec.Payload["date"])
		if err != nil {
			return nil, fmt.Errorf("record %s: malformed date %q", rec.Symbol, rec.Payload["date"])
		}
		closePrice, err := strconv.ParseFloat(rec.Payload["close"], 64)
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: malformed close %q", rec.Symbol, rec.Payload["date"], rec.Payload["close"])
		}
		if closePrice <= 0 {
			continue // 거래정지일은 0으로 내려옴
		}
		bars = append(bars, contracts.PriceBar{
			Symbol:    rec.Symbol,
			Date:      contracts.NormalizeDate(date),
			Close:     closePrice,
			AdjClose:  closePrice,
			AdjFactor: 1,
		})
	}
	return bars, nil
}
