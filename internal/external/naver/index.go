package naver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/pitlab/internal/contracts"
)

// IndexLevel is one daily close of a market index (KOSPI, KOSDAQ).
type IndexLevel struct {
	Index string
	Date  time.Time
	Level float64
}

// fetchIndexLevels scrapes daily index closes from the Naver Finance index
// history page. There is no JSON API for index history, so this walks the
// paginated HTML table.
// ⭐ SSOT: 지수 히스토리 호출은 이 함수에서만
func (c *Client) fetchIndexLevels(ctx context.Context, index string, window contracts.DateRange) ([]contracts.RawRecord, error) {
	var records []contracts.RawRecord
	from := contracts.NormalizeDate(window.From)

	// 최신순 페이지네이션: 범위 시작보다 과거로 내려가면 중단
	for page := 1; page <= 200; page++ {
		params := url.Values{}
		params.Set("code", index)
		params.Set("page", strconv.Itoa(page))

		html, err := c.fetchHTML(ctx, "/sise/sise_index_day.naver", params)
		if err != nil {
			return nil, err
		}

		pageRecords, oldest, err := parseIndexHTML(index, html)
		if err != nil {
			return nil, err
		}
		if len(pageRecords) == 0 {
			break
		}
		for _, rec := range pageRecords {
			date, _ := time.Parse("20060102", rec.Payload["date"])
			if window.Contains(date) {
				records = append(records, rec)
			}
		}
		if oldest.Before(from) {
			break
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("naver: index %s %s: %w", index, window.Key(), contracts.ErrNotFound)
	}
	c.logger.WithFields(map[string]interface{}{
		"index": index,
		"count": len(records),
	}).Debug("Fetched index levels")
	return records, nil
}

var indexDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// parseIndexHTML extracts (date, close) rows from one history page.
func parseIndexHTML(index, html string) ([]contracts.RawRecord, time.Time, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse index page: %w", err)
	}

	var records []contracts.RawRecord
	var oldest time.Time

	doc.Find("table.type_1 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !indexDateRe.MatchString(dateText) {
			return
		}
		date, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}
		level := strings.ReplaceAll(strings.TrimSpace(cells.Eq(1).Text()), ",", "")
		if level == "" {
			return
		}

		oldest = date // 행은 최신순이므로 마지막 행이 가장 과거
		records = append(records, contracts.RawRecord{
			Symbol:   index,
			Endpoint: EndpointIndexLevel,
			Payload: map[string]string{
				"date":  date.Format("20060102"),
				"level": level,
			},
		})
	})

	return records, oldest, nil
}

// ParseIndexLevels converts index-level records into typed levels.
func ParseIndexLevels(records []contracts.RawRecord) ([]IndexLevel, error) {
	var levels []IndexLevel
	for _, rec := range records {
		date, err := time.Parse("20060102", rec.Payload["date"])
		if err != nil {
			return nil, fmt.Errorf("record %s: malformed date %q", rec.Symbol, rec.Payload["date"])
		}
		level, err := strconv.ParseFloat(rec.Payload["level"], 64)
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: malformed level %q", rec.Symbol, rec.Payload["date"], rec.Payload["level"])
		}
		levels = append(levels, IndexLevel{
			Index: rec.Symbol,
			Date:  contracts.NormalizeDate(date),
			Level: level,
		})
	}
	return levels, nil
}
