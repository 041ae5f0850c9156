package krx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// ParseSharesFacts converts market-cap records into shares-outstanding
// facts. The KRX table is published same-day after close, so the
// observation date is also the availability date.
func ParseSharesFacts(records []contracts.RawRecord, ingestSeq int64) ([]contracts.FundamentalFact, error) {
	var facts []contracts.FundamentalFact
	for _, rec := range records {
		date, err := time.Parse("20060102", rec.Payload["date"])
		if err != nil {
			return nil, fmt.Errorf("record %s: malformed date %q", rec.Symbol, rec.Payload["date"])
		}
		shares, err := parseGrouped(rec.Payload["shares"])
		if err != nil {
			continue // 상장주식수 없는 행 (스팩 등)
		}

		observed := contracts.NormalizeDate(date)
		facts = append(facts, contracts.FundamentalFact{
			Symbol:        rec.Symbol,
			Metric:        contracts.MetricSharesOutstanding,
			Value:         shares,
			PeriodEnd:     observed,
			ReportedDate:  observed,
			AvailableDate: observed,
			IngestSeq:     ingestSeq,
		})
	}
	return facts, nil
}

// MarketCapOn extracts per-symbol market caps for one observation date.
func MarketCapOn(records []contracts.RawRecord, date time.Time) (map[string]float64, error) {
	want := contracts.NormalizeDate(date).Format("20060102")
	caps := make(map[string]float64)
	for _, rec := range records {
		if rec.Payload["date"] != want {
			continue
		}
		mc, err := parseGrouped(rec.Payload["market_cap"])
		if err != nil {
			continue
		}
		caps[rec.Symbol] = mc
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("no market caps on %s: %w", want, contracts.ErrNotFound)
	}
	return caps, nil
}

// parseGrouped parses KRX comma-grouped numbers, e.g. "5,969,782,550".
func parseGrouped(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}
