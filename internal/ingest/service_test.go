package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/external/naver"
	"github.com/wonny/pitlab/pkg/logger"
)

// recordFetcher replays canned records per symbol.
type recordFetcher struct {
	records map[string][]contracts.RawRecord
}

func (f *recordFetcher) Fetch(_ context.Context, symbol, _ string, _ contracts.DateRange) ([]contracts.RawRecord, error) {
	recs, ok := f.records[symbol]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return recs, nil
}

type memSinks struct {
	facts  []contracts.FundamentalFact
	bars   []contracts.PriceBar
	levels map[string]map[string]float64
}

func newMemSinks() *memSinks {
	return &memSinks{levels: make(map[string]map[string]float64)}
}

func (m *memSinks) Save(_ context.Context, fact contracts.FundamentalFact) error {
	m.facts = append(m.facts, fact)
	return nil
}

func (m *memSinks) SaveBar(_ context.Context, bar contracts.PriceBar) error {
	m.bars = append(m.bars, bar)
	return nil
}

func (m *memSinks) SaveIndexLevel(_ context.Context, name string, date time.Time, level float64) error {
	if m.levels[name] == nil {
		m.levels[name] = make(map[string]float64)
	}
	m.levels[name][date.Format("2006-01-02")] = level
	return nil
}

func priceRaw(symbol, date, close string) contracts.RawRecord {
	return contracts.RawRecord{
		Symbol:   symbol,
		Endpoint: naver.EndpointDailyPrice,
		Payload:  map[string]string{"date": date, "close": close, "volume": "1000"},
	}
}

func TestIngestPrices_SavesBarsAndSkipsFailedSymbols(t *testing.T) {
	fetcher := &recordFetcher{records: map[string][]contracts.RawRecord{
		"005930": {priceRaw("005930", "20240102", "79600"), priceRaw("005930", "20240103", "77000")},
		"000660": {priceRaw("000660", "20240102", "142500")},
	}}
	sinks := newMemSinks()
	collector := NewCollector(fetcher, nil, nil, fastConfig(), logger.Nop(), nil)
	svc := NewService(collector, nil, nil, sinks, sinks, logger.Nop())

	saved, err := svc.IngestPrices(context.Background(),
		[]string{"005930", "MISSING", "000660"}, testWindow())
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	assert.Len(t, sinks.bars, 3)
	assert.Equal(t, 79600.0, sinks.bars[0].Close)
}

func TestIngestIndexLevels_SavesLevels(t *testing.T) {
	fetcher := &recordFetcher{records: map[string][]contracts.RawRecord{
		"KOSPI": {
			{Symbol: "KOSPI", Endpoint: naver.EndpointIndexLevel,
				Payload: map[string]string{"date": "20240102", "level": "2669.81"}},
		},
	}}
	sinks := newMemSinks()
	collector := NewCollector(fetcher, nil, nil, fastConfig(), logger.Nop(), nil)
	svc := NewService(collector, nil, nil, sinks, sinks, logger.Nop())

	saved, err := svc.IngestIndexLevels(context.Background(), []string{"KOSPI"}, testWindow())
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 2669.81, sinks.levels["KOSPI"]["2024-01-02"])
}

func TestIngestFinancials_AppendsFacts(t *testing.T) {
	fetcher := &recordFetcher{records: map[string][]contracts.RawRecord{
		"005930": {{
			Symbol:   "005930",
			Endpoint: "financials",
			Payload: map[string]string{
				"rcept_no":      "20240312000123",
				"account_nm":    "당기순이익",
				"fs_div":        "CFS",
				"thstrm_amount": "15,487,100,000,000",
				"thstrm_dt":     "2023.01.01 ~ 2023.12.31",
			},
		}},
	}}
	sinks := newMemSinks()
	collector := NewCollector(fetcher, nil, nil, fastConfig(), logger.Nop(), nil)
	svc := NewService(nil, collector, nil, sinks, sinks, logger.Nop())

	saved, err := svc.IngestFinancials(context.Background(), []string{"005930"}, testWindow())
	require.NoError(t, err)
	require.Equal(t, 1, saved)
	assert.Equal(t, contracts.MetricNetIncomeTTM, sinks.facts[0].Metric)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), sinks.facts[0].AvailableDate)
}
