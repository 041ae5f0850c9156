package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/fundamentals"
	"github.com/wonny/pitlab/internal/marketdata"
	"github.com/wonny/pitlab/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedStores(t *testing.T) (*fundamentals.Store, *marketdata.Store) {
	t.Helper()

	facts := fundamentals.NewStore()
	prices := marketdata.NewStore()

	// 005930: shares fact available 2024-02-15, net income available 2024-02-15
	for _, f := range []contracts.FundamentalFact{
		{Symbol: "005930", Metric: contracts.MetricSharesOutstanding, Value: 1000,
			PeriodEnd: day(2023, 12, 31), ReportedDate: day(2024, 1, 31), AvailableDate: day(2024, 2, 15)},
		{Symbol: "005930", Metric: contracts.MetricNetIncomeTTM, Value: 500,
			PeriodEnd: day(2023, 12, 31), ReportedDate: day(2024, 1, 31), AvailableDate: day(2024, 2, 15)},
		// 000660: shares fact not yet public on 2024-02-20
		{Symbol: "000660", Metric: contracts.MetricSharesOutstanding, Value: 700,
			PeriodEnd: day(2023, 12, 31), ReportedDate: day(2024, 2, 28), AvailableDate: day(2024, 3, 5)},
	} {
		_, err := facts.Append(f)
		require.NoError(t, err)
	}

	for _, sym := range []string{"005930", "000660"} {
		require.NoError(t, prices.AddBar(contracts.PriceBar{
			Symbol: sym, Date: day(2024, 2, 20), Close: 50, AdjClose: 50, AdjFactor: 1,
		}))
	}
	return facts, prices
}

func TestBuild_NoLookahead(t *testing.T) {
	facts, prices := seedStores(t)
	b := NewBuilder(facts, prices, logger.Nop())

	res, err := b.Build(context.Background(), day(2024, 2, 20), []string{"005930", "000660"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	// 005930: both facts public by 2024-02-20
	row := res.Rows[1]
	assert.Equal(t, "005930", row.Symbol)
	assert.Equal(t, 1000.0, row.Metrics[contracts.MetricSharesOutstanding])
	assert.Equal(t, 500.0, row.Metrics[contracts.MetricNetIncomeTTM])
	assert.Equal(t, 1000.0*50, row.PITMarketCap)

	// 000660: shares fact becomes available 2024-03-05, must not leak in
	row = res.Rows[0]
	assert.Equal(t, "000660", row.Symbol)
	_, present := row.Metrics[contracts.MetricSharesOutstanding]
	assert.False(t, present, "fact with future available_date leaked into snapshot")
	assert.Zero(t, row.PITMarketCap, "market cap must stay unset without a shares fact")
}

func TestBuild_Deterministic(t *testing.T) {
	facts, prices := seedStores(t)
	b := NewBuilder(facts, prices, logger.Nop())
	ctx := context.Background()

	// 유니버스 순서만 뒤집어도 결과는 동일해야 함
	first, err := b.Build(ctx, day(2024, 2, 20), []string{"005930", "000660"})
	require.NoError(t, err)
	second, err := b.Build(ctx, day(2024, 2, 20), []string{"000660", "005930"})
	require.NoError(t, err)

	assert.Equal(t, first.IngestVersion, second.IngestVersion)
	assert.Equal(t, first.Rows, second.Rows)
}

func TestBuild_MissingPriceSkipsSymbolOnly(t *testing.T) {
	facts, prices := seedStores(t)
	b := NewBuilder(facts, prices, logger.Nop())

	// 035720 halted: no bar on the snapshot date
	res, err := b.Build(context.Background(), day(2024, 2, 20), []string{"005930", "035720", "000660"})
	require.NoError(t, err)

	assert.Len(t, res.Rows, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "035720", res.Skipped[0].Symbol)
	assert.True(t, contracts.SameDate(day(2024, 2, 20), res.Skipped[0].Date))
}

func TestBuild_RestatementVisibleOnlyAfterAvailability(t *testing.T) {
	facts, prices := seedStores(t)

	// restated net income, available much later
	_, err := facts.Append(contracts.FundamentalFact{
		Symbol: "005930", Metric: contracts.MetricNetIncomeTTM, Value: 480,
		PeriodEnd: day(2023, 12, 31), ReportedDate: day(2024, 4, 1), AvailableDate: day(2024, 4, 10),
	})
	require.NoError(t, err)
	require.NoError(t, prices.AddBar(contracts.PriceBar{
		Symbol: "005930", Date: day(2024, 4, 15), Close: 55, AdjClose: 55, AdjFactor: 1,
	}))

	b := NewBuilder(facts, prices, logger.Nop())
	ctx := context.Background()

	before, err := b.Build(ctx, day(2024, 2, 20), []string{"005930"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, before.Rows[0].Metrics[contracts.MetricNetIncomeTTM],
		"pre-restatement snapshot must keep the original value")

	after, err := b.Build(ctx, day(2024, 4, 15), []string{"005930"})
	require.NoError(t, err)
	assert.Equal(t, 480.0, after.Rows[0].Metrics[contracts.MetricNetIncomeTTM])
}
