package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRow(date time.Time, symbol string, netIncome, marketCap float64) contracts.FeatureRow {
	return contracts.FeatureRow{
		Date:   date,
		Symbol: symbol,
		Features: map[string]float64{
			contracts.MetricNetIncomeTTM: netIncome,
			"pit_market_cap":             marketCap,
		},
	}
}

func testWindow() contracts.WalkForwardWindow {
	return contracts.WalkForwardWindow{
		TrainStart:       day(2022, 1, 3),
		TrainEnd:         day(2023, 12, 29),
		ValidEnd:         day(2024, 2, 29),
		TestEnd:          day(2024, 5, 31),
		LabelHorizonDays: 5,
		LabelStartOffset: 1,
	}
}

func TestScore_RanksByEarningsYieldWithinDate(t *testing.T) {
	d := day(2024, 3, 4)
	rows := []contracts.FeatureRow{
		testRow(d, "CHEAP", 100, 500),  // yield 0.20
		testRow(d, "MID", 100, 1000),   // yield 0.10
		testRow(d, "RICH", 100, 5000),  // yield 0.02
	}

	scores, err := NewBaselineScorer(logger.Nop()).Score(context.Background(), testWindow(), rows)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	at := scores.At(d)
	assert.Greater(t, at["CHEAP"], at["MID"])
	assert.Greater(t, at["MID"], at["RICH"])
	// z-점수 단면 합은 0
	assert.InDelta(t, 0, at["CHEAP"]+at["MID"]+at["RICH"], 1e-9)
}

func TestScore_IgnoresLabeledTrainRows(t *testing.T) {
	trainRow := testRow(day(2023, 6, 5), "TRAIN", 100, 500)
	trainRow.Label = 0.05
	trainRow.HasLabel = true

	rows := []contracts.FeatureRow{
		trainRow,
		testRow(day(2024, 3, 4), "A", 100, 500),
		testRow(day(2024, 3, 4), "B", 100, 1000),
	}

	scores, err := NewBaselineScorer(logger.Nop()).Score(context.Background(), testWindow(), rows)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
	assert.Empty(t, scores.At(day(2023, 6, 5)))
}

func TestScore_MarketCapFallbackFromShares(t *testing.T) {
	d := day(2024, 3, 4)
	rows := []contracts.FeatureRow{
		{
			Date:   d,
			Symbol: "NOCAP",
			Features: map[string]float64{
				contracts.MetricNetIncomeTTM:      100,
				contracts.MetricSharesOutstanding: 10,
				"close":                           50, // cap 500
			},
		},
		testRow(d, "HASCAP", 100, 1000),
	}

	scores, err := NewBaselineScorer(logger.Nop()).Score(context.Background(), testWindow(), rows)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	// yield 0.20 > 0.10
	at := scores.At(d)
	assert.Greater(t, at["NOCAP"], at["HASCAP"])
}

func TestScore_SingleSymbolDateScoresZero(t *testing.T) {
	d := day(2024, 3, 4)
	scores, err := NewBaselineScorer(logger.Nop()).Score(context.Background(), testWindow(),
		[]contracts.FeatureRow{testRow(d, "ONLY", 100, 500)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.At(d)["ONLY"])
}

func TestScore_SkipsRowsMissingFundamentals(t *testing.T) {
	d := day(2024, 3, 4)
	rows := []contracts.FeatureRow{
		{Date: d, Symbol: "BARE", Features: map[string]float64{"close": 100}},
		testRow(d, "A", 100, 500),
		testRow(d, "B", 50, 500),
	}

	scores, err := NewBaselineScorer(logger.Nop()).Score(context.Background(), testWindow(), rows)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
	assert.NotContains(t, scores.At(d), "BARE")
}
