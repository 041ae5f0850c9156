package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/calendar"
	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/marketdata"
	"github.com/wonny/pitlab/internal/overlay"
	"github.com/wonny/pitlab/internal/walkforward"
	"github.com/wonny/pitlab/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekdaySessions(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// testUniverse: AAA drifts up 10bp per session, BBB drifts down.
func testUniverse(t *testing.T) (*calendar.Service, *marketdata.Store) {
	t.Helper()
	sessions := weekdaySessions(day(2019, 1, 1), day(2022, 12, 30))
	cal, err := calendar.NewService(sessions, nil)
	require.NoError(t, err)

	prices := marketdata.NewStore()
	for i, s := range sessions {
		up := 100 * math.Pow(1.001, float64(i))
		down := 100 * math.Pow(0.999, float64(i))
		require.NoError(t, prices.AddBar(contracts.PriceBar{
			Symbol: "AAA", Date: s, Close: up, AdjClose: up, AdjFactor: 1}))
		require.NoError(t, prices.AddBar(contracts.PriceBar{
			Symbol: "BBB", Date: s, Close: down, AdjClose: down, AdjFactor: 1}))
	}
	return cal, prices
}

// sessionFeatures fabricates one unlabeled row per (test-span session,
// symbol), which is all the fixed scorer needs.
type sessionFeatures struct {
	cal     *calendar.Service
	symbols []string
}

func (f *sessionFeatures) Rows(_ context.Context, w contracts.WalkForwardWindow) ([]contracts.FeatureRow, error) {
	sessions, err := f.cal.TradingDays(w.ValidEnd, w.TestEnd)
	if err != nil {
		return nil, err
	}
	var rows []contracts.FeatureRow
	for _, s := range sessions {
		if !w.InTestSpan(s) {
			continue
		}
		for _, sym := range f.symbols {
			rows = append(rows, contracts.FeatureRow{Date: s, Symbol: sym})
		}
	}
	return rows, nil
}

// fixedScorer scores every unlabeled test-span row from a static table.
type fixedScorer struct {
	scores map[string]float64
	extra  []contracts.ScoreRecord // injected contract violations
}

func (s *fixedScorer) Score(_ context.Context, w contracts.WalkForwardWindow, rows []contracts.FeatureRow) (contracts.ScoreSet, error) {
	set := contracts.ScoreSet{}
	for _, row := range rows {
		if row.HasLabel || !w.InTestSpan(row.Date) {
			continue
		}
		if score, ok := s.scores[row.Symbol]; ok {
			set[contracts.DateSymbol{Date: row.Date, Symbol: row.Symbol}] = score
		}
	}
	for _, rec := range s.extra {
		set[contracts.DateSymbol{Date: rec.Date, Symbol: rec.Symbol}] = rec.Score
	}
	return set, nil
}

func testRunConfig() RunConfig {
	return RunConfig{
		Start: day(2019, 1, 1),
		Windows: walkforward.Config{
			TrainYears:       1,
			ValidMonths:      2,
			TestMonths:       2,
			StepMonths:       2,
			LabelHorizonDays: 5,
			LabelStartOffset: 1,
		},
		Overlay: overlay.Config{
			Tiers:       []overlay.Tier{{Threshold: 0.20, MaxExposure: 0.5}},
			MaxWeight:   1,
			MaxExposure: 1,
		},
		Cost:           CostModel{FeeBps: 10, SlippageBps: 5},
		RebalanceEvery: 5,
		TopN:           1,
		InitialEquity:  1,
	}
}

func newTestEngine(t *testing.T, scorer contracts.Scorer) *Engine {
	t.Helper()
	cal, prices := testUniverse(t)
	features := &sessionFeatures{cal: cal, symbols: []string{"AAA", "BBB"}}
	return NewEngine(cal, features, scorer, prices, logger.Nop(), nil)
}

func TestRun_ChronologicalTwoPhaseLoop(t *testing.T) {
	e := newTestEngine(t, &fixedScorer{scores: map[string]float64{"AAA": 2, "BBB": 1}})

	result, err := e.Run(context.Background(), testRunConfig())
	require.NoError(t, err)
	require.NotEmpty(t, result.Curve)
	assert.NotEmpty(t, result.RunID, "run id generated when omitted")
	assert.Len(t, result.WeightsHistory, len(result.Curve))

	// 기간은 엄격한 시간순
	for i := 1; i < len(result.Curve); i++ {
		assert.True(t, result.Curve[i].Date.After(result.Curve[i-1].Date))
	}
	assert.True(t, contracts.SameDate(result.LastCompleted, result.Curve[len(result.Curve)-1].Date))

	// TopN=1이면 상승 종목만 보유, 전체 수익은 양수
	for _, w := range result.WeightsHistory {
		for sym := range w.Weights {
			assert.Equal(t, "AAA", sym)
		}
	}
	assert.Greater(t, result.Summary.TotalReturn, 0.0)
	assert.Greater(t, result.Summary.FinalEquity, result.Summary.InitialEquity)
}

func TestRun_RejectsOutOfSpanScores(t *testing.T) {
	scorer := &fixedScorer{
		scores: map[string]float64{"AAA": 2},
		extra: []contracts.ScoreRecord{
			// 학습 구간 한가운데 날짜: 테스트 스팬 밖
			{Date: day(2019, 6, 3), Symbol: "AAA", Score: 9},
		},
	}
	e := newTestEngine(t, scorer)

	_, err := e.Run(context.Background(), testRunConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside test span")
}

func TestRun_CancelBetweenPeriodsKeepsCompletedPrefix(t *testing.T) {
	e := newTestEngine(t, &fixedScorer{scores: map[string]float64{"AAA": 2}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := e.Run(ctx, testRunConfig())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "partial result carries resume bookkeeping")
	assert.Empty(t, result.Curve)
	assert.True(t, result.LastCompleted.IsZero())
}

func TestRun_TurnoverCapAppliesAcrossPeriods(t *testing.T) {
	e := newTestEngine(t, &fixedScorer{scores: map[string]float64{"AAA": 2, "BBB": 1}})

	cfg := testRunConfig()
	cfg.TopN = 2
	cfg.TurnoverCap = 0.25

	result, err := e.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, result.WeightsHistory)

	prev := contracts.PortfolioWeights{Weights: map[string]float64{}}
	for i, w := range result.WeightsHistory {
		assert.LessOrEqual(t, w.TurnoverFrom(prev), cfg.TurnoverCap+1e-9, "period %d", i)
		prev = w
	}
}

func TestSweep_ParallelRunsAreIndependentAndDeterministic(t *testing.T) {
	e := newTestEngine(t, &fixedScorer{scores: map[string]float64{"AAA": 2, "BBB": 1}})

	base := testRunConfig()
	configs := make([]RunConfig, 4)
	for i := range configs {
		configs[i] = base
		configs[i].RunID = ""
	}
	// 0과 2는 동일 파라미터, 1/3은 턴오버 캡 상이
	configs[1].TurnoverCap = 0.1
	configs[3].TurnoverCap = 0.3

	results := e.Sweep(context.Background(), configs, 3)
	require.Len(t, results, 4)

	seen := map[string]bool{}
	for i, r := range results {
		require.NoError(t, r.Err, "run %d", i)
		require.NotNil(t, r.Result)
		assert.Equal(t, i, r.Index)
		assert.False(t, seen[r.Result.RunID], "run ids must be unique")
		seen[r.Result.RunID] = true
	}

	// 동일 파라미터 동시 실행 = 동일 곡선 (상태 공유 없음)
	assert.Equal(t, results[0].Result.Curve, results[2].Result.Curve)
	best := Best(results)
	require.NotNil(t, best)
}
