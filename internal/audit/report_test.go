package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/contracts"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestYearlyReportSplitsByCalendarYear(t *testing.T) {
	result := &backtest.Result{
		Curve: []contracts.PeriodResult{
			{Date: day(2023, 6, 1), Return: 0.10, Equity: 1.10},
			{Date: day(2023, 9, 1), Return: -0.05, Equity: 1.045},
			{Date: day(2024, 3, 1), Return: 0.02, Equity: 1.0659},
		},
		WeightsHistory: []contracts.PortfolioWeights{
			{Date: day(2023, 6, 1), Weights: map[string]float64{"005930": 0.5, "000660": 0.3}},
			{Date: day(2023, 9, 1), Weights: map[string]float64{"005930": 0.6}},
			{Date: day(2024, 3, 1), Weights: map[string]float64{"005930": 1.0}},
		},
	}

	years := YearlyReport(result)
	require.Len(t, years, 2)

	y2023 := years[0]
	assert.Equal(t, 2023, y2023.Year)
	assert.InDelta(t, 1.10*0.95-1, y2023.Return, 1e-9)
	assert.Equal(t, 2, y2023.Periods)
	assert.InDelta(t, 0.5, y2023.WinRate, 1e-9)
	// 0.8과 0.6의 평균
	assert.InDelta(t, 0.7, y2023.AvgExposure, 1e-9)
	// 1.10 고점 대비 1.045
	assert.InDelta(t, 1-1.045/1.10, y2023.MaxDrawdown, 1e-9)

	y2024 := years[1]
	assert.Equal(t, 2024, y2024.Year)
	assert.InDelta(t, 0.02, y2024.Return, 1e-9)
	assert.InDelta(t, 1.0, y2024.WinRate, 1e-9)
	assert.InDelta(t, 1.0, y2024.AvgExposure, 1e-9)
}

func TestYearlyReportEmptyCurve(t *testing.T) {
	assert.Empty(t, YearlyReport(&backtest.Result{}))
}
