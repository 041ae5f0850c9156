package audit

import (
	"sort"

	"github.com/wonny/pitlab/internal/backtest"
)

// YearReport breaks one run's curve down by calendar year.
type YearReport struct {
	Year        int     `json:"year"`
	Return      float64 `json:"return"`       // 연간 복리 수익률
	MaxDrawdown float64 `json:"max_drawdown"` // 연중 고점 대비
	Periods     int     `json:"periods"`
	WinRate     float64 `json:"win_rate"`
	AvgExposure float64 `json:"avg_exposure"` // 평균 총 노출
}

// YearlyReport computes per-year attribution from a completed run.
// Exposure comes from the weights history; return and drawdown from the
// equity curve. Years appear in ascending order.
func YearlyReport(result *backtest.Result) []YearReport {
	type acc struct {
		growth   float64
		peak     float64
		maxDD    float64
		periods  int
		wins     int
		exposure float64
		rebals   int
	}

	years := make(map[int]*acc)
	for _, p := range result.Curve {
		y := p.Date.Year()
		a, ok := years[y]
		if !ok {
			a = &acc{growth: 1, peak: p.Equity}
			years[y] = a
		}
		a.growth *= 1 + p.Return
		a.periods++
		if p.Return > 0 {
			a.wins++
		}
		if p.Equity > a.peak {
			a.peak = p.Equity
		}
		if a.peak > 0 {
			if dd := 1 - p.Equity/a.peak; dd > a.maxDD {
				a.maxDD = dd
			}
		}
	}

	for _, w := range result.WeightsHistory {
		if a, ok := years[w.Date.Year()]; ok {
			a.exposure += w.TotalWeight()
			a.rebals++
		}
	}

	out := make([]YearReport, 0, len(years))
	for y, a := range years {
		report := YearReport{
			Year:        y,
			Return:      a.growth - 1,
			MaxDrawdown: a.maxDD,
			Periods:     a.periods,
		}
		if a.periods > 0 {
			report.WinRate = float64(a.wins) / float64(a.periods)
		}
		if a.rebals > 0 {
			report.AvgExposure = a.exposure / float64(a.rebals)
		}
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
