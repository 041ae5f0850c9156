package backtest

import (
	"math"

	"github.com/wonny/pitlab/internal/contracts"
)

// Summary is the reporting-facing metric set for one completed run.
type Summary struct {
	TotalReturn  float64 `json:"total_return"`
	CAGR         float64 `json:"cagr"`
	Volatility   float64 `json:"volatility"` // annualized
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`

	MaxDrawdown     float64 `json:"max_drawdown"`      // full history
	MaxDrawdown52W  float64 `json:"max_drawdown_52w"`  // trailing 52 weeks
	AvgTurnover     float64 `json:"avg_turnover"`      // per rebalance
	Periods         int     `json:"periods"`
	PeriodsPerYear  float64 `json:"periods_per_year"`
	FinalEquity     float64 `json:"final_equity"`
	InitialEquity   float64 `json:"initial_equity"`
	WinningPeriods  int     `json:"winning_periods"`
	LosingPeriods   int     `json:"losing_periods"`
}

// Summarize computes metrics over a completed equity curve. periodsPerYear
// annualizes period returns (52 for weekly rebalancing).
func Summarize(initialEquity float64, curve []contracts.PeriodResult, stats SimStats, periodsPerYear float64) Summary {
	s := Summary{
		Periods:        len(curve),
		PeriodsPerYear: periodsPerYear,
		InitialEquity:  initialEquity,
		FinalEquity:    initialEquity,
	}
	if len(curve) == 0 || initialEquity <= 0 || periodsPerYear <= 0 {
		return s
	}

	s.FinalEquity = curve[len(curve)-1].Equity
	s.TotalReturn = s.FinalEquity/initialEquity - 1

	years := float64(len(curve)) / periodsPerYear
	if years > 0 && s.FinalEquity > 0 {
		s.CAGR = math.Pow(s.FinalEquity/initialEquity, 1/years) - 1
	}

	returns := make([]float64, 0, len(curve))
	downside := make([]float64, 0, len(curve))
	for _, p := range curve {
		returns = append(returns, p.Return)
		if p.Return > 0 {
			s.WinningPeriods++
		} else if p.Return < 0 {
			s.LosingPeriods++
			downside = append(downside, p.Return)
		}
	}

	annFactor := math.Sqrt(periodsPerYear)
	s.Volatility = populationStddev(returns) * annFactor
	annReturn := mean(returns) * periodsPerYear
	if s.Volatility > 0 {
		s.SharpeRatio = annReturn / s.Volatility
	}
	if dd := populationStddev(downside) * annFactor; dd > 0 {
		s.SortinoRatio = annReturn / dd
	}

	s.MaxDrawdown = maxDrawdown(initialEquity, curve)
	s.MaxDrawdown52W = trailingMaxDrawdown(initialEquity, curve, int(periodsPerYear))

	if stats.Periods > 0 {
		s.AvgTurnover = stats.TotalTurnover / float64(stats.Periods)
	}
	return s
}

// maxDrawdown is the deepest peak-to-trough decline over the whole curve.
func maxDrawdown(initialEquity float64, curve []contracts.PeriodResult) float64 {
	peak := initialEquity
	var worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := 1 - p.Equity/peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// trailingMaxDrawdown restricts the peak to the trailing window, so a crash
// years ago stops dominating current risk reporting.
func trailingMaxDrawdown(initialEquity float64, curve []contracts.PeriodResult, window int) float64 {
	if window <= 0 || len(curve) == 0 {
		return 0
	}
	start := len(curve) - window
	if start < 0 {
		start = 0
	}

	peak := initialEquity
	if start > 0 {
		peak = curve[start-1].Equity
	}
	var worst float64
	for _, p := range curve[start:] {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := 1 - p.Equity/peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func populationStddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
