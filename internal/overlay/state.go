package overlay

import (
	"math"
	"time"
)

// RiskState is the running state of one backtest or live session. Each run
// owns exactly one instance; it is mutated once per rebalance period,
// strictly after that period's realized return is known.
// ⭐ SSOT: 드로다운/티어/변동성 상태는 이 값에만 존재 - 전역 공유 금지
type RiskState struct {
	Equity          float64 `json:"equity"`
	EquityPeak      float64 `json:"equity_peak"`
	CurrentDrawdown float64 `json:"current_drawdown"`

	// ActiveTierIndex indexes Config.Tiers; -1 means Normal.
	ActiveTierIndex int  `json:"active_tier_index"`
	Locked          bool `json:"locked"`

	VolEstimate    float64 `json:"vol_estimate"`
	MarketFilterOn bool    `json:"market_filter_on"`
	RiskOffActive  bool    `json:"risk_off_active"`

	// LastCompleted is the most recent fully processed period, the resume
	// point after an abort.
	LastCompleted time.Time `json:"last_completed"`
	Periods       int       `json:"periods"`

	// held multipliers: fail-soft일 때 직전 값 유지
	volScale   float64
	marketMult float64
	returns    []float64 // recent per-period returns, capped at vol lookback
}

// NewRiskState starts a fresh run: Normal, no lock, full exposure.
func NewRiskState(initialEquity float64) *RiskState {
	return &RiskState{
		Equity:          initialEquity,
		EquityPeak:      initialEquity,
		ActiveTierIndex: -1,
		volScale:        1,
		marketMult:      1,
	}
}

// VolScale returns the currently applied volatility multiplier.
func (s *RiskState) VolScale() float64 { return s.volScale }

// MarketMultiplier returns the currently applied market-filter multiplier.
func (s *RiskState) MarketMultiplier() float64 { return s.marketMult }

func (s *RiskState) pushReturn(r float64, lookback int) {
	s.returns = append(s.returns, r)
	if len(s.returns) > lookback {
		s.returns = s.returns[len(s.returns)-lookback:]
	}
}

// realizedVol computes the sample standard deviation of the return window.
// false until the window is full.
func (s *RiskState) realizedVol(lookback int) (float64, bool) {
	if lookback < 2 || len(s.returns) < lookback {
		return 0, false
	}
	return stddev(s.returns), true
}

func stddev(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= n
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}
