package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/marketdata"
	"github.com/wonny/pitlab/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ladderConfig() Config {
	return Config{
		Tiers: []Tier{
			{Threshold: 0.08, MaxExposure: 0.4},
			{Threshold: 0.10, MaxExposure: 0.25},
			{Threshold: 0.12, MaxExposure: 0.0},
		},
		HysteresisMargin: 0.06,
		MaxWeight:        1,
		MaxExposure:      1,
	}
}

func newOverlay(t *testing.T, cfg Config) *Overlay {
	t.Helper()
	o, err := New(cfg, nil, nil, logger.Nop())
	require.NoError(t, err)
	return o
}

// step feeds one period whose equity realizes the given drawdown against a
// peak of 1.0, then returns the applied tier cap.
func step(t *testing.T, o *Overlay, state *RiskState, date time.Time, drawdown float64) float64 {
	t.Helper()
	o.Update(state, contracts.PeriodResult{Date: date, Equity: 1 - drawdown})
	caps, err := o.Caps(context.Background(), state, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	return caps.TierCap
}

func TestTierLadderScenario(t *testing.T) {
	o := newOverlay(t, ladderConfig())
	state := NewRiskState(1.0)

	d := day(2024, 1, 2)
	assert.Equal(t, 1.0, step(t, o, state, d, 0.05), "0.05: still Normal")
	assert.Equal(t, 0.25, step(t, o, state, d.AddDate(0, 0, 1), 0.09), "0.09: crossed 0.08")
	assert.Equal(t, 0.0, step(t, o, state, d.AddDate(0, 0, 2), 0.11), "0.11: crossed 0.10")
	assert.Equal(t, 0.0, step(t, o, state, d.AddDate(0, 0, 3), 0.07), "0.07: recovery above unlock level stays locked")
	assert.True(t, state.Locked)

	// 해제 수준(threshold - margin = 0.06) 아래로 회복해야 완화
	cap := step(t, o, state, d.AddDate(0, 0, 4), 0.05)
	assert.Equal(t, 0.25, cap, "below 0.06 releases one rung")
}

func TestTierSelectionMonotonic(t *testing.T) {
	// 독립 상태 두 개: 더 깊은 드로다운이 더 높은 캡을 주는 일은 없어야 함
	drawdowns := []float64{0.0, 0.03, 0.07, 0.085, 0.095, 0.105, 0.115, 0.13}
	var prevCap float64 = 2

	for _, dd := range drawdowns {
		o := newOverlay(t, ladderConfig())
		state := NewRiskState(1.0)
		cap := step(t, o, state, day(2024, 1, 2), dd)
		assert.LessOrEqual(t, cap, prevCap, "drawdown %.3f raised the cap", dd)
		prevCap = cap
	}
}

func TestHysteresisHoldsCapThroughOscillation(t *testing.T) {
	o := newOverlay(t, ladderConfig())
	state := NewRiskState(1.0)

	d := day(2024, 1, 2)
	locked := step(t, o, state, d, 0.09)
	require.Equal(t, 0.25, locked)

	// threshold(0.08) 주변 진동: 해제 수준(0.10-0.06=0.04)을 건드리지 않음
	for i, dd := range []float64{0.081, 0.079, 0.082, 0.078, 0.081} {
		cap := step(t, o, state, d.AddDate(0, 0, i+1), dd)
		assert.Equal(t, locked, cap, "oscillation step %d changed the cap", i)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no tiers", func(c *Config) { c.Tiers = nil }, "tiers"},
		{"descending thresholds", func(c *Config) {
			c.Tiers[1].Threshold = 0.05
		}, "tiers"},
		{"increasing exposure", func(c *Config) {
			c.Tiers[2].MaxExposure = 0.9
		}, "tiers"},
		{"negative margin", func(c *Config) { c.HysteresisMargin = -0.01 }, "hysteresis_margin"},
		{"risk-off without candidates", func(c *Config) {
			c.RiskOffDrawdown = 0.15
			c.DefensiveCandidates = nil
		}, "defensive_candidates"},
		{"bad policy", func(c *Config) { c.DefensivePolicy = "magic" }, "defensive_policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ladderConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, nil, nil, logger.Nop())
			require.Error(t, err)
			var cfgErr contracts.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestVolTargetingScale(t *testing.T) {
	cfg := ladderConfig()
	cfg.VolTarget = 0.01
	cfg.VolLookback = 4
	o := newOverlay(t, cfg)
	state := NewRiskState(1.0)

	// 윈도우 미충족 동안은 스케일 1 유지
	equity := 1.0
	returns := []float64{0.02, -0.03, 0.025, -0.02}
	d := day(2024, 1, 2)
	for i, r := range returns[:3] {
		equity *= 1 + r
		o.Update(state, contracts.PeriodResult{Date: d.AddDate(0, 0, i), Return: r, Equity: equity})
		assert.Equal(t, 1.0, state.VolScale())
	}

	equity *= 1 + returns[3]
	o.Update(state, contracts.PeriodResult{Date: d.AddDate(0, 0, 3), Return: returns[3], Equity: equity})

	// 실현 변동성이 목표를 크게 웃돌면 스케일 < 1
	assert.Greater(t, state.VolEstimate, cfg.VolTarget)
	assert.InDelta(t, cfg.VolTarget/state.VolEstimate, state.VolScale(), 1e-12)
	assert.Less(t, state.VolScale(), 1.0)
}

func TestMarketFilterAndFailSoft(t *testing.T) {
	md := marketdata.NewStore()
	d := day(2024, 1, 1)
	// 5일 이동평균 위/아래를 오가는 지수
	levels := []float64{100, 100, 100, 100, 100, 80}
	for i, lv := range levels {
		md.AddIndexLevel("KOSPI", d.AddDate(0, 0, i), lv)
	}

	cfg := ladderConfig()
	cfg.MarketIndex = "KOSPI"
	cfg.MarketFilterWindow = 5
	cfg.MarketFilterMultiplier = 0.5
	o, err := New(cfg, md, nil, logger.Nop())
	require.NoError(t, err)

	state := NewRiskState(1.0)
	o.Update(state, contracts.PeriodResult{Date: d.AddDate(0, 0, 5), Equity: 1.0})
	assert.True(t, state.MarketFilterOn, "80 below the 5-day MA")
	assert.Equal(t, 0.5, state.MarketMultiplier())

	// 지수 데이터가 없는 날: 직전 멀티플라이어 유지 (fail-soft)
	o.Update(state, contracts.PeriodResult{Date: d.AddDate(0, 1, 0), Equity: 1.0})
	assert.Equal(t, 0.5, state.MarketMultiplier())
}

func TestDefensiveSelection(t *testing.T) {
	md := marketdata.NewStore()
	d := day(2024, 1, 1)
	// BOND: 꾸준한 상승, GOLD: 변동 크고 하락, CASH: 완전 평탄
	for i := 0; i < 30; i++ {
		date := d.AddDate(0, 0, i)
		require.NoError(t, md.AddBar(contracts.PriceBar{
			Symbol: "BOND", Date: date, Close: 100 + float64(i), AdjClose: 100 + float64(i), AdjFactor: 1}))
		g := 100 - float64(i)
		if i%2 == 0 {
			g += 5
		}
		require.NoError(t, md.AddBar(contracts.PriceBar{
			Symbol: "GOLD", Date: date, Close: g, AdjClose: g, AdjFactor: 1}))
		require.NoError(t, md.AddBar(contracts.PriceBar{
			Symbol: "CASH", Date: date, Close: 100, AdjClose: 100, AdjFactor: 1}))
	}
	end := d.AddDate(0, 0, 29)

	cfg := ladderConfig()
	cfg.RiskOffDrawdown = 0.10
	cfg.DefensiveCandidates = []string{"BOND", "GOLD", "CASH"}
	cfg.DefensiveLookback = 20
	cfg.DefensivePolicy = PolicyMomentum
	o, err := New(cfg, nil, md, logger.Nop())
	require.NoError(t, err)

	state := NewRiskState(1.0)
	o.Update(state, contracts.PeriodResult{Date: end, Equity: 0.88}) // dd 12%
	require.True(t, state.RiskOffActive)

	caps, err := o.Caps(context.Background(), state, end)
	require.NoError(t, err)
	assert.Equal(t, []string{"BOND"}, caps.DefensiveBasket, "momentum policy picks the riser")

	// 같은 데이터, low_vol 정책이면 평탄한 CASH
	cfg.DefensivePolicy = PolicyLowVol
	o2, err := New(cfg, nil, md, logger.Nop())
	require.NoError(t, err)
	caps, err = o2.Caps(context.Background(), state, end)
	require.NoError(t, err)
	assert.Equal(t, []string{"CASH"}, caps.DefensiveBasket)
}

func TestCapsCombineMultiplicatively(t *testing.T) {
	cfg := ladderConfig()
	cfg.MaxWeight = 0.1
	cfg.MaxExposure = 0.9
	o := newOverlay(t, cfg)

	state := NewRiskState(1.0)
	o.Update(state, contracts.PeriodResult{Date: day(2024, 1, 2), Equity: 0.91}) // dd 9% -> cap 0.25
	state.volScale = 0.8
	state.marketMult = 0.5

	caps, err := o.Caps(context.Background(), state, day(2024, 1, 3))
	require.NoError(t, err)
	mult := 0.25 * 0.8 * 0.5
	assert.InDelta(t, mult, caps.PerSymbol, 1e-12, "per-symbol min(max_weight, mult)")
	assert.InDelta(t, 0.9*mult, caps.Portfolio, 1e-12)
}
