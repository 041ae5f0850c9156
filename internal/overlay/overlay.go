package overlay

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

// IndexSource supplies reference index levels and moving averages for the
// market-trend filter.
type IndexSource interface {
	IndexLevel(name string, date time.Time) (float64, bool)
	IndexMA(name string, date time.Time, window int) (float64, bool)
}

// Overlay is the drawdown/volatility/market-filter state machine. It holds
// no per-run state itself; every run passes its own RiskState through the
// two-phase protocol:
//
//	1. Caps(state, t)   - exposure caps for period t from state through t-1
//	2. execution        - realized return for period t arrives
//	3. Update(state, t) - state advances into t+1
//
// Never interleave the phases out of order.
// ⭐ SSOT: 노출 한도 계산은 여기서만
type Overlay struct {
	cfg    Config
	index  IndexSource
	prices contracts.PriceSource
	logger *logger.Logger
}

// New validates the configuration and builds the overlay. index and prices
// may be nil when the market filter / risk-off rotation are disabled.
func New(cfg Config, index IndexSource, prices contracts.PriceSource, log *logger.Logger) (*Overlay, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Overlay{cfg: cfg, index: index, prices: prices, logger: log}, nil
}

// Config returns the validated configuration.
func (o *Overlay) Config() Config { return o.cfg }

// Caps is the phase-1 output: the exposure limits for one rebalance period.
type Caps struct {
	TierCap          float64  `json:"tier_cap"`
	VolScale         float64  `json:"vol_scale"`
	MarketMultiplier float64  `json:"market_multiplier"`
	PerSymbol        float64  `json:"per_symbol"`
	Portfolio        float64  `json:"portfolio"`
	RiskOff          bool     `json:"risk_off"`
	DefensiveBasket  []string `json:"defensive_basket,omitempty"`
}

// Caps computes the limits for the period starting at date, reading state
// known through the previous period only.
func (o *Overlay) Caps(ctx context.Context, state *RiskState, date time.Time) (Caps, error) {
	tierCap := 1.0
	if state.ActiveTierIndex >= 0 {
		tierCap = o.cfg.Tiers[state.ActiveTierIndex].MaxExposure
	}

	mult := tierCap * state.VolScale() * state.MarketMultiplier()
	caps := Caps{
		TierCap:          tierCap,
		VolScale:         state.VolScale(),
		MarketMultiplier: state.MarketMultiplier(),
		PerSymbol:        min(o.cfg.MaxWeight, mult),
		Portfolio:        o.cfg.MaxExposure * mult,
		RiskOff:          state.RiskOffActive,
	}

	if state.RiskOffActive {
		basket, err := o.selectDefensive(ctx, date)
		if err != nil {
			return Caps{}, err
		}
		caps.DefensiveBasket = basket
	}
	return caps, nil
}

// Update is phase 3: consume the period's realized result and advance the
// state machine into the next period. Exactly one call per period.
func (o *Overlay) Update(state *RiskState, realized contracts.PeriodResult) {
	state.Equity = realized.Equity
	if realized.Equity > state.EquityPeak {
		state.EquityPeak = realized.Equity
	}
	state.CurrentDrawdown = 0
	if state.EquityPeak > 0 {
		state.CurrentDrawdown = 1 - realized.Equity/state.EquityPeak
	}

	o.updateTier(state)
	o.updateVolScale(state, realized.Return)
	o.updateMarketFilter(state, realized.Date)
	o.updateRiskOff(state)

	state.LastCompleted = contracts.NormalizeDate(realized.Date)
	state.Periods++
}

// updateTier scans the tier ladder. Crossing a threshold steps exposure down
// to the next tier's cap and locks; the lock releases only when drawdown
// falls below the held tier's threshold minus the hysteresis margin.
func (o *Overlay) updateTier(state *RiskState) {
	dd := state.CurrentDrawdown

	// crossed = dd가 넘어선 threshold 개수
	crossed := 0
	for _, tier := range o.cfg.Tiers {
		if dd >= tier.Threshold {
			crossed++
		}
	}
	candidate := -1
	if crossed > 0 {
		candidate = crossed
		if candidate > len(o.cfg.Tiers)-1 {
			candidate = len(o.cfg.Tiers) - 1
		}
	}

	// 히스테리시스 해제: 보유 티어의 threshold - margin 아래로 회복해야 한 단계 완화
	held := state.ActiveTierIndex
	for held >= 0 && dd < o.cfg.Tiers[held].Threshold-o.cfg.HysteresisMargin {
		held--
	}
	if candidate > held {
		held = candidate
	}

	state.ActiveTierIndex = held
	state.Locked = held >= 0
}

func (o *Overlay) updateVolScale(state *RiskState, periodReturn float64) {
	if o.cfg.VolTarget <= 0 {
		return
	}
	state.pushReturn(periodReturn, o.cfg.VolLookback)

	vol, ok := state.realizedVol(o.cfg.VolLookback)
	if !ok {
		// 윈도우 미충족: 직전 스케일 유지
		return
	}
	state.VolEstimate = vol
	if vol < o.cfg.VolEpsilon {
		vol = o.cfg.VolEpsilon
	}
	scale := o.cfg.VolTarget / vol
	if scale > 1 {
		scale = 1
	}
	state.volScale = scale
}

func (o *Overlay) updateMarketFilter(state *RiskState, date time.Time) {
	if o.cfg.MarketIndex == "" || o.index == nil {
		return
	}
	level, okLevel := o.index.IndexLevel(o.cfg.MarketIndex, date)
	ma, okMA := o.index.IndexMA(o.cfg.MarketIndex, date, o.cfg.MarketFilterWindow)
	if !okLevel || !okMA {
		// fail-soft: 직전 멀티플라이어 유지
		o.logger.WithError(contracts.StaleDataWarning{
			What: "market index " + o.cfg.MarketIndex,
			Date: contracts.NormalizeDate(date),
		}).Warn("Market filter held at previous multiplier")
		return
	}

	state.MarketFilterOn = level < ma
	if state.MarketFilterOn {
		state.marketMult = o.cfg.MarketFilterMultiplier
	} else {
		state.marketMult = 1
	}
}

func (o *Overlay) updateRiskOff(state *RiskState) {
	active := false
	if o.cfg.RiskOffDrawdown > 0 && state.CurrentDrawdown >= o.cfg.RiskOffDrawdown {
		active = true
	}
	if o.cfg.RiskOffOnMarketOff && state.MarketFilterOn {
		active = true
	}
	state.RiskOffActive = active
}

// selectDefensive ranks the fixed candidate list by the configured policy
// over trailing closes ending at date. Deterministic: policy score first,
// symbol as tie-break.
func (o *Overlay) selectDefensive(ctx context.Context, date time.Time) ([]string, error) {
	if o.prices == nil || len(o.cfg.DefensiveCandidates) == 0 {
		return nil, nil
	}

	type ranked struct {
		symbol string
		score  float64
	}
	candidates := make([]ranked, 0, len(o.cfg.DefensiveCandidates))

	for _, symbol := range o.cfg.DefensiveCandidates {
		closes, err := o.prices.ClosesUpTo(ctx, symbol, date, o.cfg.DefensiveLookback+1)
		if err != nil {
			return nil, err
		}
		if len(closes) < 2 || closes[0] == 0 {
			continue
		}

		var score float64
		switch o.cfg.DefensivePolicy {
		case PolicyLowVol:
			rets := make([]float64, 0, len(closes)-1)
			for i := 1; i < len(closes); i++ {
				if closes[i-1] != 0 {
					rets = append(rets, closes[i]/closes[i-1]-1)
				}
			}
			score = -stddev(rets) // 낮은 변동성일수록 상위
		default: // PolicyMomentum
			score = closes[len(closes)-1]/closes[0] - 1
		}
		candidates = append(candidates, ranked{symbol: symbol, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	k := o.cfg.DefensiveTopK
	if k > len(candidates) {
		k = len(candidates)
	}
	basket := make([]string, 0, k)
	for _, c := range candidates[:k] {
		basket = append(basket, c.symbol)
	}
	return basket, nil
}
