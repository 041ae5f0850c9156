package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

// CostModel prices one rebalance: proportional fees plus slippage applied to
// traded notional.
type CostModel struct {
	FeeBps      float64 `yaml:"fee_bps" json:"fee_bps"`
	SlippageBps float64 `yaml:"slippage_bps" json:"slippage_bps"`
}

// Rate returns the combined cost as a fraction of traded value.
func (c CostModel) Rate() float64 {
	return (c.FeeBps + c.SlippageBps) / 10000
}

// Simulator is the default execution collaborator: it holds target weights
// through each rebalance period, marks them to market on adjusted closes,
// and charges the cost model on turnover.
// ⭐ SSOT: 백테스트 체결/비용 시뮬레이션은 여기서만
//
// One Simulator serves one run. The schedule is fixed at construction; each
// Execute call consumes the next period in strict order.
type Simulator struct {
	prices   contracts.PriceSource
	cost     CostModel
	schedule []time.Time // rebalance dates, ascending
	logger   *logger.Logger

	cursor  int
	equity  float64
	holding contracts.PortfolioWeights
	stats   SimStats
}

// SimStats accumulates per-run execution accounting.
type SimStats struct {
	Periods       int
	TotalTurnover float64
	TotalCost     float64 // cumulative cost as fraction of equity
	HaltedMarks   int     // symbol-periods marked flat for missing prices
}

// NewSimulator creates a simulator for one run over the given rebalance
// schedule.
func NewSimulator(prices contracts.PriceSource, cost CostModel, schedule []time.Time, initialEquity float64, log *logger.Logger) (*Simulator, error) {
	if len(schedule) == 0 {
		return nil, errors.New("simulator: empty rebalance schedule")
	}
	if initialEquity <= 0 {
		return nil, fmt.Errorf("simulator: initial equity %.4f must be positive", initialEquity)
	}
	return &Simulator{
		prices:   prices,
		cost:     cost,
		schedule: schedule,
		logger:   log,
		equity:   initialEquity,
		holding:  contracts.PortfolioWeights{Weights: map[string]float64{}},
	}, nil
}

// Equity returns the current marked equity.
func (s *Simulator) Equity() float64 { return s.equity }

// Stats returns accumulated execution accounting.
func (s *Simulator) Stats() SimStats { return s.stats }

// Execute implements contracts.ExecutionSimulator. weights.Date must equal
// the next scheduled rebalance date; the realized return covers holding
// those weights until the following date on the schedule (the final period
// realizes costs only).
func (s *Simulator) Execute(ctx context.Context, weights contracts.PortfolioWeights) (contracts.PeriodResult, error) {
	if s.cursor >= len(s.schedule) {
		return contracts.PeriodResult{}, errors.New("simulator: schedule exhausted")
	}
	periodStart := s.schedule[s.cursor]
	if !contracts.SameDate(weights.Date, periodStart) {
		return contracts.PeriodResult{}, fmt.Errorf("simulator: weights dated %s, expected %s",
			weights.Date.Format("2006-01-02"), periodStart.Format("2006-01-02"))
	}

	// 체결 비용: 직전 보유 대비 턴오버에 비례
	turnover := weights.TurnoverFrom(s.holding)
	costFrac := turnover * s.cost.Rate()

	gross := 0.0
	if s.cursor+1 < len(s.schedule) {
		periodEnd := s.schedule[s.cursor+1]
		var err error
		gross, err = s.markPeriod(ctx, weights, periodStart, periodEnd)
		if err != nil {
			return contracts.PeriodResult{}, err
		}
	}

	net := gross - costFrac
	s.equity *= 1 + net
	s.holding = weights
	s.cursor++
	s.stats.Periods++
	s.stats.TotalTurnover += turnover
	s.stats.TotalCost += costFrac

	return contracts.PeriodResult{
		Date:   contracts.NormalizeDate(periodStart),
		Return: net,
		Equity: s.equity,
	}, nil
}

// markPeriod computes the weighted return of holding weights from start to
// end on adjusted closes. Symbols without a bar on either date (halt,
// delisting gap) are marked flat for the period, never abort the run.
func (s *Simulator) markPeriod(ctx context.Context, weights contracts.PortfolioWeights, start, end time.Time) (float64, error) {
	var total float64
	for _, symbol := range weights.Symbols() {
		w := weights.Weights[symbol]
		if w == 0 {
			continue
		}

		entry, err := s.barClose(ctx, symbol, start)
		if err != nil {
			return 0, err
		}
		exit, err := s.barClose(ctx, symbol, end)
		if err != nil {
			return 0, err
		}
		if entry == 0 || exit == 0 {
			s.stats.HaltedMarks++
			s.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"start":  start.Format("2006-01-02"),
				"end":    end.Format("2006-01-02"),
			}).Warn("No price to mark period, holding flat")
			continue
		}
		total += w * (exit/entry - 1)
	}
	return total, nil
}

// barClose returns the adjusted close, or 0 when the bar is missing.
func (s *Simulator) barClose(ctx context.Context, symbol string, date time.Time) (float64, error) {
	bar, err := s.prices.BarOn(ctx, symbol, date)
	if err != nil {
		var missing contracts.MissingPriceError
		if errors.As(err, &missing) {
			return 0, nil
		}
		return 0, err
	}
	return bar.AdjClose, nil
}
