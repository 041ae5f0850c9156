package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/pitlab/internal/calendar"
	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/overlay"
	"github.com/wonny/pitlab/internal/walkforward"
	"github.com/wonny/pitlab/internal/weights"
	"github.com/wonny/pitlab/pkg/logger"
	"github.com/wonny/pitlab/pkg/metrics"
)

// Engine runs one walk-forward backtest end to end.
// ⭐ SSOT: 백테스트 실행 루프는 여기서만
//
// Within a run, periods advance strictly chronologically: RiskState at t+1
// depends on period t's realized equity, so there is no parallelism inside a
// run. Parallelism lives across runs (see sweep.go).
type Engine struct {
	cal      *calendar.Service
	features FeatureSource
	scorer   contracts.Scorer
	prices   contracts.PriceSource
	logger   *logger.Logger
	recorder *metrics.Recorder // optional
}

// NewEngine wires the run loop. recorder may be nil.
func NewEngine(cal *calendar.Service, features FeatureSource, scorer contracts.Scorer, prices contracts.PriceSource, log *logger.Logger, recorder *metrics.Recorder) *Engine {
	return &Engine{
		cal:      cal,
		features: features,
		scorer:   scorer,
		prices:   prices,
		logger:   log,
		recorder: recorder,
	}
}

// RunConfig parameterizes one run. A sweep varies these; each run still owns
// its own RiskState and simulator.
type RunConfig struct {
	RunID string    `yaml:"run_id" json:"run_id"` // 비워두면 생성
	Start time.Time `yaml:"start" json:"start"`

	Windows walkforward.Config `yaml:"windows" json:"windows"`
	Overlay overlay.Config     `yaml:"overlay" json:"overlay"`
	Cost    CostModel          `yaml:"cost" json:"cost"`

	RebalanceEvery int     `yaml:"rebalance_every" json:"rebalance_every"` // sessions, 5 = weekly
	TopN           int     `yaml:"top_n" json:"top_n"`
	TurnoverCap    float64 `yaml:"turnover_cap" json:"turnover_cap"`
	InitialEquity  float64 `yaml:"initial_equity" json:"initial_equity"`
}

func (c *RunConfig) applyDefaults() {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.RebalanceEvery == 0 {
		c.RebalanceEvery = 5
	}
	if c.InitialEquity == 0 {
		c.InitialEquity = 1
	}
}

// Validate checks the run-level knobs. Windows and Overlay validate
// themselves when the planner and overlay are constructed.
func (c RunConfig) Validate() error {
	if c.RebalanceEvery < 1 {
		return contracts.ConfigurationError{Field: "rebalance_every", Message: "must be positive"}
	}
	if c.TurnoverCap < 0 {
		return contracts.ConfigurationError{Field: "turnover_cap", Message: "must not be negative"}
	}
	if c.InitialEquity <= 0 {
		return contracts.ConfigurationError{Field: "initial_equity", Message: "must be positive"}
	}
	return nil
}

// Normalize fills defaults and validates every section in place. Loaders
// call this once at parse time so a bad file fails before any data access.
func (c *RunConfig) Normalize() error {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.Windows.Validate(); err != nil {
		return err
	}
	if c.Windows.MinTrainSessions == 0 {
		c.Windows.MinTrainSessions = walkforward.DefaultMinTrainSessions
	}
	c.Overlay.ApplyDefaults()
	return c.Overlay.Validate()
}

// Result is everything a completed (or aborted) run produced. On abort,
// LastCompleted names the final fully processed period so a retry can
// resume reporting instead of restarting blind.
type Result struct {
	RunID          string                       `json:"run_id"`
	Config         RunConfig                    `json:"config"`
	Windows        int                          `json:"windows"`
	Curve          []contracts.PeriodResult     `json:"curve"`
	WeightsHistory []contracts.PortfolioWeights `json:"weights_history"`
	LastCompleted  time.Time                    `json:"last_completed"`
	Summary        Summary                      `json:"summary"`
	FinalState     overlay.RiskState            `json:"final_state"`
	Duration       time.Duration                `json:"duration"`
}

// Run executes the walk-forward loop. The returned error is non-nil when the
// run aborted; the partial Result is still returned for resume bookkeeping.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ovl, err := overlay.New(cfg.Overlay, e.indexSource(), e.prices, e.logger)
	if err != nil {
		return nil, err
	}
	planner, err := walkforward.NewPlanner(e.cal, cfg.Windows)
	if err != nil {
		return nil, err
	}
	windows, err := planner.Plan(cfg.Start)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, contracts.InsufficientHistoryError{Need: 1, Have: 0}
	}

	schedule, perWindow, err := e.buildSchedule(windows, cfg.RebalanceEvery)
	if err != nil {
		return nil, err
	}
	sim, err := NewSimulator(e.prices, cfg.Cost, schedule, cfg.InitialEquity, e.logger)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":  cfg.RunID,
		"start":   cfg.Start.Format("2006-01-02"),
		"windows": len(windows),
		"periods": len(schedule),
	}).Info("Starting walk-forward backtest")

	startedAt := time.Now()
	state := overlay.NewRiskState(cfg.InitialEquity)
	result := &Result{RunID: cfg.RunID, Config: cfg, Windows: len(windows)}

	runErr := e.loop(ctx, cfg, windows, perWindow, ovl, sim, state, result)

	result.Duration = time.Since(startedAt)
	result.FinalState = *state
	result.Summary = Summarize(cfg.InitialEquity, result.Curve, sim.Stats(), e.periodsPerYear(cfg.RebalanceEvery))

	outcome := "completed"
	if runErr != nil {
		outcome = "aborted"
	}
	if e.recorder != nil {
		e.recorder.RecordBacktestRun(outcome)
		e.recorder.RecordBacktestLatency("run", result.Duration.Seconds())
	}
	e.logger.WithFields(map[string]interface{}{
		"run_id":       cfg.RunID,
		"outcome":      outcome,
		"periods":      len(result.Curve),
		"total_return": fmt.Sprintf("%.2f%%", result.Summary.TotalReturn*100),
		"sharpe":       fmt.Sprintf("%.2f", result.Summary.SharpeRatio),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.Summary.MaxDrawdown*100),
	}).Info("Backtest finished")

	return result, runErr
}

// loop walks windows and periods in order, enforcing the two-phase protocol
// per period: caps -> compile -> execute -> state update. A period either
// fully completes (curve + history appended) or leaves no trace.
func (e *Engine) loop(ctx context.Context, cfg RunConfig, windows []contracts.WalkForwardWindow, perWindow [][]time.Time, ovl *overlay.Overlay, sim *Simulator, state *overlay.RiskState, result *Result) error {
	previous := contracts.PortfolioWeights{Weights: map[string]float64{}}

	for wi, window := range windows {
		rows, err := e.features.Rows(ctx, window)
		if err != nil {
			return fmt.Errorf("window %d features: %w", wi, err)
		}
		scores, err := e.scorer.Score(ctx, window, rows)
		if err != nil {
			return fmt.Errorf("window %d scoring: %w", wi, err)
		}
		if err := validateScores(scores, window); err != nil {
			return fmt.Errorf("window %d: %w", wi, err)
		}

		for _, date := range perWindow[wi] {
			// 취소는 기간 경계에서만 - 진행 중 기간은 원자적으로 완료
			if err := ctx.Err(); err != nil {
				return err
			}

			caps, err := ovl.Caps(ctx, state, date)
			if err != nil {
				return fmt.Errorf("caps at %s: %w", date.Format("2006-01-02"), err)
			}

			target := e.compileTarget(cfg, caps, scores.At(date), previous, date)
			realized, err := sim.Execute(ctx, target)
			if err != nil {
				return fmt.Errorf("execute %s: %w", date.Format("2006-01-02"), err)
			}
			ovl.Update(state, realized)

			result.Curve = append(result.Curve, realized)
			result.WeightsHistory = append(result.WeightsHistory, target)
			result.LastCompleted = realized.Date
			previous = target
		}
	}
	return nil
}

// compileTarget converts one period's scores into target weights under the
// overlay's caps. Under risk-off the defensive basket replaces the scored
// universe, equal-weighted within the portfolio cap.
func (e *Engine) compileTarget(cfg RunConfig, caps overlay.Caps, scored map[string]float64, previous contracts.PortfolioWeights, date time.Time) contracts.PortfolioWeights {
	if caps.RiskOff && len(caps.DefensiveBasket) > 0 {
		scored = make(map[string]float64, len(caps.DefensiveBasket))
		for _, symbol := range caps.DefensiveBasket {
			scored[symbol] = 1 // 동일 가중
		}
	}

	return weights.Compile(weights.Inputs{
		Date:         date,
		Scores:       scored,
		PerSymbolCap: caps.PerSymbol,
		PortfolioCap: caps.Portfolio,
		TopN:         cfg.TopN,
		Previous:     previous,
		TurnoverCap:  cfg.TurnoverCap,
	})
}

// buildSchedule picks every RebalanceEvery-th session inside each window's
// test span. Returns the flat schedule plus the per-window slices.
func (e *Engine) buildSchedule(windows []contracts.WalkForwardWindow, every int) ([]time.Time, [][]time.Time, error) {
	var flat []time.Time
	perWindow := make([][]time.Time, len(windows))

	for i, w := range windows {
		sessions, err := e.cal.TradingDays(w.ValidEnd, w.TestEnd)
		if err != nil {
			return nil, nil, fmt.Errorf("window %d test span: %w", i, err)
		}
		var dates []time.Time
		step := 0
		for _, s := range sessions {
			if !w.InTestSpan(s) {
				continue
			}
			if step%every == 0 {
				dates = append(dates, s)
			}
			step++
		}
		perWindow[i] = dates
		flat = append(flat, dates...)
	}
	if len(flat) == 0 {
		return nil, nil, contracts.InsufficientHistoryError{Need: 1, Have: 0}
	}
	return flat, perWindow, nil
}

func (e *Engine) periodsPerYear(rebalanceEvery int) float64 {
	return 252.0 / float64(rebalanceEvery)
}

// indexSource adapts the price store when it also serves index levels.
func (e *Engine) indexSource() overlay.IndexSource {
	if src, ok := e.prices.(overlay.IndexSource); ok {
		return src
	}
	return nil
}

// validateScores rejects score records dated outside the window's test
// span: out-of-span scores are a contract violation by the scorer, not a
// condition to silently tolerate.
func validateScores(scores contracts.ScoreSet, window contracts.WalkForwardWindow) error {
	for key := range scores {
		if !window.InTestSpan(key.Date) {
			return fmt.Errorf("scorer emitted %s/%s outside test span (%s]",
				key.Date.Format("2006-01-02"), key.Symbol, window.TestEnd.Format("2006-01-02"))
		}
	}
	return nil
}
