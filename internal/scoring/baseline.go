// Package scoring holds the built-in baseline scorer. Production models
// plug in through contracts.Scorer; this one exists so the pipeline runs
// end to end without an external model and gives sweeps a sane reference.
package scoring

import (
	"context"
	"math"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

// BaselineScorer ranks stocks cross-sectionally by earnings yield.
// ⭐ SSOT: 기본 가치 스코어 계산은 여기서만
type BaselineScorer struct {
	logger *logger.Logger
}

// NewBaselineScorer creates the baseline scorer.
func NewBaselineScorer(log *logger.Logger) *BaselineScorer {
	return &BaselineScorer{logger: log}
}

// Score implements contracts.Scorer. Labeled train/valid rows are ignored:
// the baseline has nothing to fit. For each test-span date it z-scores
// earnings yield across the date's symbols, so scores are comparable
// within a date but never across dates.
func (s *BaselineScorer) Score(_ context.Context, window contracts.WalkForwardWindow, rows []contracts.FeatureRow) (contracts.ScoreSet, error) {
	// 날짜별 단면 수집
	byDate := make(map[contracts.DateSymbol]float64)
	dates := make(map[string][]contracts.DateSymbol)

	for _, row := range rows {
		if row.HasLabel {
			continue // train/valid 행
		}
		yield, ok := earningsYield(row)
		if !ok {
			continue
		}
		key := contracts.DateSymbol{Date: contracts.NormalizeDate(row.Date), Symbol: row.Symbol}
		byDate[key] = yield
		dk := key.Date.Format("20060102")
		dates[dk] = append(dates[dk], key)
	}

	scores := make(contracts.ScoreSet, len(byDate))
	for _, keys := range dates {
		zscoreInto(scores, byDate, keys)
	}

	s.logger.WithFields(map[string]interface{}{
		"window": window.String(),
		"scored": len(scores),
	}).Debug("Baseline scores computed")
	return scores, nil
}

// earningsYield = net income / market cap. Market cap falls back to
// shares x close when the snapshot did not carry it precomputed.
func earningsYield(row contracts.FeatureRow) (float64, bool) {
	netIncome, ok := row.Features[contracts.MetricNetIncomeTTM]
	if !ok {
		return 0, false
	}

	marketCap, ok := row.Features["pit_market_cap"]
	if !ok {
		shares, haveShares := row.Features[contracts.MetricSharesOutstanding]
		close, haveClose := row.Features["close"]
		if !haveShares || !haveClose {
			return 0, false
		}
		marketCap = shares * close
	}
	if marketCap <= 0 {
		return 0, false
	}
	return netIncome / marketCap, true
}

// zscoreInto writes the cross-sectional z-scores of one date into dst.
// A single-symbol date scores 0: no cross-section to rank against.
func zscoreInto(dst contracts.ScoreSet, values map[contracts.DateSymbol]float64, keys []contracts.DateSymbol) {
	n := float64(len(keys))
	if n < 2 {
		for _, k := range keys {
			dst[k] = 0
		}
		return
	}

	var sum float64
	for _, k := range keys {
		sum += values[k]
	}
	mean := sum / n

	var ss float64
	for _, k := range keys {
		d := values[k] - mean
		ss += d * d
	}
	std := math.Sqrt(ss / (n - 1))
	if std == 0 {
		for _, k := range keys {
			dst[k] = 0
		}
		return
	}

	for _, k := range keys {
		dst[k] = (values[k] - mean) / std
	}
}
