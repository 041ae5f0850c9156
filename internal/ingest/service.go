package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/external/dart"
	"github.com/wonny/pitlab/internal/external/krx"
	"github.com/wonny/pitlab/internal/external/naver"
	"github.com/wonny/pitlab/pkg/logger"
)

// FactSink persists fundamental facts append-only.
type FactSink interface {
	Save(ctx context.Context, fact contracts.FundamentalFact) error
}

// BarSink persists daily bars and index levels.
type BarSink interface {
	SaveBar(ctx context.Context, bar contracts.PriceBar) error
	SaveIndexLevel(ctx context.Context, name string, date time.Time, level float64) error
}

// Service routes collected vendor records into the data layer.
// ⭐ SSOT: 수집 → 저장 오케스트레이션은 여기서만
type Service struct {
	prices     *Collector // naver
	financials *Collector // dart
	marketCaps *Collector // krx
	facts      FactSink
	bars       BarSink
	logger     *logger.Logger
}

// NewService wires the per-vendor collectors to the sinks.
func NewService(prices, financials, marketCaps *Collector, facts FactSink, bars BarSink, log *logger.Logger) *Service {
	return &Service{
		prices:     prices,
		financials: financials,
		marketCaps: marketCaps,
		facts:      facts,
		bars:       bars,
		logger:     log,
	}
}

// IngestPrices collects daily bars for the symbols and persists them.
// Returns the number of bars written.
func (s *Service) IngestPrices(ctx context.Context, symbols []string, window contracts.DateRange) (int, error) {
	batch, err := s.prices.Collect(ctx, symbols, naver.EndpointDailyPrice, window)
	if err != nil {
		return 0, fmt.Errorf("collect prices: %w", err)
	}

	bars, err := naver.ParseBars(batch.Records)
	if err != nil {
		return 0, fmt.Errorf("parse bars: %w", err)
	}

	saved := 0
	for _, bar := range bars {
		if err := s.bars.SaveBar(ctx, bar); err != nil {
			return saved, fmt.Errorf("save bar %s/%s: %w", bar.Symbol, bar.Date.Format("2006-01-02"), err)
		}
		saved++
	}

	s.logFailures("prices", batch.Failures)
	return saved, nil
}

// IngestIndexLevels collects market index closes and persists them.
func (s *Service) IngestIndexLevels(ctx context.Context, indexes []string, window contracts.DateRange) (int, error) {
	batch, err := s.prices.Collect(ctx, indexes, naver.EndpointIndexLevel, window)
	if err != nil {
		return 0, fmt.Errorf("collect index levels: %w", err)
	}

	levels, err := naver.ParseIndexLevels(batch.Records)
	if err != nil {
		return 0, fmt.Errorf("parse index levels: %w", err)
	}

	saved := 0
	for _, lv := range levels {
		if err := s.bars.SaveIndexLevel(ctx, lv.Index, lv.Date, lv.Level); err != nil {
			return saved, fmt.Errorf("save index level %s/%s: %w", lv.Index, lv.Date.Format("2006-01-02"), err)
		}
		saved++
	}

	s.logFailures("index_levels", batch.Failures)
	return saved, nil
}

// IngestFinancials collects statement facts for the symbols and appends
// them. Sequence numbers are assigned by the fact store, so zero goes in
// here.
func (s *Service) IngestFinancials(ctx context.Context, symbols []string, window contracts.DateRange) (int, error) {
	batch, err := s.financials.Collect(ctx, symbols, dart.EndpointFinancials, window)
	if err != nil {
		return 0, fmt.Errorf("collect financials: %w", err)
	}

	facts, err := dart.ParseFacts(batch.Records, 0)
	if err != nil {
		return 0, fmt.Errorf("parse financial facts: %w", err)
	}

	saved, err := s.saveFacts(ctx, facts)
	if err != nil {
		return saved, err
	}
	s.logFailures("financials", batch.Failures)
	return saved, nil
}

// IngestSharesOutstanding collects whole-market listings and appends
// shares-outstanding facts. markets are KOSPI/KOSDAQ.
func (s *Service) IngestSharesOutstanding(ctx context.Context, markets []string, window contracts.DateRange) (int, error) {
	batch, err := s.marketCaps.Collect(ctx, markets, krx.EndpointMarketCap, window)
	if err != nil {
		return 0, fmt.Errorf("collect market caps: %w", err)
	}

	facts, err := krx.ParseSharesFacts(batch.Records, 0)
	if err != nil {
		return 0, fmt.Errorf("parse shares facts: %w", err)
	}

	saved, err := s.saveFacts(ctx, facts)
	if err != nil {
		return saved, err
	}
	s.logFailures("market_caps", batch.Failures)
	return saved, nil
}

func (s *Service) saveFacts(ctx context.Context, facts []contracts.FundamentalFact) (int, error) {
	saved := 0
	for _, fact := range facts {
		if err := s.facts.Save(ctx, fact); err != nil {
			return saved, fmt.Errorf("save fact %s/%s: %w", fact.Symbol, fact.Metric, err)
		}
		saved++
	}
	return saved, nil
}

func (s *Service) logFailures(stage string, failures map[string]error) {
	for symbol, err := range failures {
		s.logger.WithFields(map[string]interface{}{
			"stage":  stage,
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("Ingestion skipped symbol")
	}
}
