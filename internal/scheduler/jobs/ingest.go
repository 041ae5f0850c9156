package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/ingest"
	"github.com/wonny/pitlab/pkg/logger"
)

// DailyIngestJob pulls the last few sessions of prices, index levels and
// market listings every evening after close.
// ⭐ SSOT: 일일 수집 스케줄은 이 Job에서만
type DailyIngestJob struct {
	service  *ingest.Service
	universe func() []string // 수집 대상 심볼
	indexes  []string
	markets  []string
	logger   *logger.Logger
}

// NewDailyIngestJob creates the daily ingest job.
func NewDailyIngestJob(service *ingest.Service, universe func() []string, indexes, markets []string, log *logger.Logger) *DailyIngestJob {
	return &DailyIngestJob{
		service:  service,
		universe: universe,
		indexes:  indexes,
		markets:  markets,
		logger:   log,
	}
}

func (j *DailyIngestJob) Name() string { return "daily_ingest" }

// Schedule runs every weekday at 6 PM KST, after the KRX close batch.
func (j *DailyIngestJob) Schedule() string { return "0 0 18 * * MON-FRI" }

func (j *DailyIngestJob) Run(ctx context.Context) error {
	now := time.Now()
	// 직전 배치 공백을 메우기 위해 5일치 재수집 (멱등)
	window := contracts.DateRange{From: now.AddDate(0, 0, -5), To: now}
	symbols := j.universe()

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"window":  window.Key(),
	}).Info("Starting daily ingest")

	bars, err := j.service.IngestPrices(ctx, symbols, window)
	if err != nil {
		return fmt.Errorf("ingest prices: %w", err)
	}

	levels, err := j.service.IngestIndexLevels(ctx, j.indexes, window)
	if err != nil {
		return fmt.Errorf("ingest index levels: %w", err)
	}

	shares, err := j.service.IngestSharesOutstanding(ctx, j.markets, window)
	if err != nil {
		return fmt.Errorf("ingest shares outstanding: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"bars":   bars,
		"levels": levels,
		"shares": shares,
	}).Info("Daily ingest completed")
	return nil
}

// FinancialsIngestJob refreshes DART statement facts weekly. Filings trickle
// in daily but the PIT store only needs them before the next snapshot build.
type FinancialsIngestJob struct {
	service  *ingest.Service
	universe func() []string
	logger   *logger.Logger
}

// NewFinancialsIngestJob creates the weekly financials job.
func NewFinancialsIngestJob(service *ingest.Service, universe func() []string, log *logger.Logger) *FinancialsIngestJob {
	return &FinancialsIngestJob{service: service, universe: universe, logger: log}
}

func (j *FinancialsIngestJob) Name() string { return "financials_ingest" }

// Schedule runs Saturday mornings, ahead of the weekend snapshot build.
func (j *FinancialsIngestJob) Schedule() string { return "0 0 6 * * SAT" }

func (j *FinancialsIngestJob) Run(ctx context.Context) error {
	now := time.Now()
	window := contracts.DateRange{From: now.AddDate(0, -3, 0), To: now}

	saved, err := j.service.IngestFinancials(ctx, j.universe(), window)
	if err != nil {
		return fmt.Errorf("ingest financials: %w", err)
	}
	j.logger.WithField("facts", saved).Info("Financials ingest completed")
	return nil
}
