package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
)

// Builder performs the point-in-time as-of join.
// ⭐ SSOT: 스냅샷 생성은 여기서만
//
// Determinism contract: against an unchanged fact/price store, repeated
// builds yield identical rows in identical order (symbols sorted, ingest
// version pinned). This is what makes backtests comparable across runs.
type Builder struct {
	facts  contracts.FactSource
	prices contracts.PriceSource
	logger *logger.Logger
}

// Result is one snapshot batch. Per-symbol price faults are isolated in
// Skipped; they never abort the batch.
type Result struct {
	SnapshotDate  time.Time
	IngestVersion int64
	Rows          []contracts.PITSnapshot
	Skipped       []contracts.MissingPriceError
}

// NewBuilder creates a snapshot builder.
func NewBuilder(facts contracts.FactSource, prices contracts.PriceSource, log *logger.Logger) *Builder {
	return &Builder{facts: facts, prices: prices, logger: log}
}

// Build produces one PIT row per eligible symbol for the snapshot date.
// Every field on a row derives only from data available on or before the
// snapshot date; that filtering happens inside the fact store's as-of index,
// this function never sees future facts.
func (b *Builder) Build(ctx context.Context, snapshotDate time.Time, universe []string) (*Result, error) {
	day := contracts.NormalizeDate(snapshotDate)

	version, err := b.facts.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("fact store version: %w", err)
	}

	// 결정성: 유니버스 순서에 의존하지 않도록 정렬된 복사본 사용
	symbols := make([]string, len(universe))
	copy(symbols, universe)
	sort.Strings(symbols)

	result := &Result{
		SnapshotDate:  day,
		IngestVersion: version,
		Rows:          make([]contracts.PITSnapshot, 0, len(symbols)),
	}

	for _, symbol := range symbols {
		row, err := b.buildRow(ctx, day, symbol, version)
		if err != nil {
			var missing contracts.MissingPriceError
			if errors.As(err, &missing) {
				// 종목 단위 결함: 스킵하고 배치 계속
				result.Skipped = append(result.Skipped, missing)
				b.logger.WithFields(map[string]interface{}{
					"symbol": missing.Symbol,
					"date":   day.Format("2006-01-02"),
				}).Warn("No price bar for snapshot date, symbol skipped")
				continue
			}
			return nil, fmt.Errorf("build row %s: %w", symbol, err)
		}
		result.Rows = append(result.Rows, row)
	}

	b.logger.WithFields(map[string]interface{}{
		"date":           day.Format("2006-01-02"),
		"rows":           len(result.Rows),
		"skipped":        len(result.Skipped),
		"ingest_version": version,
	}).Info("PIT snapshot built")

	return result, nil
}

func (b *Builder) buildRow(ctx context.Context, day time.Time, symbol string, version int64) (contracts.PITSnapshot, error) {
	bar, err := b.prices.BarOn(ctx, symbol, day)
	if err != nil {
		return contracts.PITSnapshot{}, err
	}

	facts, err := b.facts.AsOf(ctx, symbol, day)
	if err != nil {
		return contracts.PITSnapshot{}, fmt.Errorf("as-of facts: %w", err)
	}

	row := contracts.PITSnapshot{
		SnapshotDate:  day,
		Symbol:        symbol,
		Metrics:       make(map[string]float64, len(facts)),
		Close:         bar.Close,
		IngestVersion: version,
	}
	for metric, fact := range facts {
		row.Metrics[metric] = fact.Value
	}

	// pit_market_cap: 주식수 팩트가 없으면 0이 아니라 미산출로 남김
	if shares, ok := row.Metrics[contracts.MetricSharesOutstanding]; ok {
		row.PITMarketCap = shares * bar.Close
	}

	return row, nil
}
