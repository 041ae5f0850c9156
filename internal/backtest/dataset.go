package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/calendar"
	"github.com/wonny/pitlab/internal/contracts"
)

// FeatureSource assembles scorer-facing feature rows for one window.
type FeatureSource interface {
	Rows(ctx context.Context, window contracts.WalkForwardWindow) ([]contracts.FeatureRow, error)
}

// SnapshotSource supplies persisted PIT snapshots.
type SnapshotSource interface {
	Dates(ctx context.Context, from, to time.Time) ([]time.Time, error)
	LoadDate(ctx context.Context, date time.Time) ([]contracts.PITSnapshot, error)
}

// DatasetBuilder turns PIT snapshots into feature rows with forward-return
// labels. Labels honor the window's label contract: the return for a row
// dated D starts LabelStartOffset sessions after D, so nothing realized at
// or before D leaks into it.
type DatasetBuilder struct {
	cal       *calendar.Service
	snapshots SnapshotSource
	prices    contracts.PriceSource
}

// NewDatasetBuilder wires a feature source over snapshots and prices.
func NewDatasetBuilder(cal *calendar.Service, snapshots SnapshotSource, prices contracts.PriceSource) *DatasetBuilder {
	return &DatasetBuilder{cal: cal, snapshots: snapshots, prices: prices}
}

// Rows implements FeatureSource. Train/validate rows whose label span would
// reach past ValidEnd are dropped: the embargo keeps test-span returns out
// of training labels.
func (b *DatasetBuilder) Rows(ctx context.Context, window contracts.WalkForwardWindow) ([]contracts.FeatureRow, error) {
	dates, err := b.snapshots.Dates(ctx, window.TrainStart, window.TestEnd)
	if err != nil {
		return nil, fmt.Errorf("snapshot dates: %w", err)
	}

	var rows []contracts.FeatureRow
	for _, date := range dates {
		snaps, err := b.snapshots.LoadDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", date.Format("2006-01-02"), err)
		}

		inTest := window.InTestSpan(date)
		for _, snap := range snaps {
			row := contracts.FeatureRow{
				Date:     contracts.NormalizeDate(date),
				Symbol:   snap.Symbol,
				Features: features(snap),
			}
			if inTest {
				rows = append(rows, row)
				continue
			}

			label, ok, err := b.label(ctx, snap.Symbol, date, window)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue // 라벨 불가 행은 학습에서 제외
			}
			row.Label = label
			row.HasLabel = true
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func features(snap contracts.PITSnapshot) map[string]float64 {
	out := make(map[string]float64, len(snap.Metrics)+2)
	for metric, value := range snap.Metrics {
		out[metric] = value
	}
	out["close"] = snap.Close
	if snap.PITMarketCap > 0 {
		out["pit_market_cap"] = snap.PITMarketCap
	}
	return out
}

// label returns the forward return over
// [date + offset, date + offset + horizon] sessions on adjusted closes.
func (b *DatasetBuilder) label(ctx context.Context, symbol string, date time.Time, window contracts.WalkForwardWindow) (float64, bool, error) {
	start, err := b.cal.SessionOffset(date, window.LabelStartOffset)
	if err != nil {
		return 0, false, nil // 캘린더 끝
	}
	end, err := b.cal.SessionOffset(date, window.LabelStartOffset+window.LabelHorizonDays)
	if err != nil {
		return 0, false, nil
	}
	// 엠바고: 라벨 구간이 검증 경계를 넘으면 테스트 수익률이 새어 들어감
	if end.After(window.ValidEnd) {
		return 0, false, nil
	}

	entry, err := b.adjClose(ctx, symbol, start)
	if err != nil {
		return 0, false, err
	}
	exit, err := b.adjClose(ctx, symbol, end)
	if err != nil {
		return 0, false, err
	}
	if entry == 0 || exit == 0 {
		return 0, false, nil
	}
	return exit/entry - 1, true, nil
}

func (b *DatasetBuilder) adjClose(ctx context.Context, symbol string, date time.Time) (float64, error) {
	bar, err := b.prices.BarOn(ctx, symbol, date)
	if err != nil {
		var missing contracts.MissingPriceError
		if errors.As(err, &missing) {
			return 0, nil
		}
		return 0, err
	}
	return bar.AdjClose, nil
}
