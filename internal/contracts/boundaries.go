package contracts

import (
	"context"
	"time"
)

// =============================================================================
// External Collaborator Boundaries
// =============================================================================
// 코어는 스코어러/체결 시뮬레이터를 이 인터페이스로만 바라봄.
// 구현체(GBM 랭킹 모델, 비용 시뮬레이터)는 저장소 밖 협력자.

// FeatureRow is one (date, symbol) row handed to a scorer: PIT features plus,
// for train/validate dates, the realized forward label.
type FeatureRow struct {
	Date     time.Time          `json:"date"`
	Symbol   string             `json:"symbol"`
	Features map[string]float64 `json:"features"`
	Label    float64            `json:"label"`
	HasLabel bool               `json:"has_label"` // false on test-span rows
}

// Scorer consumes train/validate features+labels for one window and returns
// scores keyed by (date, symbol) restricted to that window's test span.
type Scorer interface {
	Score(ctx context.Context, window WalkForwardWindow, rows []FeatureRow) (ScoreSet, error)
}

// PeriodResult is the execution boundary's ground truth for one rebalance
// period: realized simple return and resulting equity.
type PeriodResult struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
	Equity float64   `json:"equity"`
}

// ExecutionSimulator consumes target weights for one rebalance date and
// returns the realized result once the period completes. RiskState updates
// consume this result, never the other way around.
type ExecutionSimulator interface {
	Execute(ctx context.Context, weights PortfolioWeights) (PeriodResult, error)
}

// =============================================================================
// Ingestion Boundary
// =============================================================================

// RawRecord is one unparsed vendor record.
type RawRecord struct {
	Symbol   string            `json:"symbol"`
	Endpoint string            `json:"endpoint"`
	Payload  map[string]string `json:"payload"`
}

// Fetcher is the data-vendor boundary. Implementations return
// ErrRateLimited / ErrNotFound; the collector owns retry and caching.
type Fetcher interface {
	Fetch(ctx context.Context, symbol, endpoint string, window DateRange) ([]RawRecord, error)
}

// =============================================================================
// Repository Interfaces (의존성 역전)
// =============================================================================

// PriceSource supplies finalized daily bars.
type PriceSource interface {
	BarOn(ctx context.Context, symbol string, date time.Time) (*PriceBar, error)
	ClosesUpTo(ctx context.Context, symbol string, date time.Time, n int) ([]float64, error)
}

// FactSource supplies as-of fundamental lookups.
type FactSource interface {
	// AsOf returns, per metric, the latest fact with available_date <= date.
	AsOf(ctx context.Context, symbol string, date time.Time) (map[string]FundamentalFact, error)
	// Version returns the max ingest sequence visible at call time.
	Version(ctx context.Context) (int64, error)
}

// SnapshotSink persists built snapshots write-once per
// (snapshot_date, symbol, ingest_version).
type SnapshotSink interface {
	SaveBatch(ctx context.Context, rows []PITSnapshot) error
}
