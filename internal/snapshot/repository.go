package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pitlab/internal/contracts"
)

// Repository persists snapshot rows write-once per
// (snapshot_date, symbol, ingest_version).
// ⭐ SSOT: 스냅샷 영속화는 여기서만 - 재작성 금지, 새 버전만 추가
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a snapshot repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveBatch writes one batch. DO NOTHING on conflict: an already-persisted
// (date, symbol, version) row is never overwritten, so a restated fact can
// only surface under a new ingest version, never rewrite history.
func (r *Repository) SaveBatch(ctx context.Context, rows []contracts.PITSnapshot) error {
	query := `
		INSERT INTO data.pit_snapshots
			(snapshot_date, symbol, metrics, close_price, pit_market_cap, ingest_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (snapshot_date, symbol, ingest_version) DO NOTHING
	`

	for _, row := range rows {
		// encoding/json sorts map keys: 직렬화 바이트까지 결정적
		metricsJSON, err := json.Marshal(row.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics %s: %w", row.Symbol, err)
		}
		if _, err := r.pool.Exec(ctx, query,
			row.SnapshotDate, row.Symbol, metricsJSON,
			row.Close, row.PITMarketCap, row.IngestVersion,
		); err != nil {
			return fmt.Errorf("save snapshot %s/%s: %w",
				row.Symbol, row.SnapshotDate.Format("2006-01-02"), err)
		}
	}
	return nil
}

// LoadDate reads the newest-version rows for one snapshot date, sorted by
// symbol for deterministic consumption.
func (r *Repository) LoadDate(ctx context.Context, date time.Time) ([]contracts.PITSnapshot, error) {
	query := `
		SELECT DISTINCT ON (symbol)
			snapshot_date, symbol, metrics, close_price, pit_market_cap, ingest_version
		FROM data.pit_snapshots
		WHERE snapshot_date = $1
		ORDER BY symbol, ingest_version DESC
	`

	rows, err := r.pool.Query(ctx, query, contracts.NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []contracts.PITSnapshot
	for rows.Next() {
		var row contracts.PITSnapshot
		var metricsJSON []byte
		if err := rows.Scan(&row.SnapshotDate, &row.Symbol, &metricsJSON,
			&row.Close, &row.PITMarketCap, &row.IngestVersion); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(metricsJSON, &row.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics %s: %w", row.Symbol, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Dates returns the distinct snapshot dates in [from, to], ascending.
func (r *Repository) Dates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT snapshot_date
		FROM data.pit_snapshots
		WHERE snapshot_date BETWEEN $1 AND $2
		ORDER BY snapshot_date
	`

	rows, err := r.pool.Query(ctx, query,
		contracts.NormalizeDate(from), contracts.NormalizeDate(to))
	if err != nil {
		return nil, fmt.Errorf("query snapshot dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan snapshot date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ErrNoSnapshots is returned when no snapshot has ever been persisted.
var ErrNoSnapshots = errors.New("no snapshots persisted")

// LatestDate returns the most recent persisted snapshot date.
func (r *Repository) LatestDate(ctx context.Context) (time.Time, error) {
	// 빈 테이블이면 MAX는 NULL
	var d *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(snapshot_date) FROM data.pit_snapshots`).Scan(&d)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest snapshot date: %w", err)
	}
	if d == nil {
		return time.Time{}, ErrNoSnapshots
	}
	return *d, nil
}
