package fundamentals

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pitlab/internal/contracts"
)

// Repository persists fundamental facts append-only.
// ⭐ SSOT: 팩트 영속화는 여기서만 - UPDATE 문 금지
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a fundamentals repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save appends one fact version. The unique index on
// (symbol, metric, period_end, available_date, reported_date) makes repeated
// ingestion of the same fact a no-op, which keeps ingestion idempotent.
func (r *Repository) Save(ctx context.Context, fact contracts.FundamentalFact) error {
	query := `
		INSERT INTO data.fundamental_facts
			(symbol, metric, value, period_end, reported_date, available_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, metric, period_end, available_date, reported_date) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		fact.Symbol, fact.Metric, fact.Value,
		fact.PeriodEnd, fact.ReportedDate, fact.AvailableDate,
	)
	if err != nil {
		return fmt.Errorf("save fact %s/%s: %w", fact.Symbol, fact.Metric, err)
	}
	return nil
}

// LoadAll streams every stored fact version into a fresh Store, in ingest
// order so sequence numbers are reproducible.
func (r *Repository) LoadAll(ctx context.Context) (*Store, error) {
	query := `
		SELECT symbol, metric, value, period_end, reported_date, available_date
		FROM data.fundamental_facts
		ORDER BY ingest_seq ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	store := NewStore()
	for rows.Next() {
		var f contracts.FundamentalFact
		if err := rows.Scan(&f.Symbol, &f.Metric, &f.Value, &f.PeriodEnd, &f.ReportedDate, &f.AvailableDate); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if _, err := store.Append(f); err != nil {
			return nil, fmt.Errorf("append fact: %w", err)
		}
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate facts: %w", rows.Err())
	}
	return store, nil
}
