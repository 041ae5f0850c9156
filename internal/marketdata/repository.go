package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pitlab/internal/contracts"
)

// Repository persists daily bars and index levels.
// ⭐ SSOT: 가격/지수 SQL은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a market data repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveBar upserts one daily bar. The upsert only matters for the most
// recent session's intraday revisions; past bars never change upstream.
func (r *Repository) SaveBar(ctx context.Context, bar contracts.PriceBar) error {
	query := `
		INSERT INTO data.daily_bars (symbol, bar_date, close_price, adj_close, adj_factor)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, bar_date) DO UPDATE SET
			close_price = EXCLUDED.close_price,
			adj_close   = EXCLUDED.adj_close,
			adj_factor  = EXCLUDED.adj_factor
	`

	_, err := r.pool.Exec(ctx, query, bar.Symbol, bar.Date, bar.Close, bar.AdjClose, bar.AdjFactor)
	if err != nil {
		return fmt.Errorf("save bar %s/%s: %w", bar.Symbol, bar.Date.Format("2006-01-02"), err)
	}
	return nil
}

// SaveIndexLevel upserts one reference index close.
func (r *Repository) SaveIndexLevel(ctx context.Context, name string, date time.Time, level float64) error {
	query := `
		INSERT INTO data.index_levels (index_name, level_date, close_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (index_name, level_date) DO UPDATE SET close_level = EXCLUDED.close_level
	`

	_, err := r.pool.Exec(ctx, query, name, date, level)
	if err != nil {
		return fmt.Errorf("save index level %s/%s: %w", name, date.Format("2006-01-02"), err)
	}
	return nil
}

// LoadStore reads all bars and index levels into an in-memory Store.
func (r *Repository) LoadStore(ctx context.Context) (*Store, error) {
	store := NewStore()

	rows, err := r.pool.Query(ctx, `
		SELECT symbol, bar_date, close_price, adj_close, adj_factor
		FROM data.daily_bars
		ORDER BY symbol, bar_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bar contracts.PriceBar
		if err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Close, &bar.AdjClose, &bar.AdjFactor); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if err := store.AddBar(bar); err != nil {
			return nil, fmt.Errorf("load bar: %w", err)
		}
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate bars: %w", rows.Err())
	}

	idxRows, err := r.pool.Query(ctx, `
		SELECT index_name, level_date, close_level
		FROM data.index_levels
		ORDER BY index_name, level_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query index levels: %w", err)
	}
	defer idxRows.Close()

	for idxRows.Next() {
		var name string
		var d time.Time
		var level float64
		if err := idxRows.Scan(&name, &d, &level); err != nil {
			return nil, fmt.Errorf("scan index level: %w", err)
		}
		store.AddIndexLevel(name, d, level)
	}
	return store, idxRows.Err()
}
