package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pitlab/internal/contracts"
)

// Repository loads immutable calendar and lifecycle data from PostgreSQL.
// ⭐ SSOT: 캘린더/종목 수명주기 조회 SQL은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a calendar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadService reads all sessions and lifecycle entries and builds a Service.
func (r *Repository) LoadService(ctx context.Context) (*Service, error) {
	sessions, err := r.loadSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	entries, err := r.loadLifecycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("load lifecycle: %w", err)
	}

	return NewService(sessions, entries)
}

func (r *Repository) loadSessions(ctx context.Context) ([]time.Time, error) {
	query := `
		SELECT session_date
		FROM data.trading_days
		ORDER BY session_date ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, d)
	}
	return sessions, rows.Err()
}

func (r *Repository) loadLifecycle(ctx context.Context) ([]contracts.SymbolLifecycleEntry, error) {
	query := `
		SELECT symbol, listing_date, delisting_date, COALESCE(renamed_to, '')
		FROM data.symbol_lifecycle
		ORDER BY symbol, listing_date
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle: %w", err)
	}
	defer rows.Close()

	var entries []contracts.SymbolLifecycleEntry
	for rows.Next() {
		var e contracts.SymbolLifecycleEntry
		if err := rows.Scan(&e.Symbol, &e.ListingDate, &e.DelistingDate, &e.RenamedTo); err != nil {
			return nil, fmt.Errorf("scan lifecycle: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveSessions appends new trading days. Published days are immutable, so
// conflicts are ignored rather than updated.
func (r *Repository) SaveSessions(ctx context.Context, sessions []time.Time) error {
	query := `
		INSERT INTO data.trading_days (session_date)
		VALUES ($1)
		ON CONFLICT (session_date) DO NOTHING
	`

	for _, s := range sessions {
		if _, err := r.pool.Exec(ctx, query, contracts.NormalizeDate(s)); err != nil {
			return fmt.Errorf("save session %s: %w", s.Format("2006-01-02"), err)
		}
	}
	return nil
}
