package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists run results: the run summary, the equity curve, and
// the weight history. Writes are idempotent per (run_id, date) so an aborted
// run can be retried and resume past what already landed.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a backtest repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun upserts the run header plus every completed period.
func (r *Repository) SaveRun(ctx context.Context, result *Result) error {
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO backtest.runs (run_id, config, summary, windows, last_completed, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			last_completed = EXCLUDED.last_completed,
			duration_ms = EXCLUDED.duration_ms
	`, result.RunID, configJSON, summaryJSON, result.Windows,
		result.LastCompleted, result.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.RunID, err)
	}

	for i, period := range result.Curve {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO backtest.equity_points (run_id, period_date, period_return, equity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (run_id, period_date) DO NOTHING
		`, result.RunID, period.Date, period.Return, period.Equity); err != nil {
			return fmt.Errorf("save equity point %s: %w", period.Date.Format("2006-01-02"), err)
		}

		if i < len(result.WeightsHistory) {
			weightsJSON, err := json.Marshal(result.WeightsHistory[i].Weights)
			if err != nil {
				return fmt.Errorf("marshal weights %s: %w", period.Date.Format("2006-01-02"), err)
			}
			if _, err := r.pool.Exec(ctx, `
				INSERT INTO backtest.weight_history (run_id, rebalance_date, weights)
				VALUES ($1, $2, $3)
				ON CONFLICT (run_id, rebalance_date) DO NOTHING
			`, result.RunID, period.Date, weightsJSON); err != nil {
				return fmt.Errorf("save weights %s: %w", period.Date.Format("2006-01-02"), err)
			}
		}
	}
	return nil
}

// RunMeta is the run-listing row for reporting.
type RunMeta struct {
	RunID         string    `json:"run_id"`
	Summary       Summary   `json:"summary"`
	Windows       int       `json:"windows"`
	LastCompleted time.Time `json:"last_completed"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListRuns returns recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, summary, windows, last_completed, created_at
		FROM backtest.runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunMeta
	for rows.Next() {
		var meta RunMeta
		var summaryJSON []byte
		if err := rows.Scan(&meta.RunID, &summaryJSON, &meta.Windows,
			&meta.LastCompleted, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(summaryJSON, &meta.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary %s: %w", meta.RunID, err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// LastCompleted returns the resume point of a persisted run, zero when the
// run is unknown.
func (r *Repository) LastCompleted(ctx context.Context, runID string) (time.Time, error) {
	var d *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(period_date) FROM backtest.equity_points WHERE run_id = $1
	`, runID).Scan(&d)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last completed %s: %w", runID, err)
	}
	if d == nil {
		return time.Time{}, nil
	}
	return *d, nil
}
