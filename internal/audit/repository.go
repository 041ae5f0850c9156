package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pitlab/internal/runconfig"
)

// ErrDecisionNotFound is returned when no decision snapshot exists for a run.
var ErrDecisionNotFound = errors.New("decision snapshot not found")

// Repository persists decision snapshots.
// ⭐ SSOT: 재현성 감사 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveDecision stores the exact configuration and data version one run saw.
// Re-saving the same run overwrites: 최신 실행이 기준
func (r *Repository) SaveDecision(ctx context.Context, d *runconfig.DecisionSnapshot) error {
	query := `
		INSERT INTO audit.decision_snapshots (
			run_id, config_hash, config_yaml, ingest_version, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			config_hash = EXCLUDED.config_hash,
			config_yaml = EXCLUDED.config_yaml,
			ingest_version = EXCLUDED.ingest_version,
			created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query,
		d.RunID, d.ConfigHash, d.ConfigYAML, d.IngestVersion, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision snapshot: %w", err)
	}
	return nil
}

// GetDecision retrieves the decision snapshot for a run.
func (r *Repository) GetDecision(ctx context.Context, runID string) (*runconfig.DecisionSnapshot, error) {
	query := `
		SELECT run_id, config_hash, config_yaml, ingest_version, created_at
		FROM audit.decision_snapshots
		WHERE run_id = $1
	`

	var d runconfig.DecisionSnapshot
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&d.RunID, &d.ConfigHash, &d.ConfigYAML, &d.IngestVersion, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrDecisionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision snapshot: %w", err)
	}
	return &d, nil
}

// ListDecisions returns recent decision snapshots, newest first.
func (r *Repository) ListDecisions(ctx context.Context, limit int) ([]runconfig.DecisionSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT run_id, config_hash, config_yaml, ingest_version, created_at
		FROM audit.decision_snapshots
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision snapshots: %w", err)
	}
	defer rows.Close()

	var out []runconfig.DecisionSnapshot
	for rows.Next() {
		var d runconfig.DecisionSnapshot
		if err := rows.Scan(&d.RunID, &d.ConfigHash, &d.ConfigYAML, &d.IngestVersion, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision snapshot: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
