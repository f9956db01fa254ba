package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creative-pipeline/internal/config"
	"creative-pipeline/internal/pipeline"
)

// Store archives completed campaign reports. The pipeline itself never
// touches it; reports are persisted after a run reaches its terminal state.
type Store struct {
	pool *pgxpool.Pool
}

type RunRow struct {
	RunID        string
	Campaign     string
	StartedAt    time.Time
	DurationMs   int64
	Total        int
	Done         int
	SuccessRate  float64
	FallbackRate float64
	AvgScore     float64
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveReport writes the run summary and one row per work item in a single
// transaction.
func (s *Store) SaveReport(ctx context.Context, r *pipeline.Report) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO campaign_runs
			(run_id, campaign, started_at, duration_ms, total, done,
			 success_rate, fallback_rate, avg_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, r.RunID, r.Campaign, r.StartedAt, r.Duration.Milliseconds(),
		r.Summary.Total, r.Summary.Done,
		r.Summary.SuccessRate, r.Summary.FallbackRate, r.Summary.AvgScore)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for pos, it := range r.Items {
		var overall *float64
		if it.Score != nil {
			v := it.Score.Overall
			overall = &v
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO run_items
				(run_id, position, product_id, locale, ratio, state,
				 used_fallback, overall_score, output_ref, failure)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, r.RunID, pos, it.ProductID, string(it.Locale), it.Ratio, string(it.State),
			it.UsedFallback, overall, it.OutputRef(), it.Failure)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", pos, err)
		}
	}

	return tx.Commit(ctx)
}

// ListRuns returns the most recent run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, campaign, started_at, duration_ms, total, done,
		       success_rate, fallback_rate, avg_score
		FROM campaign_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Campaign, &r.StartedAt, &r.DurationMs,
			&r.Total, &r.Done, &r.SuccessRate, &r.FallbackRate, &r.AvgScore); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
