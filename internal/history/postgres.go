package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and applies migrations
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS audit_runs (
			id TEXT PRIMARY KEY,
			public_app_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			components INTEGER NOT NULL DEFAULT 0,
			status_url TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			policy_action TEXT NOT NULL DEFAULT '',
			report_url TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_runs_app ON audit_runs(public_app_id, started_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveRun upserts a run.
func (s *PostgresStore) SaveRun(ctx context.Context, run Run) error {
	query := `INSERT INTO audit_runs
		(id, public_app_id, stage, components, status_url, outcome, policy_action, report_url, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status_url = EXCLUDED.status_url,
			outcome = EXCLUDED.outcome,
			policy_action = EXCLUDED.policy_action,
			report_url = EXCLUDED.report_url,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.PublicAppID, run.Stage, run.Components, run.StatusURL, run.Outcome,
		run.PolicyAction, run.ReportURL, run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the newest runs first. An empty publicAppID matches all.
func (s *PostgresStore) RecentRuns(ctx context.Context, publicAppID string, limit int) ([]Run, error) {
	query := `SELECT id, public_app_id, stage, components, status_url, outcome, policy_action, report_url, error, started_at, finished_at
		FROM audit_runs
		WHERE ($1 = '' OR public_app_id = $1)
		ORDER BY started_at DESC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, publicAppID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}
