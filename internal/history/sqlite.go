package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
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
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	query := `INSERT OR REPLACE INTO audit_runs
		(id, public_app_id, stage, components, status_url, outcome, policy_action, report_url, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.PublicAppID, run.Stage, run.Components, run.StatusURL, run.Outcome,
		run.PolicyAction, run.ReportURL, run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the newest runs first. An empty publicAppID matches all.
func (s *SQLiteStore) RecentRuns(ctx context.Context, publicAppID string, limit int) ([]Run, error) {
	query := `SELECT id, public_app_id, stage, components, status_url, outcome, policy_action, report_url, error, started_at, finished_at
		FROM audit_runs
		WHERE (? = '' OR public_app_id = ?)
		ORDER BY started_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, publicAppID, publicAppID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.PublicAppID, &r.Stage, &r.Components, &r.StatusURL, &r.Outcome,
			&r.PolicyAction, &r.ReportURL, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
