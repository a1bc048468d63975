package history

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockStore(t *testing.T, fn func(*PostgresStore, sqlmock.Sqlmock)) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := &PostgresStore{db: db}
	fn(store, mock)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

var runColumns = []string{
	"id", "public_app_id", "stage", "components", "status_url", "outcome",
	"policy_action", "report_url", "error", "started_at", "finished_at",
}

func TestPostgresStore_Migrate(t *testing.T) {
	withMockStore(t, func(store *PostgresStore, mock sqlmock.Sqlmock) {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_runs")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_audit_runs_app")).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, store.migrate())
	})
}

func TestPostgresStore_SaveRun(t *testing.T) {
	run := NewRun("testapp", "build", 4)
	run.Outcome = OutcomeDone
	run.PolicyAction = "None"
	run.FinishedAt = run.StartedAt.Add(time.Second)

	withMockStore(t, func(store *PostgresStore, mock sqlmock.Sqlmock) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_runs")).
			WithArgs(run.ID, "testapp", "build", 4, "", OutcomeDone, "None", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.SaveRun(context.Background(), run))
	})

	withMockStore(t, func(store *PostgresStore, mock sqlmock.Sqlmock) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_runs")).WillReturnError(errors.New("connection lost"))

		err := store.SaveRun(context.Background(), run)
		require.Error(t, err)
		assert.Contains(t, err.Error(), run.ID)
	})
}

func TestPostgresStore_RecentRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	withMockStore(t, func(store *PostgresStore, mock sqlmock.Sqlmock) {
		rows := sqlmock.NewRows(runColumns).
			AddRow("run-2", "testapp", "build", 1, "api/v2/status/2", "timeout", "", "", "timed out", started.Add(time.Hour), started.Add(2*time.Hour)).
			AddRow("run-1", "testapp", "build", 1, "api/v2/status/1", OutcomeDone, "Failure", "http://iq/report/1", "", started, started.Add(time.Minute))

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, public_app_id")).
			WithArgs("testapp", 5).
			WillReturnRows(rows)

		runs, err := store.RecentRuns(context.Background(), "testapp", 5)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)
		assert.Equal(t, "Failure", runs[1].PolicyAction)
		assert.Equal(t, started, runs[1].StartedAt)
	})

	withMockStore(t, func(store *PostgresStore, mock sqlmock.Sqlmock) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, public_app_id")).WillReturnError(errors.New("boom"))

		_, err := store.RecentRuns(context.Background(), "", 5)
		assert.Error(t, err)
	})
}
