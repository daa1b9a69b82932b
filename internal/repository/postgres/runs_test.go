package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*RunRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunRepo(db), mock
}

func sampleRun() *Run {
	return &Run{
		ID:           "run-1",
		PropertyID:   "prop-1",
		PropertyName: "Example Site",
		StartDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:       RunStatusCompleted,
		URLCount:     5,
		ErrorCount:   1,
		Result:       json.RawMessage(`{"property_id":"prop-1"}`),
	}
}

func TestRunRepoEnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analysis_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_analysis_runs_property`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	mock.ExpectExec(`INSERT INTO analysis_runs`).
		WithArgs(run.ID, run.PropertyID, run.PropertyName, run.StartDate, run.EndDate,
			run.Status, run.URLCount, run.ErrorCount, run.ErrorDetail, []byte(run.Result)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()
	created := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM analysis_runs`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "property_id", "property_name", "start_date", "end_date",
			"status", "url_count", "error_count", "error_detail", "result", "created_at",
		}).AddRow(
			run.ID, run.PropertyID, run.PropertyName, run.StartDate, run.EndDate,
			run.Status, run.URLCount, run.ErrorCount, "", []byte(run.Result), created,
		))

	got, err := repo.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Status, got.Status)
	assert.JSONEq(t, string(run.Result), string(got.Result))
	assert.Equal(t, created, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM analysis_runs`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunRepoList(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()
	created := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM analysis_runs`).
		WithArgs("prop-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "property_id", "property_name", "start_date", "end_date",
			"status", "url_count", "error_count", "error_detail", "created_at",
		}).AddRow(
			run.ID, run.PropertyID, run.PropertyName, run.StartDate, run.EndDate,
			run.Status, run.URLCount, run.ErrorCount, "", created,
		))

	runs, err := repo.List(context.Background(), "prop-1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
