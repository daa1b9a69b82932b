package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = errors.New("run not found")

// Run statuses recorded in history.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one analysis run's history row. Result holds the serialized
// AnalysisResult for completed runs.
type Run struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"property_id"`
	PropertyName string          `json:"property_name"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       string          `json:"status"`
	URLCount     int             `json:"url_count"`
	ErrorCount   int             `json:"error_count"`
	ErrorDetail  string          `json:"error_detail,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RunRepo implements run history against PostgreSQL.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed run repository.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

// EnsureSchema creates the run history table if it does not exist.
func (r *RunRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id UUID PRIMARY KEY,
			property_id VARCHAR(64) NOT NULL,
			property_name VARCHAR(255) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			status VARCHAR(20) NOT NULL,
			url_count INT DEFAULT 0,
			error_count INT DEFAULT 0,
			error_detail TEXT,
			result JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_analysis_runs_property
		ON analysis_runs (property_id, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema index: %w", err)
	}
	return nil
}

// Create inserts a run row.
func (r *RunRepo) Create(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs
			(id, property_id, property_name, start_date, end_date,
			 status, url_count, error_count, error_detail, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, run.ID, run.PropertyID, run.PropertyName, run.StartDate, run.EndDate,
		run.Status, run.URLCount, run.ErrorCount, run.ErrorDetail, []byte(run.Result))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get fetches one run by ID.
func (r *RunRepo) Get(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var result []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, property_id, property_name, start_date, end_date,
		       status, url_count, error_count, COALESCE(error_detail,''),
		       COALESCE(result,'null'), created_at
		FROM analysis_runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &run.PropertyID, &run.PropertyName, &run.StartDate, &run.EndDate,
		&run.Status, &run.URLCount, &run.ErrorCount, &run.ErrorDetail,
		&result, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Result = json.RawMessage(result)
	return run, nil
}

// List returns the most recent runs for a property, newest first.
func (r *RunRepo) List(ctx context.Context, propertyID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, property_id, property_name, start_date, end_date,
		       status, url_count, error_count, COALESCE(error_detail,''), created_at
		FROM analysis_runs
		WHERE property_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.PropertyID, &run.PropertyName, &run.StartDate, &run.EndDate,
			&run.Status, &run.URLCount, &run.ErrorCount, &run.ErrorDetail, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
