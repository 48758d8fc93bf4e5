package migration

import (
	"context"
	"fmt"

	"epicalib/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations for the result store.
// The DDL is shared between PostgreSQL and SQLite except for the timestamp
// column type.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createCalibrationRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create calibration_runs table")
	}

	if err := r.createCalibrationTrialsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create calibration_trials table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// timestampType is a column type both drivers map to time.Time
func timestampType(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return "TIMESTAMP WITH TIME ZONE"
	}
	return "TIMESTAMP"
}

func (r *MigrationRunner) createCalibrationRunsTable(ctx context.Context, db *sqlx.DB) error {
	ts := timestampType(db)
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS calibration_runs (
			run_id VARCHAR(64) PRIMARY KEY,
			suite_id VARCHAR(64) NOT NULL DEFAULT '',
			scenario VARCHAR(255) NOT NULL,
			kind VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			trials INTEGER NOT NULL DEFAULT 0,
			violations INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			started_at %[1]s NOT NULL,
			finished_at %[1]s NOT NULL
		)
	`, ts))
	return err
}

func (r *MigrationRunner) createCalibrationTrialsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS calibration_trials (
			run_id VARCHAR(64) NOT NULL REFERENCES calibration_runs(run_id) ON DELETE CASCADE,
			trial_index INTEGER NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			driver DOUBLE PRECISION NOT NULL,
			statistic DOUBLE PRECISION NOT NULL,
			final_total_infected DOUBLE PRECISION NOT NULL,
			series_rows INTEGER NOT NULL,
			events INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			PRIMARY KEY (run_id, trial_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_suite_id ON calibration_runs(suite_id)",
		"CREATE INDEX IF NOT EXISTS idx_runs_scenario ON calibration_runs(scenario)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON calibration_runs(status)",
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON calibration_runs(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_trials_fingerprint ON calibration_trials(fingerprint)",
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return err
		}
	}
	return nil
}
