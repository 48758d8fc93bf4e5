package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	apperrors "epicalib/internal/errors"
	"epicalib/ports"
)

// ResultRepository implements ports.ResultStore on top of sqlx
type ResultRepository struct {
	db *sqlx.DB
}

var _ ports.ResultStore = (*ResultRepository)(nil)

// NewResultRepository creates a repository on a migrated database
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

type runRow struct {
	RunID      string    `db:"run_id"`
	SuiteID    string    `db:"suite_id"`
	Scenario   string    `db:"scenario"`
	Kind       string    `db:"kind"`
	Status     string    `db:"status"`
	Trials     int       `db:"trials"`
	Violations int       `db:"violations"`
	Error      string    `db:"error_message"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}

func (r runRow) summary() ports.RunSummary {
	return ports.RunSummary{
		RunID:      core.RunID(r.RunID),
		SuiteID:    core.SuiteID(r.SuiteID),
		Scenario:   r.Scenario,
		Kind:       scenario.Kind(r.Kind),
		Status:     verdict.Status(r.Status),
		Trials:     r.Trials,
		Violations: r.Violations,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// TrialRow is the per-trial line stored next to each run
type TrialRow struct {
	RunID              string  `db:"run_id" json:"run_id"`
	Index              int     `db:"trial_index" json:"index"`
	Fingerprint        string  `db:"fingerprint" json:"fingerprint"`
	Driver             float64 `db:"driver" json:"driver"`
	Statistic          float64 `db:"statistic" json:"statistic"`
	FinalTotalInfected float64 `db:"final_total_infected" json:"final_total_infected"`
	SeriesRows         int     `db:"series_rows" json:"series_rows"`
	Events             int     `db:"events" json:"events"`
	DurationMillis     int64   `db:"duration_ms" json:"duration_ms"`
}

// SaveOutcome inserts or replaces an outcome and its trials
func (r *ResultRepository) SaveOutcome(ctx context.Context, outcome *scenario.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to encode outcome: %w", err))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO calibration_runs (
			run_id, suite_id, scenario, kind, status, trials, violations,
			error_message, outcome, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			trials = EXCLUDED.trials,
			violations = EXCLUDED.violations,
			error_message = EXCLUDED.error_message,
			outcome = EXCLUDED.outcome,
			finished_at = EXCLUDED.finished_at`),
		outcome.RunID.String(), outcome.SuiteID.String(), outcome.Scenario.Name, string(outcome.Scenario.Kind),
		string(outcome.Status), len(outcome.Trials), len(outcome.Violations),
		outcome.Error, string(payload), outcome.StartedAt.UTC(), outcome.FinishedAt.UTC())
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to save run %s: %w", outcome.RunID, err))
	}

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM calibration_trials WHERE run_id = ?`), outcome.RunID.String()); err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}
	for _, trial := range outcome.Trials {
		_, err := tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO calibration_trials (
				run_id, trial_index, fingerprint, driver, statistic,
				final_total_infected, series_rows, events, duration_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			outcome.RunID.String(), trial.Index, string(trial.Fingerprint), trial.Driver, trial.Statistic,
			trial.Statistics.FinalTotalInfected, trial.SeriesRows, trial.Events, trial.Duration.Milliseconds())
		if err != nil {
			return apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to save trial %d: %w", trial.Index, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}
	return nil
}

// GetOutcome loads the full outcome of a run
func (r *ResultRepository) GetOutcome(ctx context.Context, runID core.RunID) (*scenario.Outcome, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, r.db.Rebind(`SELECT outcome FROM calibration_runs WHERE run_id = ?`), runID.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(fmt.Sprintf("run %s", runID))
	}
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}

	var outcome scenario.Outcome
	if err := json.Unmarshal([]byte(payload), &outcome); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to decode run %s: %w", runID, err))
	}
	return &outcome, nil
}

// ListRuns returns run summaries, newest first
func (r *ResultRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]ports.RunSummary, error) {
	query := `
		SELECT run_id, suite_id, scenario, kind, status, trials, violations,
			   error_message, started_at, finished_at
		FROM calibration_runs`

	var (
		where []string
		args  []interface{}
	)
	if filters.SuiteID != nil {
		where = append(where, "suite_id = ?")
		args = append(args, filters.SuiteID.String())
	}
	if filters.Scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, filters.Scenario)
	}
	if filters.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filters.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, run_id DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to list runs: %w", err))
	}

	summaries := make([]ports.RunSummary, len(rows))
	for i, row := range rows {
		summaries[i] = row.summary()
	}
	return summaries, nil
}

// ListTrials returns the stored trial lines of a run in index order
func (r *ResultRepository) ListTrials(ctx context.Context, runID core.RunID) ([]TrialRow, error) {
	var trials []TrialRow
	err := r.db.SelectContext(ctx, &trials, r.db.Rebind(`
		SELECT run_id, trial_index, fingerprint, driver, statistic,
			   final_total_infected, series_rows, events, duration_ms
		FROM calibration_trials
		WHERE run_id = ?
		ORDER BY trial_index`), runID.String())
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}
	return trials, nil
}
