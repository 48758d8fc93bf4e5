package ports

import (
	"context"
	"time"

	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
)

// ResultStore persists scenario outcomes
type ResultStore interface {
	SaveOutcome(ctx context.Context, outcome *scenario.Outcome) error
	GetOutcome(ctx context.Context, runID core.RunID) (*scenario.Outcome, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]RunSummary, error)
}

// RunFilters for querying runs
type RunFilters struct {
	SuiteID  *core.SuiteID
	Scenario string
	Status   *verdict.Status
	Limit    int
	Offset   int
}

// RunSummary is the list view of a stored outcome
type RunSummary struct {
	RunID      core.RunID     `json:"run_id"`
	SuiteID    core.SuiteID   `json:"suite_id"`
	Scenario   string         `json:"scenario"`
	Kind       scenario.Kind  `json:"kind"`
	Status     verdict.Status `json:"status"`
	Trials     int            `json:"trials"`
	Violations int            `json:"violations"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}
