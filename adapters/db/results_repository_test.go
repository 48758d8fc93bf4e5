package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	apperrors "epicalib/internal/errors"
	"epicalib/ports"
)

func newRepository(t *testing.T) *ResultRepository {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResultRepository(db)
}

func sampleOutcome(suite core.SuiteID, name string, status verdict.Status, started time.Time) *scenario.Outcome {
	o := &scenario.Outcome{
		RunID:   core.NewRunID(),
		SuiteID: suite,
		Scenario: scenario.Scenario{
			Name:  name,
			Kind:  scenario.KindMonotone,
			Sweep: map[string][]float64{"relative_transmission_household": {0, 1, 2}},
		},
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
	for i := 0; i < 3; i++ {
		o.Trials = append(o.Trials, scenario.TrialRecord{
			Index:       i,
			Parameters:  map[string]string{"relative_transmission_household": "1"},
			Fingerprint: core.ParameterHash("abc"),
			Driver:      float64(i),
			Statistic:   0.1 * float64(i+1),
			Duration:    150 * time.Millisecond,
		})
	}
	if status == verdict.StatusFailed {
		o.Violations = []verdict.Violation{{Reason: verdict.ReasonWrongDirection, FromIndex: 1, ToIndex: 2, Group: -1}}
		o.Error = "1 of 2 checks failed"
	}
	return o
}

func TestSaveAndGetOutcome(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	outcome := sampleOutcome(core.NewSuiteID(), "monotone_transmission_household", verdict.StatusFailed, started)
	require.NoError(t, repo.SaveOutcome(ctx, outcome))

	got, err := repo.GetOutcome(ctx, outcome.RunID)
	require.NoError(t, err)
	assert.Equal(t, outcome.Scenario.Name, got.Scenario.Name)
	assert.Equal(t, verdict.StatusFailed, got.Status)
	assert.Len(t, got.Trials, 3)
	assert.Equal(t, outcome.Violations, got.Violations)
	assert.True(t, started.Equal(got.StartedAt))

	trials, err := repo.ListTrials(ctx, outcome.RunID)
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Equal(t, 2.0, trials[2].Driver)
	assert.Equal(t, int64(150), trials[0].DurationMillis)
}

func TestSaveOutcomeReplacesTrials(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	outcome := sampleOutcome(core.NewSuiteID(), "s", verdict.StatusError, time.Now().UTC())
	require.NoError(t, repo.SaveOutcome(ctx, outcome))

	outcome.Trials = outcome.Trials[:1]
	outcome.Status = verdict.StatusPassed
	require.NoError(t, repo.SaveOutcome(ctx, outcome))

	trials, err := repo.ListTrials(ctx, outcome.RunID)
	require.NoError(t, err)
	assert.Len(t, trials, 1)

	runs, err := repo.ListRuns(ctx, ports.RunFilters{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, verdict.StatusPassed, runs[0].Status)
	assert.Equal(t, 1, runs[0].Trials)
}

func TestGetOutcomeNotFound(t *testing.T) {
	repo := newRepository(t)
	_, err := repo.GetOutcome(context.Background(), core.NewRunID())
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestListRunsFilters(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	suiteA, suiteB := core.NewSuiteID(), core.NewSuiteID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveOutcome(ctx, sampleOutcome(suiteA, "one", verdict.StatusPassed, base)))
	require.NoError(t, repo.SaveOutcome(ctx, sampleOutcome(suiteA, "two", verdict.StatusFailed, base.Add(time.Minute))))
	require.NoError(t, repo.SaveOutcome(ctx, sampleOutcome(suiteB, "one", verdict.StatusPassed, base.Add(2*time.Minute))))

	all, err := repo.ListRuns(ctx, ports.RunFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, suiteB, all[0].SuiteID, "newest first")

	bySuite, err := repo.ListRuns(ctx, ports.RunFilters{SuiteID: &suiteA})
	require.NoError(t, err)
	assert.Len(t, bySuite, 2)

	failed := verdict.StatusFailed
	byStatus, err := repo.ListRuns(ctx, ports.RunFilters{Status: &failed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "two", byStatus[0].Scenario)
	assert.Equal(t, 1, byStatus[0].Violations)

	byName, err := repo.ListRuns(ctx, ports.RunFilters{Scenario: "one", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, suiteA, byName[0].SuiteID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.True(t, apperrors.IsConfiguration(err))
}
