package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
)

func outcomes() []*scenario.Outcome {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	growth := &scenario.Outcome{
		RunID:      core.NewRunID(),
		Scenario:   scenario.Scenario{Name: "growth_R3_mean6_sd2.5", Kind: scenario.KindGrowthOracle},
		Status:     verdict.StatusPassed,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Trials: []scenario.TrialRecord{{
			Index:      0,
			Statistic:  0.2461,
			Statistics: scenario.Statistics{GrowthRate: 0.2461, OracleRate: 0.25},
		}},
	}
	monotone := &scenario.Outcome{
		RunID: core.NewRunID(),
		Scenario: scenario.Scenario{
			Name:  "monotone_transmission_work",
			Kind:  scenario.KindMonotone,
			Sweep: map[string][]float64{"relative_transmission_workplace": {0, 1, 2}},
		},
		Status:     verdict.StatusFailed,
		Error:      "1 of 2 checks failed",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Trials: []scenario.TrialRecord{
			{Index: 0, Driver: 0, Statistic: 0.1},
			{Index: 1, Driver: 1, Statistic: 0.3},
			{Index: 2, Driver: 2, Statistic: 0.2},
		},
		Violations: []verdict.Violation{{
			Reason: verdict.ReasonWrongDirection, FromIndex: 1, ToIndex: 2, Group: -1,
			Detail: "statistic fell | driver rose",
		}},
	}
	return []*scenario.Outcome{growth, monotone}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.118033988749895, s.StdDev, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)

	empty, err := Summarize(nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown("Calibration", outcomes()))

	assert.True(t, strings.HasPrefix(md, "# Calibration\n"))
	assert.Contains(t, md, "2 scenarios: **1 passed**, 1 failed, 0 aborted.")
	assert.Contains(t, md, "## monotone_transmission_work")
	assert.Contains(t, md, "- Swept: relative_transmission_workplace")
	assert.Contains(t, md, "| 0 | 0 | 0.2461 | 0.25 |")
	assert.Contains(t, md, `statistic fell \| driver rose`)
}

func TestMarkdownAbortedOutcomeHasZeroSummary(t *testing.T) {
	aborted := &scenario.Outcome{
		RunID:    core.NewRunID(),
		Scenario: scenario.Scenario{Name: "growth_R2_mean5_sd2", Kind: scenario.KindGrowthOracle},
		Status:   verdict.StatusError,
		Error:    "no such parameter",
	}

	md := string(Markdown("Calibration", []*scenario.Outcome{aborted}))
	assert.Contains(t, md, "| growth_R2_mean5_sd2 | growth_oracle | **error** | 0 | 0 | 0 | 0 | 0 | 0 | 0s |")
}

func TestHTML(t *testing.T) {
	page := string(HTML("Calibration", outcomes()))

	assert.Contains(t, page, "<title>Calibration</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "monotone_transmission_work</h2>")
}
