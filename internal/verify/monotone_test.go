package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicalib/domain/epidemic"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	apperrors "epicalib/internal/errors"
)

type trial struct {
	driver, stat float64
}

func trials(drivers, stats []float64) []trial {
	out := make([]trial, len(drivers))
	for i := range drivers {
		out[i] = trial{drivers[i], stats[i]}
	}
	return out
}

func driverOf(t trial) float64 { return t.driver }
func statOf(t trial) float64   { return t.stat }

func TestSequenceEqualDriversWithinTolerance(t *testing.T) {
	res := Sequence(trials([]float64{1, 2, 3}, []float64{0.1, 0.1, 0.1}), driverOf, statOf,
		Options{Direction: scenario.Increasing, DriverTolerance: 1, StatTolerance: 0.01})
	assert.True(t, res.Passed())
	assert.Equal(t, 2, res.Checked)
	assert.NoError(t, res.Err())
}

func TestSequenceWrongDirectionReportsPair(t *testing.T) {
	res := Sequence(trials([]float64{1, 2, 3}, []float64{0.3, 0.2, 0.1}), driverOf, statOf,
		Options{Direction: scenario.Increasing, StatTolerance: 0.01})
	require.False(t, res.Passed())

	first := res.Violations[0]
	assert.Equal(t, verdict.ReasonWrongDirection, first.Reason)
	assert.Equal(t, 0, first.FromIndex)
	assert.Equal(t, 1, first.ToIndex)
	assert.Equal(t, -1, first.Group)
	assert.Equal(t, 1.0, first.DriverFrom)
	assert.Equal(t, 2.0, first.DriverTo)
	assert.Equal(t, 0.3, first.StatFrom)
	assert.Equal(t, 0.2, first.StatTo)

	err := res.Err()
	require.Error(t, err)
	assert.True(t, apperrors.IsInvariantViolation(err))
}

func TestSequenceDecreasing(t *testing.T) {
	opts := Options{Direction: scenario.Decreasing, StatTolerance: 0.01}
	assert.True(t, Sequence(trials([]float64{0, 1.8, 4.5}, []float64{900, 700, 400}), driverOf, statOf, opts).Passed())
	assert.False(t, Sequence(trials([]float64{0, 1.8}, []float64{700, 900}), driverOf, statOf, opts).Passed())
}

func TestSequenceFluctuatingDrivers(t *testing.T) {
	drivers := []float64{1.1, 1, 0, 0.1, 0.1, 0.1, 0.3}
	good := []float64{0.40, 0.38, 0.0, 0.05, 0.05, 0.055, 0.12}
	res := Sequence(trials(drivers, good), driverOf, statOf, Options{Direction: scenario.Increasing, StatTolerance: 0.01})
	assert.True(t, res.Passed(), verdict.Summarize(res.Violations, 0))

	// an unchanged driver with a jumping statistic is unstable
	bad := []float64{0.40, 0.38, 0.0, 0.05, 0.09, 0.09, 0.12}
	res = Sequence(trials(drivers, bad), driverOf, statOf, Options{Direction: scenario.Increasing, StatTolerance: 0.01})
	require.Len(t, res.Violations, 1)
	assert.Equal(t, verdict.ReasonUnstable, res.Violations[0].Reason)
	assert.Equal(t, 3, res.Violations[0].FromIndex)
	assert.Equal(t, 4, res.Violations[0].ToIndex)
}

func TestSequenceStrictInequality(t *testing.T) {
	res := Sequence(trials([]float64{1, 2}, []float64{0.5, 0.5}), driverOf, statOf,
		Options{Direction: scenario.Increasing, StatTolerance: 1})
	assert.False(t, res.Passed())
}

func TestSequenceShortInputs(t *testing.T) {
	opts := Options{Direction: scenario.Increasing}
	assert.True(t, Sequence([]trial{}, driverOf, statOf, opts).Passed())
	res := Sequence([]trial{{1, 1}}, driverOf, statOf, opts)
	assert.True(t, res.Passed())
	assert.Equal(t, 0, res.Checked)
}

func TestGroupwiseOnlyComparesChangedGroups(t *testing.T) {
	drivers := [][]float64{
		{0, 0.2, 0.2},
		{0.4, 0.2, 0.2},
		{0.8, 0.2, 0.2},
	}
	// group 1 and 2 counts move freely because their driver never changes
	stats := [][]float64{
		{0, 50, 80},
		{30, 10, 120},
		{55, 90, 60},
	}
	res := Groupwise(drivers, stats, Options{Direction: scenario.Increasing, DriverTolerance: 1e-5, StatTolerance: 1e-5})
	assert.True(t, res.Passed())
	assert.Equal(t, 2, res.Checked)

	stats[2][0] = 20
	res = Groupwise(drivers, stats, Options{Direction: scenario.Increasing, DriverTolerance: 1e-5, StatTolerance: 1e-5})
	require.Len(t, res.Violations, 1)
	assert.Equal(t, 0, res.Violations[0].Group)
	assert.Equal(t, 1, res.Violations[0].FromIndex)
	assert.Equal(t, 2, res.Violations[0].ToIndex)
}

func TestGroupwiseSubToleranceChangeUsesEqualityBranch(t *testing.T) {
	drivers := [][]float64{
		{0.2, 0.5},
		{0.2000001, 0.5},
	}
	opts := Options{Direction: scenario.Increasing, DriverTolerance: 1e-5, StatTolerance: 1}

	res := Groupwise(drivers, [][]float64{{10, 3}, {10.5, 40}}, opts)
	assert.True(t, res.Passed())
	assert.Equal(t, 1, res.Checked)

	res = Groupwise(drivers, [][]float64{{10, 3}, {14, 40}}, opts)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, verdict.ReasonUnstable, res.Violations[0].Reason)
	assert.Equal(t, 0, res.Violations[0].Group)
}

func TestGroupwiseMultipleChangedGroups(t *testing.T) {
	drivers := [][]float64{
		{0.2, 0},
		{0.8, 0.4},
		{0.8, 0.8},
		{1, 1.6},
		{0.1, 0.1},
	}
	stats := [][]float64{
		{10, 0},
		{40, 20},
		{41, 35},
		{50, 70},
		{5, 6},
	}
	res := Groupwise(drivers, stats, Options{Direction: scenario.Increasing, DriverTolerance: 1e-5, StatTolerance: 1e-5})
	assert.True(t, res.Passed(), verdict.Summarize(res.Violations, 0))
	assert.Equal(t, 7, res.Checked)
}

func TestNonDecreasing(t *testing.T) {
	ok := epidemic.TimeSeries{{Time: 0, TotalInfected: 1}, {Time: 1, TotalInfected: 1}, {Time: 2, TotalInfected: 4}}
	assert.True(t, NonDecreasing(ok).Passed())

	bad := epidemic.TimeSeries{{Time: 0, TotalInfected: 1}, {Time: 1, TotalInfected: 5}, {Time: 2, TotalInfected: 4}}
	res := NonDecreasing(bad)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, verdict.ReasonDecreasingCount, res.Violations[0].Reason)
	assert.Equal(t, 1, res.Violations[0].FromIndex)
}

func TestToleranceChecks(t *testing.T) {
	assert.True(t, Relative(0, 0.104, 0.1, 0.05).Passed())
	assert.False(t, Relative(0, 0.106, 0.1, 0.05).Passed())
	// tolerance is relative to the expected value, not the larger of the two
	assert.False(t, WithinRelative(1.0524, 1, 0.05))
	assert.True(t, WithinRelative(0.9524, 1, 0.05))
	assert.True(t, WithinRelative(0, 0, 0.05))

	assert.True(t, Absolute(2, 0.35, 0.3, 0.1).Passed())
	res := Absolute(2, 0.45, 0.3, 0.1)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, verdict.ReasonOutOfTolerance, res.Violations[0].Reason)
	assert.Equal(t, 2, res.Violations[0].FromIndex)
	assert.Equal(t, 0.3, res.Violations[0].StatFrom)
	assert.Equal(t, 0.45, res.Violations[0].StatTo)
}

func TestResultMerge(t *testing.T) {
	var total Result
	total.Merge(Absolute(0, 1, 1, 0.1))
	total.Merge(Absolute(1, 2, 1, 0.1))
	assert.Equal(t, 2, total.Checked)
	assert.Len(t, total.Violations, 1)
}
