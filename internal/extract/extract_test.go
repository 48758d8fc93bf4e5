package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicalib/domain/epidemic"
	apperrors "epicalib/internal/errors"
)

func exponentialSeries(seed, rate float64, steps int, offset float64) epidemic.TimeSeries {
	series := make(epidemic.TimeSeries, steps)
	for i := range series {
		series[i] = epidemic.TimePoint{Time: float64(i) + offset, TotalInfected: seed * math.Exp(rate*float64(i))}
	}
	return series
}

func TestGrowthRateRecoversExponent(t *testing.T) {
	series := exponentialSeries(10, 0.2, 60, 0)

	rate, err := GrowthRate(series, 0.02, 0.05, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, rate, 1e-9)
}

func TestGrowthRateShiftInvariant(t *testing.T) {
	base, err := GrowthRate(exponentialSeries(10, 0.15, 80, 0), 0.02, 0.05, 10000)
	require.NoError(t, err)

	for _, offset := range []float64{1, 7.5, 100} {
		shifted, err := GrowthRate(exponentialSeries(10, 0.15, 80, offset), 0.02, 0.05, 10000)
		require.NoError(t, err)
		assert.InDelta(t, base, shifted, 1e-12, "offset %g", offset)
	}
}

func TestGrowthRateUsesStrictThreshold(t *testing.T) {
	series := epidemic.TimeSeries{
		{Time: 0, TotalInfected: 100},
		{Time: 1, TotalInfected: 200},
		{Time: 2, TotalInfected: 201},
		{Time: 3, TotalInfected: 500},
		{Time: 4, TotalInfected: 501},
	}
	// 200 is not above 2% of 10000, 201 is; 500 is not above 5%, 501 is
	rate, err := GrowthRate(series, 0.02, 0.05, 10000)
	require.NoError(t, err)
	assert.InDelta(t, (math.Log(501)-math.Log(201))/2, rate, 1e-12)
}

func TestGrowthRateInsufficientGrowth(t *testing.T) {
	flat := epidemic.TimeSeries{{Time: 0, TotalInfected: 10}, {Time: 50, TotalInfected: 90}}
	_, err := GrowthRate(flat, 0.02, 0.05, 10000)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientGrowth))

	jump := epidemic.TimeSeries{{Time: 0, TotalInfected: 10}, {Time: 1, TotalInfected: 9000}}
	_, err = GrowthRate(jump, 0.02, 0.05, 10000)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientGrowth))
}

func mixedLog() epidemic.TransmissionLog {
	var log epidemic.TransmissionLog
	add := func(n epidemic.Network, count int) {
		for i := 0; i < count; i++ {
			log = append(log, epidemic.TransmissionEvent{VictimID: int64(len(log)), InfectorNetwork: n, VictimAgeGroup: epidemic.AgeGroup(len(log) % 9)})
		}
	}
	add(epidemic.NetworkHousehold, 30)
	add(epidemic.NetworkWork, 50)
	add(epidemic.NetworkRandom, 20)
	// seeds and other layers stay out of every denominator
	add(epidemic.Network(-1), 7)
	add(epidemic.Network(5), 3)
	return log
}

func TestAttributionRatiosSumToOne(t *testing.T) {
	log := mixedLog()
	var sum float64
	for _, n := range epidemic.Networks {
		r, err := NetworkAttributionRatio(log, n)
		require.NoError(t, err)
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	household, err := NetworkAttributionRatio(log, epidemic.NetworkHousehold)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, household, 1e-12)
}

func TestWeightedAttributionRatio(t *testing.T) {
	log := mixedLog()

	tests := []struct {
		scale    float64
		expected float64
	}{
		{0, 0},
		{1, 0.3},
		{2, 60.0 / 130.0},
		{5, 150.0 / 220.0},
	}
	for _, tt := range tests {
		r, err := WeightedAttributionRatio(log, epidemic.NetworkHousehold, tt.scale)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, r, 1e-12, "scale %g", tt.scale)
	}
}

func TestAttributionRatioEmptyDenominator(t *testing.T) {
	_, err := NetworkAttributionRatio(epidemic.TransmissionLog{}, epidemic.NetworkWork)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientGrowth))

	_, err = NetworkAttributionRatio(mixedLog(), epidemic.Network(4))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestPerAgeGroupCounts(t *testing.T) {
	log := epidemic.TransmissionLog{
		{VictimAgeGroup: 0}, {VictimAgeGroup: 0}, {VictimAgeGroup: 8}, {VictimAgeGroup: 3}, {VictimAgeGroup: 12},
	}
	counts := PerAgeGroupCounts(log)
	assert.Equal(t, []float64{2, 0, 0, 1, 0, 0, 0, 0, 1}, counts)
}

func TestFinalTotalInfected(t *testing.T) {
	v, err := FinalTotalInfected(epidemic.TimeSeries{{Time: 0, TotalInfected: 5}, {Time: 1, TotalInfected: 8}})
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)

	_, err = FinalTotalInfected(nil)
	assert.Error(t, err)
}
