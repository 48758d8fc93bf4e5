package oracle

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "epicalib/internal/errors"
)

func TestAnalyticGrowthRateResidual(t *testing.T) {
	tests := []struct {
		r, mean, sd float64
	}{
		{3.0, 6.0, 2.5},
		{2.5, 6.0, 2.5},
		{2.0, 6.0, 2.0},
		{3.0, 9.0, 3.0},
		{3.0, 8.0, 8.0},
		{0.8, 6.0, 2.5},
	}

	for _, tt := range tests {
		rate, err := AnalyticGrowthRate(tt.r, tt.mean, tt.sd)
		require.NoError(t, err, "R=%g mean=%g sd=%g", tt.r, tt.mean, tt.sd)

		theta, k := GammaShape(tt.mean, tt.sd)
		residual := math.Exp(rate) - tt.r/math.Pow(1+rate*theta, k)
		assert.Less(t, math.Abs(residual), ResidualTolerance)
		assert.Greater(t, rate, -0.99/theta)
		assert.Less(t, rate, 1.0)
	}
}

func TestAnalyticGrowthRateSign(t *testing.T) {
	growing, err := AnalyticGrowthRate(3.0, 6.0, 2.5)
	require.NoError(t, err)
	assert.Greater(t, growing, 0.0)

	critical, err := AnalyticGrowthRate(1.0, 6.0, 2.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, critical, 1e-10)

	declining, err := AnalyticGrowthRate(0.5, 6.0, 2.5)
	require.NoError(t, err)
	assert.Less(t, declining, 0.0)
}

func TestAnalyticGrowthRateIncreasesWithR(t *testing.T) {
	prev := math.Inf(-1)
	for _, r := range []float64{1.5, 2.0, 2.5, 3.0, 4.0} {
		rate, err := AnalyticGrowthRate(r, 6.0, 2.5)
		require.NoError(t, err)
		assert.Greater(t, rate, prev)
		prev = rate
	}
}

func TestAnalyticGrowthRateNoRoot(t *testing.T) {
	// exp(1) is still below R/(1+theta)^k, so the bracket does not change sign
	_, err := AnalyticGrowthRate(1000, 6.0, 2.5)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoRootFound))

	_, err = AnalyticGrowthRate(3, 0, 2.5)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoRootFound))

	_, err = AnalyticGrowthRate(3, 6, -1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoRootFound))
}

func TestBrentPolynomial(t *testing.T) {
	root, err := brent(func(x float64) float64 { return x*x*x - 2*x - 5 }, 2, 3, 1e-15, 4*epsilon, 100)
	require.NoError(t, err)
	assert.InDelta(t, 2.0945514815423265, root, 1e-12)

	_, err = brent(func(x float64) float64 { return x*x + 1 }, -1, 1, 1e-15, 4*epsilon, 100)
	assert.ErrorIs(t, err, errSameSign)
}

func TestInfectiousPeriodMoments(t *testing.T) {
	dist := InfectiousPeriod(6.0, 2.5, rand.NewPCG(1, 2))
	assert.InDelta(t, 6.0, dist.Mean(), 1e-12)
	assert.InDelta(t, 2.5, dist.StdDev(), 1e-12)
	assert.InDelta(t, 23.5, InfectiousPeriodBound(6.0, 2.5), 1e-12)

	for i := 0; i < 100; i++ {
		assert.Greater(t, dist.Rand(), 0.0)
	}
}
