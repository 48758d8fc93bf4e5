// Package oracle computes the analytical early exponential growth rate of an
// epidemic whose infectiousness follows a Gamma-distributed generation time.
package oracle

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	apperrors "epicalib/internal/errors"
)

const (
	// ResidualTolerance bounds |exp(r) - R/(1+r*theta)^k| at the returned root
	ResidualTolerance = 1e-8

	// lowerBracketFactor keeps 1+r*theta strictly positive at the lower end
	lowerBracketFactor = -0.99
	upperBracket       = 1.0
)

// GammaShape converts the mean and standard deviation of the infectious
// period into the scale theta and shape k of the Gamma distribution
func GammaShape(mean, sd float64) (theta, k float64) {
	theta = sd * sd / mean
	k = mean / theta
	return theta, k
}

// CharacteristicResidual evaluates exp(r) - R/(1+r*theta)^k
func CharacteristicResidual(rate, reproduction, mean, sd float64) float64 {
	theta, k := GammaShape(mean, sd)
	return math.Exp(rate) - reproduction/math.Pow(1+rate*theta, k)
}

// AnalyticGrowthRate solves the characteristic equation
//
//	exp(r) = R / (1 + r*theta)^k
//
// for r on the bracket (-0.99/theta, 1) with Brent's method.
func AnalyticGrowthRate(reproduction, mean, sd float64) (float64, error) {
	if mean <= 0 || sd <= 0 {
		return 0, apperrors.NoRootFound(fmt.Sprintf("infectious period needs positive mean and sd, got %g and %g", mean, sd))
	}
	if reproduction <= 0 {
		return 0, apperrors.NoRootFound(fmt.Sprintf("reproduction number must be positive, got %g", reproduction))
	}

	theta, _ := GammaShape(mean, sd)
	f := func(r float64) float64 {
		return CharacteristicResidual(r, reproduction, mean, sd)
	}

	root, err := brent(f, lowerBracketFactor/theta, upperBracket, 1e-15, 4*epsilon, 200)
	if err != nil {
		return 0, apperrors.NoRootFound(fmt.Sprintf("R=%g mean=%g sd=%g: %v", reproduction, mean, sd, err))
	}
	if residual := math.Abs(f(root)); residual >= ResidualTolerance {
		return 0, apperrors.NoRootFound(fmt.Sprintf("R=%g mean=%g sd=%g: residual %g at r=%g", reproduction, mean, sd, residual, root))
	}
	return root, nil
}

// InfectiousPeriod is the Gamma distribution with the given mean and sd. A
// nil src uses the global source.
func InfectiousPeriod(mean, sd float64, src rand.Source) distuv.Gamma {
	theta, k := GammaShape(mean, sd)
	return distuv.Gamma{Alpha: k, Beta: 1 / theta, Src: src}
}

// InfectiousPeriodBound is the latest plausible infector time used by the
// structural checks: mean + 7 sd
func InfectiousPeriodBound(mean, sd float64) float64 {
	return mean + 7*sd
}
