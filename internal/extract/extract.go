// Package extract derives scalar and vector statistics from simulator
// artifacts. Every function is pure.
package extract

import (
	"fmt"
	"math"

	"epicalib/domain/epidemic"
	apperrors "epicalib/internal/errors"
)

// GrowthRate estimates the exponential growth rate from the earliest rows at
// which the cumulative count first exceeds fractionLow*totalN and
// fractionHigh*totalN:
//
//	(ln c_hi - ln c_lo) / (t_hi - t_lo)
func GrowthRate(series epidemic.TimeSeries, fractionLow, fractionHigh, totalN float64) (float64, error) {
	if totalN <= 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("population size must be positive, got %g", totalN))
	}
	lo, ok := firstAbove(series, fractionLow*totalN)
	if !ok {
		return 0, apperrors.InsufficientGrowth(fmt.Sprintf("cumulative count never exceeded %g (fraction %g)", fractionLow*totalN, fractionLow))
	}
	hi, ok := firstAbove(series, fractionHigh*totalN)
	if !ok {
		return 0, apperrors.InsufficientGrowth(fmt.Sprintf("cumulative count never exceeded %g (fraction %g)", fractionHigh*totalN, fractionHigh))
	}
	if hi.Time == lo.Time {
		return 0, apperrors.InsufficientGrowth(fmt.Sprintf("both thresholds crossed at time %g", lo.Time))
	}
	return (math.Log(hi.TotalInfected) - math.Log(lo.TotalInfected)) / (hi.Time - lo.Time), nil
}

func firstAbove(series epidemic.TimeSeries, threshold float64) (epidemic.TimePoint, bool) {
	for _, p := range series {
		if p.TotalInfected > threshold {
			return p, true
		}
	}
	return epidemic.TimePoint{}, false
}

// NetworkCounts counts transmissions on each attributed network, indexed by network code
func NetworkCounts(log epidemic.TransmissionLog) [3]int {
	var counts [3]int
	for _, e := range log {
		if e.InfectorNetwork.IsAttributed() {
			counts[e.InfectorNetwork]++
		}
	}
	return counts
}

// NetworkAttributionRatio is the share of household, work and random
// transmissions that happened on network
func NetworkAttributionRatio(log epidemic.TransmissionLog, network epidemic.Network) (float64, error) {
	return WeightedAttributionRatio(log, network, 1)
}

// WeightedAttributionRatio predicts the attribution ratio after scaling
// network's relative transmission by scale: the network's count is multiplied
// by scale in the numerator and in the denominator.
func WeightedAttributionRatio(log epidemic.TransmissionLog, network epidemic.Network, scale float64) (float64, error) {
	if !network.IsAttributed() {
		return 0, apperrors.InvalidInput(fmt.Sprintf("network %s is not attributed", network))
	}
	if scale < 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("scale must be non-negative, got %g", scale))
	}
	counts := NetworkCounts(log)
	var denominator float64
	for n, c := range counts {
		if epidemic.Network(n) == network {
			denominator += float64(c) * scale
		} else {
			denominator += float64(c)
		}
	}
	if denominator == 0 {
		return 0, apperrors.InsufficientGrowth(fmt.Sprintf("no attributable transmissions for %s ratio", network))
	}
	return float64(counts[network]) * scale / denominator, nil
}

// PerAgeGroupCounts counts infections by victim age group
func PerAgeGroupCounts(log epidemic.TransmissionLog) []float64 {
	counts := make([]float64, epidemic.AgeGroupCount)
	for _, e := range log {
		if e.VictimAgeGroup.Valid() {
			counts[e.VictimAgeGroup]++
		}
	}
	return counts
}

// FinalTotalInfected is the cumulative count on the last row
func FinalTotalInfected(series epidemic.TimeSeries) (float64, error) {
	if len(series) == 0 {
		return 0, apperrors.InsufficientGrowth("time series is empty")
	}
	return series.Final(), nil
}
