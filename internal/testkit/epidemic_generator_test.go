package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicalib/domain/epidemic"
	"epicalib/internal/extract"
	"epicalib/internal/verify"
)

func baseConfig() GeneratorConfig {
	return GeneratorConfig{
		PopulationSize:         10000,
		SeedInfections:         10,
		EndTime:                250,
		InfectiousRate:         3,
		InfectiousMean:         5.5,
		InfectiousSD:           2.14,
		Seed:                   1,
		RelativeTransmission:   [3]float64{1, 1, 1},
		FractionAsymptomatic:   []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3},
		AsymptomaticInfective:  0.33,
		RelativeSusceptibility: []float64{0.71, 0.74, 0.79, 0.87, 0.98, 1.11, 1.26, 1.45, 1.66},
	}
}

func generate(t *testing.T, cfg GeneratorConfig) *epidemic.Artifacts {
	t.Helper()
	artifacts, err := NewEpidemicGenerator(cfg).Generate()
	require.NoError(t, err)
	return artifacts
}

func TestGeneratedArtifactsAreConsistent(t *testing.T) {
	artifacts := generate(t, baseConfig())

	assert.True(t, verify.NonDecreasing(artifacts.TimeSeries).Passed())
	assert.Equal(t, artifacts.TimeSeries.Max(), float64(len(artifacts.Transmission)))
	assert.Len(t, artifacts.TimeSeries, 251)

	res := verify.TransmissionStructure(artifacts, verify.StructureExpectations{
		SeedInfections: 10, InfectiousMean: 5.5, InfectiousSD: 2.14,
	})
	assert.True(t, res.Passed(), "%v", res.Violations)

	seen := make(map[int64]bool, len(artifacts.Transmission))
	for _, e := range artifacts.Transmission {
		assert.False(t, seen[e.VictimID], "victim %d infected twice", e.VictimID)
		seen[e.VictimID] = true
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := generate(t, baseConfig())
	b := generate(t, baseConfig())
	assert.Equal(t, a, b)

	cfg := baseConfig()
	cfg.Seed = 2
	c := generate(t, cfg)
	assert.Equal(t, len(a.Transmission), len(c.Transmission))
	assert.NotEqual(t, a.Transmission, c.Transmission)
}

func TestGeneratorGrowthMatchesOracle(t *testing.T) {
	cfg := baseConfig()
	cfg.PopulationSize = 100000
	cfg.InfectiousMean = 6
	cfg.InfectiousSD = 2.5
	cfg.RelativeTransmission = [3]float64{0, 0, 1}
	cfg.EndTime = 50

	artifacts := generate(t, cfg)
	rate, err := extract.GrowthRate(artifacts.TimeSeries, 0.02, 0.05, 100000)
	require.NoError(t, err)

	household, err := extract.NetworkAttributionRatio(artifacts.Transmission, epidemic.NetworkHousehold)
	require.NoError(t, err)
	assert.Equal(t, 0.0, household)

	expected, err := NewEpidemicGenerator(cfg).growthRate()
	require.NoError(t, err)
	assert.InEpsilon(t, expected, rate, 0.01)
}

func TestGeneratorNetworkShareFollowsWeight(t *testing.T) {
	prev := -1.0
	for _, w := range []float64{0, 0.5, 1, 1.5, 2, 10, 100} {
		cfg := baseConfig()
		cfg.RelativeTransmission[epidemic.NetworkWork] = w
		ratio, err := extract.NetworkAttributionRatio(generate(t, cfg).Transmission, epidemic.NetworkWork)
		require.NoError(t, err)
		assert.Greater(t, ratio, prev, "weight %g", w)
		prev = ratio
	}
}

func TestGeneratorAgeGroupsFollowSusceptibility(t *testing.T) {
	low := baseConfig()
	low.RelativeSusceptibility[2] = 0.4
	high := baseConfig()
	high.RelativeSusceptibility[2] = 0.8

	lowCounts := extract.PerAgeGroupCounts(generate(t, low).Transmission)
	highCounts := extract.PerAgeGroupCounts(generate(t, high).Transmission)
	assert.Greater(t, highCounts[2], lowCounts[2])
	assert.Equal(t, lowCounts[5], highCounts[5])
}

func TestGeneratorAsymptomaticReducesFinalSize(t *testing.T) {
	few := baseConfig()
	many := baseConfig()
	for i := range many.FractionAsymptomatic {
		few.FractionAsymptomatic[i] = 0.1
		many.FractionAsymptomatic[i] = 0.9
	}
	assert.Greater(t, generate(t, few).TimeSeries.Final(), generate(t, many).TimeSeries.Final())
}

func TestApportion(t *testing.T) {
	assert.Equal(t, []int{3, 3, 4}, apportion(10, []float64{0.3, 0.3, 0.4}))
	assert.Equal(t, []int{0, 7}, apportion(7, []float64{0, 2}))
	assert.Equal(t, []int{0, 0}, apportion(7, []float64{0, 0}))

	parts := apportion(1000, []float64{1, 1, 1})
	assert.Equal(t, 1000, parts[0]+parts[1]+parts[2])
}
