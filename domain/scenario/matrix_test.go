package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "epicalib/internal/errors"
)

func TestDefaultMatrixCoversEveryKind(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	kinds := make(map[Kind]int)
	for _, s := range m.Scenarios {
		kinds[s.Kind]++
	}
	for _, k := range Kinds {
		assert.Greater(t, kinds[k], 0, "no scenario of kind %s", k)
	}
	assert.Equal(t, 5, kinds[KindGrowthOracle])
	assert.Equal(t, 3, kinds[KindCounterfactual])
	assert.Equal(t, 9, kinds[KindAgeGroupMonotone])

	assert.Equal(t, "10000", m.BaseOverrides["n_total"])
	assert.Equal(t, "1", m.BaseOverrides["end_time"])
}

func TestDefaultMatrixGrowthPreset(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	s, ok := m.Find("growth_R3_mean6_sd2.5")
	require.True(t, ok)
	assert.Equal(t, "100000", s.Overrides["n_total"])
	assert.Equal(t, "0", s.Overrides["relative_transmission_household"])
	assert.Equal(t, "50", s.Overrides["end_time"])
	assert.Equal(t, "2.5", s.Overrides["sd_infectious_period"])
	assert.Equal(t, 0.02, s.Growth.FractionLow)
	assert.Equal(t, 0.05, s.Growth.FractionHigh)
	assert.Equal(t, 1, s.TrialCount())
}

func TestFractionAsymptomaticDriverIsBundleSum(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	s, ok := m.Find("monotone_fraction_asymptomatic")
	require.True(t, ok)
	assert.Len(t, s.SweptParams(), 9)
	assert.Equal(t, 6, s.TrialCount())
	assert.InDelta(t, 4.5, s.Driver(2), 1e-12)
	assert.Equal(t, Decreasing, s.Direction)
}

func TestValidateDefaults(t *testing.T) {
	s := Scenario{
		Name:    "cf",
		Kind:    KindCounterfactual,
		Network: "household",
		Sweep:   map[string][]float64{"relative_transmission_household": {0, 2}},
	}
	require.NoError(t, s.Validate())
	assert.Equal(t, DefaultAttributionAbsTol, s.Tolerance.Absolute)

	g := Scenario{Name: "g", Kind: KindGrowthOracle}
	require.NoError(t, g.Validate())
	assert.Equal(t, DefaultGrowthTolerance, g.Tolerance.Relative)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
	}{
		{"unknown kind", Scenario{Name: "x", Kind: "bogus"}},
		{"ragged sweep", Scenario{Name: "x", Kind: KindMonotone, Statistic: StatFinalTotalInfected, Direction: Increasing,
			Sweep: map[string][]float64{"a": {1, 2}, "b": {1}}}},
		{"missing direction", Scenario{Name: "x", Kind: KindMonotone, Statistic: StatFinalTotalInfected,
			Sweep: map[string][]float64{"a": {1, 2}}}},
		{"counterfactual wrong param", Scenario{Name: "x", Kind: KindCounterfactual, Network: "work",
			Sweep: map[string][]float64{"relative_transmission_household": {1}}}},
		{"structure with sweep", Scenario{Name: "x", Kind: KindTransmissionStructure,
			Sweep: map[string][]float64{"a": {1}}}},
		{"negative growth fraction", Scenario{Name: "x", Kind: KindGrowthOracle,
			Growth: GrowthWindow{FractionLow: -0.1, FractionHigh: 0.05}}},
		{"growth fraction above one", Scenario{Name: "x", Kind: KindGrowthOracle,
			Growth: GrowthWindow{FractionLow: 0.5, FractionHigh: 1.5}}},
		{"empty growth window", Scenario{Name: "x", Kind: KindGrowthOracle,
			Growth: GrowthWindow{FractionLow: 0.05, FractionHigh: 0.02}}},
		{"swept and overridden", Scenario{Name: "x", Kind: KindMonotone, Statistic: StatFinalTotalInfected, Direction: Increasing,
			Overrides: map[string]string{"a": "1"}, Sweep: map[string][]float64{"a": {1, 2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scenario.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))
		})
	}
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	doc := []byte(`
scenarios:
  - name: pairs
    kind: transmission_structure
  - name: pairs
    kind: transmission_structure
`)
	_, err := Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSelect(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	counterfactual := m.Select([]string{string(KindCounterfactual)})
	assert.Len(t, counterfactual.Scenarios, 3)

	byName := m.Select([]string{"fluctuating"})
	require.Len(t, byName.Scenarios, 1)
	assert.Equal(t, "monotone_transmission_work_fluctuating", byName.Scenarios[0].Name)
	assert.Equal(t, m.BaseOverrides, byName.BaseOverrides)
}
