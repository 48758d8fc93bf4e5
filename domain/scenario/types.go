package scenario

import (
	"sort"
	"time"

	"epicalib/domain/core"
	"epicalib/domain/epidemic"
	"epicalib/domain/verdict"
)

// Kind selects how the trials of a scenario are verified
type Kind string

const (
	KindGrowthOracle          Kind = "growth_oracle"
	KindCounterfactual        Kind = "counterfactual_attribution"
	KindMonotone              Kind = "monotone"
	KindAgeGroupMonotone      Kind = "age_group_monotone"
	KindTransmissionStructure Kind = "transmission_structure"
)

// Kinds lists every supported scenario kind
var Kinds = []Kind{
	KindGrowthOracle,
	KindCounterfactual,
	KindMonotone,
	KindAgeGroupMonotone,
	KindTransmissionStructure,
}

// Direction is the side the statistic must move to when the driver goes up
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

// Statistic names the derived value a monotone scenario compares
type Statistic string

const (
	StatNetworkRatio       Statistic = "network_ratio"
	StatFinalTotalInfected Statistic = "final_total_infected"
	StatAgeGroupCounts     Statistic = "age_group_counts"
)

// Tolerance bundles the thresholds used by the different kinds. Zero values
// are replaced by the kind's default when the matrix is validated.
type Tolerance struct {
	Driver    float64 `yaml:"driver,omitempty" json:"driver,omitempty"`
	Statistic float64 `yaml:"statistic,omitempty" json:"statistic,omitempty"`
	Relative  float64 `yaml:"relative,omitempty" json:"relative,omitempty"`
	Absolute  float64 `yaml:"absolute,omitempty" json:"absolute,omitempty"`
}

// GrowthWindow are the population fractions bracketing the exponential phase
type GrowthWindow struct {
	FractionLow  float64 `yaml:"fraction_low,omitempty" json:"fraction_low,omitempty"`
	FractionHigh float64 `yaml:"fraction_high,omitempty" json:"fraction_high,omitempty"`
}

// Scenario is an ordered sequence of trials sharing every parameter except
// the swept ones. Each sweep list holds one value per trial; all lists have
// the same length. A scenario without a sweep has a single trial.
type Scenario struct {
	Name        string               `yaml:"name" json:"name"`
	Kind        Kind                 `yaml:"kind" json:"kind"`
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	Overrides   map[string]string    `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	Sweep       map[string][]float64 `yaml:"sweep,omitempty" json:"sweep,omitempty"`
	Network     string               `yaml:"network,omitempty" json:"network,omitempty"`
	Statistic   Statistic            `yaml:"statistic,omitempty" json:"statistic,omitempty"`
	Direction   Direction            `yaml:"direction,omitempty" json:"direction,omitempty"`
	Tolerance   Tolerance            `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Growth      GrowthWindow         `yaml:"growth,omitempty" json:"growth,omitempty"`
}

// SweptParams returns the swept parameter names in a stable order
func (s Scenario) SweptParams() []string {
	names := make([]string, 0, len(s.Sweep))
	for name := range s.Sweep {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TrialCount is the number of trials the sweep produces
func (s Scenario) TrialCount() int {
	for _, values := range s.Sweep {
		return len(values)
	}
	return 1
}

// TrialValues returns the swept values applied by trial i
func (s Scenario) TrialValues(i int) map[string]float64 {
	values := make(map[string]float64, len(s.Sweep))
	for name, list := range s.Sweep {
		if i < len(list) {
			values[name] = list[i]
		}
	}
	return values
}

// Driver is the scalar driver of trial i: the sum over every swept parameter
func (s Scenario) Driver(i int) float64 {
	var sum float64
	for _, name := range s.SweptParams() {
		sum += s.Sweep[name][i]
	}
	return sum
}

// NetworkOf parses the scenario's network field
func (s Scenario) NetworkOf() (epidemic.Network, error) {
	return epidemic.ParseNetwork(s.Network)
}

// Statistics are the derived values extracted from one trial. Only the fields
// relevant to the scenario kind are filled in.
type Statistics struct {
	GrowthRate         float64   `json:"growth_rate,omitempty"`
	OracleRate         float64   `json:"oracle_rate,omitempty"`
	NetworkRatio       float64   `json:"network_ratio,omitempty"`
	ExpectedRatio      float64   `json:"expected_ratio,omitempty"`
	FinalTotalInfected float64   `json:"final_total_infected"`
	NetworkCounts      []int     `json:"network_counts,omitempty"`
	AgeGroupCounts     []float64 `json:"age_group_counts,omitempty"`
}

// TrialRecord is the parameter snapshot of one trial plus what was derived from it
type TrialRecord struct {
	Index        int                `json:"index"`
	Parameters   map[string]string  `json:"parameters"`
	Fingerprint  core.ParameterHash `json:"fingerprint"`
	Driver       float64            `json:"driver"`
	DriverVector []float64          `json:"driver_vector,omitempty"`
	Statistic    float64            `json:"statistic"`
	Statistics   Statistics         `json:"statistics"`
	SeriesRows   int                `json:"series_rows"`
	Events       int                `json:"events"`
	Duration     time.Duration      `json:"duration"`
}

// Outcome is the result of running and verifying one scenario
type Outcome struct {
	RunID      core.RunID          `json:"run_id"`
	SuiteID    core.SuiteID        `json:"suite_id"`
	Scenario   Scenario            `json:"scenario"`
	Status     verdict.Status      `json:"status"`
	Baseline   *TrialRecord        `json:"baseline,omitempty"`
	Trials     []TrialRecord       `json:"trials"`
	Violations []verdict.Violation `json:"violations,omitempty"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Passed reports whether every check of the scenario held
func (o *Outcome) Passed() bool {
	return o.Status == verdict.StatusPassed
}

// Duration is the wall time spent on the scenario
func (o *Outcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// StatisticValues returns the compared statistic of every trial in order
func (o *Outcome) StatisticValues() []float64 {
	out := make([]float64, len(o.Trials))
	for i, t := range o.Trials {
		out[i] = t.Statistic
	}
	return out
}
