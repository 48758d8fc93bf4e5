package testkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"epicalib/adapters/params"
	"epicalib/domain/epidemic"
	apperrors "epicalib/internal/errors"
	"epicalib/ports"
)

// Simulator runs the synthetic epidemic in process. It honours the same
// contract as the subprocess executor: parameters are persisted first and
// generation failures surface as run failures.
type Simulator struct {
	mu    sync.Mutex
	calls int
	runs  []map[string]string
}

var _ ports.Simulator = (*Simulator)(nil)

// NewSimulator creates an in-process synthetic simulator
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Execute generates the artifacts for the current parameter values
func (s *Simulator) Execute(ctx context.Context, p ports.ParameterSet) (*epidemic.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.RunFailure("simulator run cancelled", err)
	}
	if err := p.Persist(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls++
	s.runs = append(s.runs, p.Snapshot())
	s.mu.Unlock()

	cfg, err := ConfigFromParams(p)
	if err != nil {
		return nil, apperrors.RunFailure("synthetic simulator could not read parameters", err)
	}
	artifacts, err := NewEpidemicGenerator(cfg).Generate()
	if err != nil {
		return nil, apperrors.RunFailure("synthetic simulator failed", err)
	}
	return artifacts, nil
}

// Calls is the number of completed Execute invocations
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Runs returns the parameter snapshot of every invocation in order
func (s *Simulator) Runs() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(s.runs))
	copy(out, s.runs)
	return out
}

// BaselineParameters is the header and single data row of the synthetic
// baseline parameter file
func BaselineParameters() ([]string, []string) {
	header := []string{
		"rng_seed", "param_id", "n_total", "n_seed_infection", "end_time",
		"infectious_rate", "mean_infectious_period", "sd_infectious_period",
		"relative_transmission_household", "relative_transmission_workplace", "relative_transmission_random",
		"random_interaction_distribution",
		"mean_random_interactions_child", "mean_random_interactions_adult", "mean_random_interactions_elderly",
		"hospitalised_daily_interactions", "asymptomatic_infectious_factor",
	}
	row := []string{
		"1", "1", "10000", "10", "200",
		"3", "5.5", "2.14",
		"1", "1", "1",
		"1",
		"2", "4", "3",
		"0", "0.33",
	}

	fractionAsymptomatic := []string{"0.456", "0.412", "0.37", "0.332", "0.296", "0.265", "0.238", "0.214", "0.192"}
	susceptibility := []string{"0.71", "0.74", "0.79", "0.87", "0.98", "1.11", "1.26", "1.45", "1.66"}
	for i, band := range epidemic.AgeGroupLabels() {
		header = append(header, "fraction_asymptomatic_"+band)
		row = append(row, fractionAsymptomatic[i])
	}
	for i, band := range epidemic.AgeGroupLabels() {
		header = append(header, "relative_susceptibility_"+band)
		row = append(row, susceptibility[i])
	}
	return header, row
}

// Kit is a directory holding a baseline parameter file and a household file
// plus an in-process simulator
type Kit struct {
	Dir            string
	BaselineParams string
	HouseholdFile  string
	Simulator      *Simulator
}

// NewKit writes the synthetic baseline files under dir
func NewKit(dir string) (*Kit, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create kit directory: %w", err)
	}

	header, row := BaselineParameters()
	baseline := filepath.Join(dir, "baseline_parameters.csv")
	if err := params.WriteTable(baseline, header, [][]string{row}); err != nil {
		return nil, fmt.Errorf("failed to write baseline parameters: %w", err)
	}

	household := filepath.Join(dir, "baseline_household_demographics.csv")
	if err := os.WriteFile(household, []byte(householdDemographics()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write household file: %w", err)
	}

	return &Kit{
		Dir:            dir,
		BaselineParams: baseline,
		HouseholdFile:  household,
		Simulator:      NewSimulator(),
	}, nil
}

// LoadParams opens a private copy of the baseline parameter file
func (k *Kit) LoadParams(name string) (*params.File, error) {
	path := filepath.Join(k.Dir, name)
	if err := params.CopyFile(k.BaselineParams, path); err != nil {
		return nil, err
	}
	return params.Load(path, 1)
}

// householdDemographics lists a few households by the number of members in each age band
func householdDemographics() string {
	var b strings.Builder
	b.WriteString(strings.Join(prefixed("a_", epidemic.AgeGroupLabels()), ","))
	b.WriteString("\n")
	for _, h := range [][]int{
		{0, 0, 1, 1, 0, 0, 0, 0, 0},
		{1, 1, 0, 0, 2, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 1, 1, 0},
		{0, 0, 0, 0, 0, 0, 0, 0, 1},
	} {
		cells := make([]string, len(h))
		for i, v := range h {
			cells[i] = fmt.Sprint(v)
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func prefixed(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}
