package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"epicalib/domain/epidemic"
	apperrors "epicalib/internal/errors"
)

//go:embed default_matrix.yaml
var defaultMatrix []byte

// Default values applied by Validate when a scenario leaves them unset
const (
	DefaultFractionLow        = 0.02
	DefaultFractionHigh       = 0.05
	DefaultGrowthTolerance    = 0.05
	DefaultAttributionAbsTol  = 0.1
	DefaultMonotoneStatTol    = 0.01
	DefaultAgeGroupTolerance  = 1e-5
	relativeTransmissionBasis = "1"
)

// Matrix is the declarative list of scenarios run by a suite. BaseOverrides
// are applied to every scenario before its own overrides.
type Matrix struct {
	BaseOverrides map[string]string `yaml:"base_overrides,omitempty" json:"base_overrides,omitempty"`
	Scenarios     []Scenario        `yaml:"scenarios" json:"scenarios"`
}

// Parse decodes and validates a matrix document
func Parse(data []byte) (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to parse scenario matrix: %w", err))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads a matrix from disk
func LoadFile(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to read scenario matrix %s: %w", path, err))
	}
	return Parse(data)
}

// Default returns the built-in matrix covering every calibration sweep
func Default() (*Matrix, error) {
	return Parse(defaultMatrix)
}

// Load returns the matrix at path, or the built-in one when path is empty
func Load(path string) (*Matrix, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return LoadFile(path)
}

// Find returns the scenario with the given name
func (m *Matrix) Find(name string) (Scenario, bool) {
	for _, s := range m.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Select keeps the scenarios whose name contains one of the filters, or
// whose kind equals one of them. An empty filter list keeps everything.
func (m *Matrix) Select(filters []string) *Matrix {
	if len(filters) == 0 {
		return m
	}
	out := &Matrix{BaseOverrides: m.BaseOverrides}
	for _, s := range m.Scenarios {
		for _, f := range filters {
			if strings.Contains(s.Name, f) || string(s.Kind) == f {
				out.Scenarios = append(out.Scenarios, s)
				break
			}
		}
	}
	return out
}

// Validate checks every scenario and fills in kind defaults
func (m *Matrix) Validate() error {
	if len(m.Scenarios) == 0 {
		return apperrors.ConfigInvalid("scenario matrix has no scenarios")
	}
	seen := make(map[string]bool, len(m.Scenarios))
	for i := range m.Scenarios {
		s := &m.Scenarios[i]
		if s.Name == "" {
			return apperrors.ConfigInvalid(fmt.Sprintf("scenario %d has no name", i))
		}
		if seen[s.Name] {
			return apperrors.ConfigInvalid(fmt.Sprintf("duplicate scenario name %q", s.Name))
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single scenario and fills in kind defaults
func (s *Scenario) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.ConfigInvalid(fmt.Sprintf("scenario %q: ", s.Name) + fmt.Sprintf(format, args...))
	}

	length := -1
	for name, values := range s.Sweep {
		if len(values) == 0 {
			return invalid("sweep of %s is empty", name)
		}
		if length >= 0 && len(values) != length {
			return invalid("sweep of %s has %d values, expected %d", name, len(values), length)
		}
		length = len(values)
		if _, clash := s.Overrides[name]; clash {
			return invalid("%s is both overridden and swept", name)
		}
	}

	switch s.Kind {
	case KindGrowthOracle:
		if s.Growth.FractionLow == 0 {
			s.Growth.FractionLow = DefaultFractionLow
		}
		if s.Growth.FractionHigh == 0 {
			s.Growth.FractionHigh = DefaultFractionHigh
		}
		if s.Growth.FractionLow <= 0 || s.Growth.FractionHigh >= 1 {
			return invalid("growth window %g..%g must lie strictly between 0 and 1", s.Growth.FractionLow, s.Growth.FractionHigh)
		}
		if s.Growth.FractionLow >= s.Growth.FractionHigh {
			return invalid("growth window %g..%g is empty", s.Growth.FractionLow, s.Growth.FractionHigh)
		}
		if s.Tolerance.Relative == 0 {
			s.Tolerance.Relative = DefaultGrowthTolerance
		}

	case KindCounterfactual:
		network, err := s.NetworkOf()
		if err != nil {
			return invalid("%v", err)
		}
		param := network.RelativeTransmissionParam()
		if len(s.Sweep) != 1 || len(s.Sweep[param]) == 0 {
			return invalid("counterfactual sweep must contain exactly %s", param)
		}
		if s.Tolerance.Absolute == 0 {
			s.Tolerance.Absolute = DefaultAttributionAbsTol
		}

	case KindMonotone:
		if len(s.Sweep) == 0 {
			return invalid("monotone scenario needs a sweep")
		}
		switch s.Statistic {
		case StatNetworkRatio:
			if _, err := s.NetworkOf(); err != nil {
				return invalid("%v", err)
			}
		case StatFinalTotalInfected:
		case "":
			return invalid("monotone scenario needs a statistic")
		default:
			return invalid("unsupported monotone statistic %q", s.Statistic)
		}
		if err := s.checkDirection(); err != nil {
			return invalid("%v", err)
		}
		if s.Tolerance.Statistic == 0 {
			s.Tolerance.Statistic = DefaultMonotoneStatTol
		}

	case KindAgeGroupMonotone:
		if len(s.Sweep) == 0 {
			return invalid("age group scenario needs a sweep")
		}
		s.Statistic = StatAgeGroupCounts
		if s.Direction == "" {
			s.Direction = Increasing
		}
		if err := s.checkDirection(); err != nil {
			return invalid("%v", err)
		}
		if s.Tolerance.Driver == 0 {
			s.Tolerance.Driver = DefaultAgeGroupTolerance
		}
		if s.Tolerance.Statistic == 0 {
			s.Tolerance.Statistic = DefaultAgeGroupTolerance
		}

	case KindTransmissionStructure:
		if len(s.Sweep) > 0 {
			return invalid("transmission structure runs a single trial and takes no sweep")
		}

	default:
		return invalid("unknown kind %q", s.Kind)
	}
	return nil
}

func (s *Scenario) checkDirection() error {
	switch s.Direction {
	case Increasing, Decreasing:
		return nil
	case "":
		return fmt.Errorf("direction is required")
	default:
		return fmt.Errorf("unknown direction %q", s.Direction)
	}
}

// RelativeTransmissionBasis sets every network's relative transmission to 1,
// the reference configuration of the counterfactual and monotone sweeps.
func RelativeTransmissionBasis() map[string]string {
	out := make(map[string]string, len(epidemic.Networks))
	for _, n := range epidemic.Networks {
		out[n.RelativeTransmissionParam()] = relativeTransmissionBasis
	}
	return out
}
