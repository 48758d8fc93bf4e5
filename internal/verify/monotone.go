// Package verify checks monotone and tolerance-bounded relationships between
// swept drivers and derived statistics across a sequence of trials.
package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"

	"epicalib/domain/epidemic"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	apperrors "epicalib/internal/errors"
)

// Options configures the three-way comparison of consecutive trials
type Options struct {
	// Direction is the side the statistic moves to when the driver goes up
	Direction scenario.Direction
	// DriverTolerance is the largest driver change treated as "unchanged"
	DriverTolerance float64
	// StatTolerance bounds the statistic change allowed for an unchanged driver
	StatTolerance float64
}

// Result collects the violations of one check
type Result struct {
	Checked    int                 `json:"checked"`
	Violations []verdict.Violation `json:"violations,omitempty"`
}

// Passed reports whether no violation was found
func (r Result) Passed() bool {
	return len(r.Violations) == 0
}

// Err converts the violations into an INVARIANT_VIOLATION error, or nil
func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	return apperrors.InvariantViolation(fmt.Sprintf("%d of %d checks failed: %s",
		len(r.Violations), r.Checked, verdict.Summarize(r.Violations, 5)))
}

// Merge appends the checks and violations of other
func (r *Result) Merge(other Result) {
	r.Checked += other.Checked
	r.Violations = append(r.Violations, other.Violations...)
}

// Sequence compares every consecutive pair of items. When the driver rises by
// more than the driver tolerance the statistic must move strictly to the
// declared side; when it falls it must move strictly to the other side; when
// it stays within tolerance the statistic may change by at most the
// statistic tolerance. The driver list need not be ordered.
func Sequence[T any](items []T, driverOf, statisticOf func(T) float64, opts Options) Result {
	var res Result
	for i := 1; i < len(items); i++ {
		res.Checked++
		v := comparePair(opts, i-1, i, -1,
			driverOf(items[i-1]), driverOf(items[i]),
			statisticOf(items[i-1]), statisticOf(items[i]))
		if v != nil {
			res.Violations = append(res.Violations, *v)
		}
	}
	return res
}

// Groupwise applies the pair comparison per group. drivers[i][g] and
// statistics[i][g] belong to trial i and group g; a group is compared between
// consecutive trials only when its driver value changed at all. A change within
// DriverTolerance takes the equality branch.
func Groupwise(drivers, statistics [][]float64, opts Options) Result {
	var res Result
	for i := 1; i < len(drivers) && i < len(statistics); i++ {
		prev, cur := drivers[i-1], drivers[i]
		for g := 0; g < len(cur) && g < len(prev); g++ {
			if prev[g] == cur[g] {
				continue
			}
			if g >= len(statistics[i]) || g >= len(statistics[i-1]) {
				continue
			}
			res.Checked++
			v := comparePair(opts, i-1, i, g, prev[g], cur[g], statistics[i-1][g], statistics[i][g])
			if v != nil {
				res.Violations = append(res.Violations, *v)
			}
		}
	}
	return res
}

func comparePair(opts Options, from, to, group int, d0, d1, s0, s1 float64) *verdict.Violation {
	sign := 1.0
	if opts.Direction == scenario.Decreasing {
		sign = -1.0
	}
	dd := d1 - d0
	ds := (s1 - s0) * sign

	var reason verdict.Reason
	var detail string
	switch {
	case dd > opts.DriverTolerance:
		if ds > 0 {
			return nil
		}
		reason = verdict.ReasonWrongDirection
		detail = fmt.Sprintf("driver rose, statistic expected %s", opts.Direction)
	case dd < -opts.DriverTolerance:
		if ds < 0 {
			return nil
		}
		reason = verdict.ReasonWrongDirection
		detail = fmt.Sprintf("driver fell, statistic expected opposite of %s", opts.Direction)
	default:
		if math.Abs(s1-s0) <= opts.StatTolerance {
			return nil
		}
		reason = verdict.ReasonUnstable
		detail = fmt.Sprintf("driver unchanged within %g, statistic moved by more than %g", opts.DriverTolerance, opts.StatTolerance)
	}

	return &verdict.Violation{
		Reason:     reason,
		FromIndex:  from,
		ToIndex:    to,
		Group:      group,
		DriverFrom: d0,
		DriverTo:   d1,
		StatFrom:   s0,
		StatTo:     s1,
		Detail:     detail,
	}
}

// NonDecreasing checks that the cumulative infected count never drops
func NonDecreasing(series epidemic.TimeSeries) Result {
	var res Result
	for i := 1; i < len(series); i++ {
		res.Checked++
		if series[i].TotalInfected < series[i-1].TotalInfected {
			res.Violations = append(res.Violations, verdict.Violation{
				Reason:     verdict.ReasonDecreasingCount,
				FromIndex:  i - 1,
				ToIndex:    i,
				Group:      -1,
				DriverFrom: series[i-1].Time,
				DriverTo:   series[i].Time,
				StatFrom:   series[i-1].TotalInfected,
				StatTo:     series[i].TotalInfected,
				Detail:     "cumulative infected count decreased",
			})
		}
	}
	return res
}

// WithinRelative reports |observed-expected| <= tol*|expected|
func WithinRelative(observed, expected, tol float64) bool {
	return scalar.EqualWithinAbs(observed, expected, tol*math.Abs(expected))
}

// WithinAbsolute reports |observed-expected| <= tol
func WithinAbsolute(observed, expected, tol float64) bool {
	return scalar.EqualWithinAbs(observed, expected, tol)
}

// Relative checks observed against expected for trial index within a relative tolerance
func Relative(index int, observed, expected, tol float64) Result {
	res := Result{Checked: 1}
	if !WithinRelative(observed, expected, tol) {
		res.Violations = append(res.Violations, toleranceViolation(index, observed, expected,
			fmt.Sprintf("relative deviation %.4g exceeds %g", relDeviation(observed, expected), tol)))
	}
	return res
}

// Absolute checks observed against expected for trial index within an absolute tolerance
func Absolute(index int, observed, expected, tol float64) Result {
	res := Result{Checked: 1}
	if !WithinAbsolute(observed, expected, tol) {
		res.Violations = append(res.Violations, toleranceViolation(index, observed, expected,
			fmt.Sprintf("absolute deviation %.4g exceeds %g", math.Abs(observed-expected), tol)))
	}
	return res
}

func relDeviation(observed, expected float64) float64 {
	if expected == 0 {
		return math.Inf(1)
	}
	return math.Abs(observed-expected) / math.Abs(expected)
}

func toleranceViolation(index int, observed, expected float64, detail string) verdict.Violation {
	return verdict.Violation{
		Reason:    verdict.ReasonOutOfTolerance,
		FromIndex: index,
		ToIndex:   index,
		Group:     -1,
		StatFrom:  expected,
		StatTo:    observed,
		Detail:    detail,
	}
}
