package verdict

import (
	"fmt"
	"strings"
)

// Status is the overall result of verifying one scenario
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError:
		return true
	}
	return false
}

// Reason explains which rule a pair of trials broke
type Reason string

const (
	ReasonWrongDirection  Reason = "wrong_direction"
	ReasonUnstable        Reason = "unstable"
	ReasonOutOfTolerance  Reason = "out_of_tolerance"
	ReasonDecreasingCount Reason = "decreasing_count"
	ReasonStructure       Reason = "structure"
)

// Violation is one failed check. Index fields refer to positions in the trial
// sequence; Group is -1 unless the check was done per group.
type Violation struct {
	Reason     Reason  `json:"reason"`
	FromIndex  int     `json:"from_index"`
	ToIndex    int     `json:"to_index"`
	Group      int     `json:"group"`
	DriverFrom float64 `json:"driver_from"`
	DriverTo   float64 `json:"driver_to"`
	StatFrom   float64 `json:"stat_from"`
	StatTo     float64 `json:"stat_to"`
	Detail     string  `json:"detail,omitempty"`
}

func (v Violation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s between trials %d and %d", v.Reason, v.FromIndex, v.ToIndex)
	if v.Group >= 0 {
		fmt.Fprintf(&b, " (group %d)", v.Group)
	}
	fmt.Fprintf(&b, ": driver %g -> %g, statistic %g -> %g", v.DriverFrom, v.DriverTo, v.StatFrom, v.StatTo)
	if v.Detail != "" {
		b.WriteString(": ")
		b.WriteString(v.Detail)
	}
	return b.String()
}

// Summarize joins violations into a single message, truncated after limit entries
func Summarize(violations []Violation, limit int) string {
	if len(violations) == 0 {
		return ""
	}
	parts := make([]string, 0, limit+1)
	for i, v := range violations {
		if limit > 0 && i == limit {
			parts = append(parts, fmt.Sprintf("... and %d more", len(violations)-limit))
			break
		}
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}
