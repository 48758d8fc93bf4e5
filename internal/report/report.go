// Package report renders calibration outcomes as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
)

// maxViolationsPerScenario caps the violation table of one scenario
const maxViolationsPerScenario = 20

// Summary describes the spread of a scenario's compared statistic
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes the summary statistics of values. An empty input
// yields a zero summary.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, nil
	}
	data := stats.Float64Data(values)

	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return Summary{}, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return Summary{}, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Count: len(values), Mean: mean, StdDev: stdDev, Min: min, Max: max}, nil
}

// Markdown renders outcomes as a Markdown document
func Markdown(title string, outcomes []*scenario.Outcome) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# %s\n\n", title)
	passed, failed, errored := tally(outcomes)
	fmt.Fprintf(&b, "%d scenarios: **%d passed**, %d failed, %d aborted.\n\n", len(outcomes), passed, failed, errored)

	b.WriteString("| Scenario | Kind | Status | Trials | Violations | Mean | SD | Min | Max | Duration |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, o := range outcomes {
		s, err := Summarize(o.StatisticValues())
		if err != nil {
			log.Printf("[Report] summary of %s unavailable: %v", o.Scenario.Name, err)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s | %s | %s | %s | %s |\n",
			o.Scenario.Name, o.Scenario.Kind, statusLabel(o.Status), len(o.Trials), len(o.Violations),
			num(s.Mean), num(s.StdDev), num(s.Min), num(s.Max), o.Duration().Round(time.Millisecond))
	}
	b.WriteString("\n")

	for _, o := range outcomes {
		writeOutcome(&b, o)
	}
	return b.Bytes()
}

// HTML renders outcomes as a complete HTML page
func HTML(title string, outcomes []*scenario.Outcome) []byte {
	return ToHTML(title, Markdown(title, outcomes))
}

// ToHTML converts a Markdown document into a complete HTML page
func ToHTML(title string, md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.Render(doc, renderer)
}

func writeOutcome(b *bytes.Buffer, o *scenario.Outcome) {
	fmt.Fprintf(b, "## %s\n\n", o.Scenario.Name)
	if o.Scenario.Description != "" {
		fmt.Fprintf(b, "%s\n\n", o.Scenario.Description)
	}
	fmt.Fprintf(b, "- Run: `%s`\n- Status: %s\n", o.RunID, statusLabel(o.Status))
	if swept := o.Scenario.SweptParams(); len(swept) > 0 {
		fmt.Fprintf(b, "- Swept: %s\n", strings.Join(swept, ", "))
	}
	if o.Error != "" {
		fmt.Fprintf(b, "- Error: %s\n", o.Error)
	}
	b.WriteString("\n")

	if o.Baseline != nil {
		fmt.Fprintf(b, "Baseline statistic: %s (%d transmissions)\n\n", num(o.Baseline.Statistic), o.Baseline.Events)
	}

	if len(o.Trials) > 0 {
		b.WriteString("| Trial | Driver | Statistic | Expected | Final infected | Events |\n")
		b.WriteString("|---:|---:|---:|---:|---:|---:|\n")
		for _, t := range o.Trials {
			fmt.Fprintf(b, "| %d | %s | %s | %s | %s | %d |\n",
				t.Index, num(t.Driver), num(t.Statistic), expected(o.Scenario.Kind, t),
				num(t.Statistics.FinalTotalInfected), t.Events)
		}
		b.WriteString("\n")
	}

	if len(o.Violations) > 0 {
		violations := append([]verdict.Violation(nil), o.Violations...)
		sort.SliceStable(violations, func(i, j int) bool { return violations[i].FromIndex < violations[j].FromIndex })

		b.WriteString("| Reason | Trials | Group | Detail |\n")
		b.WriteString("|---|---|---:|---|\n")
		for i, v := range violations {
			if i == maxViolationsPerScenario {
				fmt.Fprintf(b, "\n_%d more violations omitted._\n", len(violations)-i)
				break
			}
			group := "-"
			if v.Group >= 0 {
				group = fmt.Sprint(v.Group)
			}
			fmt.Fprintf(b, "| %s | %d → %d | %s | %s |\n", v.Reason, v.FromIndex, v.ToIndex, group, escape(v.Detail))
		}
		b.WriteString("\n")
	}
}

func expected(kind scenario.Kind, t scenario.TrialRecord) string {
	switch kind {
	case scenario.KindGrowthOracle:
		return num(t.Statistics.OracleRate)
	case scenario.KindCounterfactual:
		return num(t.Statistics.ExpectedRatio)
	default:
		return "-"
	}
}

func tally(outcomes []*scenario.Outcome) (passed, failed, errored int) {
	for _, o := range outcomes {
		switch o.Status {
		case verdict.StatusPassed:
			passed++
		case verdict.StatusFailed:
			failed++
		default:
			errored++
		}
	}
	return passed, failed, errored
}

func statusLabel(s verdict.Status) string {
	switch s {
	case verdict.StatusPassed:
		return "passed"
	case verdict.StatusFailed:
		return "**failed**"
	default:
		return "**error**"
	}
}

func num(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
