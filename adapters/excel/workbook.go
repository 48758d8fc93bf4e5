// Package excel exports calibration outcomes as an xlsx workbook.
package excel

import (
	"fmt"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"epicalib/domain/scenario"
	"epicalib/internal/report"
)

// SummarySheet is the first sheet of every exported workbook
const SummarySheet = "Summary"

const maxSheetName = 31

var summaryHeader = []interface{}{
	"Scenario", "Kind", "Status", "Trials", "Violations",
	"Mean", "SD", "Min", "Max", "Duration (s)", "Run", "Error",
}

var trialHeader = []string{
	"Trial", "Driver", "Statistic", "Final infected", "Growth rate", "Oracle rate",
	"Network ratio", "Expected ratio", "Events", "Fingerprint",
}

// WriteWorkbook writes a Summary sheet plus one sheet per scenario listing
// its trials and swept parameter values
func WriteWorkbook(path string, outcomes []*scenario.Outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, SummarySheet, 1, summaryHeader); err != nil {
		return err
	}
	if err := styleHeader(f, SummarySheet, len(summaryHeader), bold); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for i, o := range outcomes {
		s, err := report.Summarize(o.StatisticValues())
		if err != nil {
			return fmt.Errorf("failed to summarise %s: %w", o.Scenario.Name, err)
		}
		row := []interface{}{
			o.Scenario.Name, string(o.Scenario.Kind), string(o.Status), len(o.Trials), len(o.Violations),
			s.Mean, s.StdDev, s.Min, s.Max, o.Duration().Seconds(), o.RunID.String(), o.Error,
		}
		if err := writeRow(f, SummarySheet, i+2, row); err != nil {
			return err
		}

		name := sheetName(o.Scenario.Name, used)
		if err := writeScenarioSheet(f, name, o, bold); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 42); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	log.Printf("[Excel] wrote %d scenarios to %s", len(outcomes), path)
	return nil
}

func writeScenarioSheet(f *excelize.File, name string, o *scenario.Outcome, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	swept := o.Scenario.SweptParams()
	header := make([]interface{}, 0, len(trialHeader)+len(swept))
	for _, h := range trialHeader {
		header = append(header, h)
	}
	for _, p := range swept {
		header = append(header, p)
	}
	if err := writeRow(f, name, 1, header); err != nil {
		return err
	}
	if err := styleHeader(f, name, len(header), headerStyle); err != nil {
		return err
	}

	for i, t := range o.Trials {
		row := []interface{}{
			t.Index, t.Driver, t.Statistic, t.Statistics.FinalTotalInfected,
			t.Statistics.GrowthRate, t.Statistics.OracleRate,
			t.Statistics.NetworkRatio, t.Statistics.ExpectedRatio,
			t.Events, string(t.Fingerprint),
		}
		for _, p := range swept {
			row = append(row, t.Parameters[p])
		}
		if err := writeRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, columns, style int) error {
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

// sheetName derives a unique sheet name within Excel's limits
func sheetName(scenarioName string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, scenarioName)
	if clean == "" {
		clean = "scenario"
	}

	name := truncate(clean, maxSheetName)
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		name = truncate(clean, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
