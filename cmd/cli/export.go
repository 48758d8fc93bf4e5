package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"epicalib/adapters/db"
	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/internal/config"
	"epicalib/internal/report"
	"epicalib/ports"
)

func newExportCmd() *cobra.Command {
	var (
		runID    string
		suiteID  string
		xlsxPath string
		mdPath   string
		htmlPath string
		jsonDir  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored outcomes as Excel, Markdown, HTML or JSON",
		Long: `Export one run or a whole suite from the result database.

Example: epicalib export --suite 0190f2c4-... --xlsx suite.xlsx --html suite.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (runID == "") == (suiteID == "") {
				return fmt.Errorf("exactly one of --run and --suite is required")
			}
			if xlsxPath == "" && mdPath == "" && htmlPath == "" && jsonDir == "" {
				return fmt.Errorf("at least one of --xlsx, --md, --html and --json is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer conn.Close()
			repo := db.NewResultRepository(conn)

			var (
				title    string
				outcomes []*scenario.Outcome
			)
			if runID != "" {
				o, err := repo.GetOutcome(cmd.Context(), core.RunID(runID))
				if err != nil {
					return err
				}
				title, outcomes = o.Scenario.Name, []*scenario.Outcome{o}
			} else {
				id := core.SuiteID(suiteID)
				runs, err := repo.ListRuns(cmd.Context(), ports.RunFilters{SuiteID: &id})
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("suite %s has no stored runs", suiteID)
				}
				for i := len(runs) - 1; i >= 0; i-- {
					o, err := repo.GetOutcome(cmd.Context(), runs[i].RunID)
					if err != nil {
						return err
					}
					outcomes = append(outcomes, o)
				}
				title = fmt.Sprintf("Calibration suite %s", suiteID)
			}

			if err := writeReports(config.ReportConfig{XLSXPath: xlsxPath, MarkdownPath: mdPath}, title, outcomes); err != nil {
				return err
			}
			if htmlPath != "" {
				if err := os.WriteFile(htmlPath, report.HTML(title, outcomes), 0o644); err != nil {
					return fmt.Errorf("failed to write HTML report: %w", err)
				}
				fmt.Printf("HTML report written to %s\n", htmlPath)
			}
			if jsonDir != "" {
				if err := writeOutcomeFiles(jsonDir, outcomes); err != nil {
					return err
				}
				fmt.Printf("%d outcome files written to %s\n", len(outcomes), jsonDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run ID to export")
	cmd.Flags().StringVar(&suiteID, "suite", "", "Suite ID to export")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Excel workbook path")
	cmd.Flags().StringVar(&mdPath, "md", "", "Markdown report path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "HTML report path")
	cmd.Flags().StringVar(&jsonDir, "json", "", "Directory for one JSON file per outcome (importable with cmd/migrate)")

	return cmd
}

// writeOutcomeFiles writes each outcome to <dir>/<scenario>_<run>.json
func writeOutcomeFiles(dir string, outcomes []*scenario.Outcome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, o := range outcomes {
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode outcome %s: %w", o.RunID, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", o.Scenario.Name, o.RunID))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
