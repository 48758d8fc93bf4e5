package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"epicalib/adapters/db"
	"epicalib/adapters/excel"
	"epicalib/domain/scenario"
	"epicalib/internal/calibration"
	"epicalib/internal/config"
	"epicalib/internal/report"
	"epicalib/ports"
)

func newRunCmd() *cobra.Command {
	var (
		matrixFile  string
		binary      string
		parallelism int
		keep        bool
		noStore     bool
		xlsxPath    string
		mdPath      string
	)

	cmd := &cobra.Command{
		Use:   "run [scenario-or-kind...]",
		Short: "Run the scenario matrix against the simulator",
		Long: `Run every scenario of the matrix, or only those whose name contains one of the
arguments or whose kind equals one of them.

Example: epicalib run counterfactual_ monotone --parallelism 3 --xlsx results.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("matrix") {
				cfg.Suite.MatrixFile = matrixFile
			}
			if binary != "" {
				cfg.Simulator.Binary = binary
			}
			if cmd.Flags().Changed("parallelism") {
				cfg.Suite.Parallelism = parallelism
			}
			if keep {
				cfg.Workspace.KeepArtifacts = true
			}
			if xlsxPath != "" {
				cfg.Report.XLSXPath = xlsxPath
			}
			if mdPath != "" {
				cfg.Report.MarkdownPath = mdPath
			}
			if err := cfg.RequireSimulator(); err != nil {
				return err
			}
			return runSuite(cmd.Context(), cfg, args, !noStore)
		},
	}

	cmd.Flags().StringVar(&matrixFile, "matrix", "", "Scenario matrix YAML file (default: embedded matrix)")
	cmd.Flags().StringVar(&binary, "simulator", "", "Simulator executable (overrides SIMULATOR_BIN)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "Scenarios run at the same time")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep scenario workspaces after the run")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not save outcomes to the result database")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write an Excel workbook of the outcomes")
	cmd.Flags().StringVar(&mdPath, "md", "", "Write a Markdown report of the outcomes")

	return cmd
}

func runSuite(ctx context.Context, cfg *config.Config, filters []string, persist bool) error {
	m, err := scenario.Load(cfg.Suite.MatrixFile)
	if err != nil {
		return err
	}
	m = m.Select(filters)
	if len(m.Scenarios) == 0 {
		return fmt.Errorf("no scenario matches %v", filters)
	}

	var store ports.ResultStore
	if persist {
		conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		store = db.NewResultRepository(conn)
	}

	if cfg.Suite.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Suite.Timeout)
		defer cancel()
	}

	suite := calibration.NewSuite(calibration.SuiteConfig{
		BaselineParams: cfg.Simulator.BaselineParams,
		HouseholdFile:  cfg.Simulator.HouseholdFile,
		LineNumber:     cfg.Simulator.LineNumber,
		WorkspaceRoot:  cfg.Workspace.Root,
		KeepArtifacts:  cfg.Workspace.KeepArtifacts,
		Parallelism:    cfg.Suite.Parallelism,
	}, calibration.ExecutorFactory(cfg.Simulator.Binary, cfg.Simulator.TimeSeriesFile, cfg.Simulator.TransmissionFile), store, nil)

	fmt.Printf("Running %d scenarios with %s\n", len(m.Scenarios), cfg.Simulator.Binary)
	result, err := suite.Run(ctx, m)
	if err != nil && result == nil {
		return err
	}

	printOutcomes(result.Outcomes)
	if werr := writeReports(cfg.Report, fmt.Sprintf("Calibration suite %s", result.SuiteID), result.Outcomes); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	return result.Err()
}

func printOutcomes(outcomes []*scenario.Outcome) {
	fmt.Println()
	for _, o := range outcomes {
		fmt.Printf("%-8s %-45s %2d trials  %v\n", o.Status, o.Scenario.Name, len(o.Trials), o.Duration().Round(time.Millisecond))
		if o.Error != "" {
			fmt.Printf("         %s\n", o.Error)
		}
	}
	fmt.Println()
}

func writeReports(cfg config.ReportConfig, title string, outcomes []*scenario.Outcome) error {
	if cfg.XLSXPath != "" {
		if err := excel.WriteWorkbook(cfg.XLSXPath, outcomes); err != nil {
			return err
		}
		fmt.Printf("Workbook written to %s\n", cfg.XLSXPath)
	}
	if cfg.MarkdownPath != "" {
		if err := os.WriteFile(cfg.MarkdownPath, report.Markdown(title, outcomes), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", cfg.MarkdownPath)
	}
	return nil
}
