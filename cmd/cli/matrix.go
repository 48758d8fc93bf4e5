package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"epicalib/domain/scenario"
)

func newMatrixCmd() *cobra.Command {
	var (
		matrixFile string
		dump       bool
	)

	cmd := &cobra.Command{
		Use:   "matrix [scenario-or-kind...]",
		Short: "List or print the scenario matrix",
		Long: `List the scenarios a run would execute, or print them as YAML with --dump
to start a custom matrix file.

Example: epicalib matrix age_group_monotone --dump > susceptibility.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := scenario.Load(matrixFile)
			if err != nil {
				return err
			}
			m = m.Select(args)

			if dump {
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(m)
			}

			for _, sc := range m.Scenarios {
				swept := strings.Join(sc.SweptParams(), ", ")
				if swept == "" {
					swept = "-"
				}
				fmt.Printf("%-45s %-27s %2d trials  %s\n", sc.Name, sc.Kind, sc.TrialCount(), swept)
			}
			fmt.Printf("\n%d scenarios\n", len(m.Scenarios))
			return nil
		},
	}

	cmd.Flags().StringVar(&matrixFile, "matrix", "", "Scenario matrix YAML file (default: embedded matrix)")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the selected scenarios as YAML")

	return cmd
}
