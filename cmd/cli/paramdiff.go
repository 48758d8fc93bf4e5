package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"epicalib/adapters/params"
)

func newParamDiffCmd() *cobra.Command {
	var (
		baseline  string
		valcheck  bool
		update    bool
		line      int
		overrides map[string]string
		renames   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "paramdiff <file-or-glob>...",
		Short: "Check parameter files against the current parameter schema",
		Long: `Compare old parameter files with the baseline parameter schema and optionally
rewrite them to match it. --override and --rename imply --update. An updated
foo.csv is left as foo.bak.

Example: epicalib paramdiff old/*.csv --rename relative_transmission_workplace=relative_transmission_work`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(overrides) > 0 || len(renames) > 0 {
				update = true
			}

			files, err := expandGlobs(args)
			if err != nil {
				return err
			}

			inconsistent := 0
			for _, file := range files {
				diff, err := params.DiffSchema(baseline, file, params.DiffOptions{CompareValues: valcheck, LineNumber: line})
				if err != nil {
					return err
				}
				printDiff(diff)
				if !diff.Consistent() {
					inconsistent++
				}

				if update {
					if err := params.UpdateToSchema(baseline, file, params.UpdateOptions{Overrides: overrides, Renames: renames}); err != nil {
						return err
					}
					fmt.Printf("\t%s updated to the new scheme\n", filepath.Base(file))
				}
			}

			if inconsistent > 0 && !update {
				return fmt.Errorf("%d of %d files are not consistent with %s", inconsistent, len(files), baseline)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseline, "newbaseline", "tests/data/baseline_parameters.csv", "File with the new parameter schema")
	cmd.Flags().BoolVar(&valcheck, "valcheck", false, "Also check that parameter values match")
	cmd.Flags().BoolVar(&update, "update", false, "Rewrite the files to match the new scheme")
	cmd.Flags().IntVar(&line, "line", 1, "Data row compared by --valcheck")
	cmd.Flags().StringToStringVar(&overrides, "override", nil, "Value for a parameter in the new scheme (name=value)")
	cmd.Flags().StringToStringVar(&renames, "rename", nil, "Parameter of the new scheme taken from an old name (new=old)")

	return cmd
}

func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no file matches %q", pattern)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func printDiff(diff *params.SchemaDiff) {
	name := filepath.Base(diff.File)
	if diff.Consistent() {
		fmt.Printf("%s names match new scheme.\n", name)
	} else {
		fmt.Printf("%s is not consistent with current parameters.\n", name)
		if len(diff.OnlyInNew) > 0 {
			fmt.Printf("\tOnly in the new scheme: %s\n", strings.Join(diff.OnlyInNew, ", "))
		}
		if len(diff.OnlyInOld) > 0 {
			fmt.Printf("\tOnly in the old scheme: %s\n", strings.Join(diff.OnlyInOld, ", "))
		}
	}
	for _, v := range diff.ValueMismatch {
		fmt.Printf("\t%s: baseline %s, file %s\n", v.Name, v.Baseline, v.Candidate)
	}
}
