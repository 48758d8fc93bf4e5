package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"epicalib/internal/oracle"
)

func newOracleCmd() *cobra.Command {
	var reproduction, mean, sd float64

	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Solve the renewal equation for the early exponential growth rate",
		Long: `Solve R * (1 + r*theta)^(-k) = 1 for r with a Gamma(mean, sd) infectious period.

Example: epicalib oracle --R 3 --mean 6 --sd 2.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := oracle.AnalyticGrowthRate(reproduction, mean, sd)
			if err != nil {
				return err
			}
			theta, k := oracle.GammaShape(mean, sd)
			fmt.Printf("R=%g mean=%g sd=%g\n", reproduction, mean, sd)
			fmt.Printf("gamma scale theta=%.6g shape k=%.6g\n", theta, k)
			fmt.Printf("growth rate r=%.10g (doubling time %.4g days)\n", rate, doublingTime(rate))
			fmt.Printf("residual %.3g\n", oracle.CharacteristicResidual(rate, reproduction, mean, sd))
			return nil
		},
	}

	cmd.Flags().Float64Var(&reproduction, "R", 3, "Basic reproduction number (infectious_rate)")
	cmd.Flags().Float64Var(&mean, "mean", 6, "Mean infectious period")
	cmd.Flags().Float64Var(&sd, "sd", 2.5, "Standard deviation of the infectious period")

	return cmd
}

func doublingTime(rate float64) float64 {
	if rate == 0 {
		return 0
	}
	return 0.6931471805599453 / rate
}
