package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ripcordhq/ripcord/pkg/types"
)

var healthCheckCmd = &cobra.Command{
	Use:   "health-check <environment>",
	Short: "Run the health check battery without deploying",
	Long: `Health-check runs the full verification battery against the
environment's current state and writes a timestamped report file. Nothing
is mutated. Exit status is zero only when no check failed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctl, err := newController(cmd.Context(), cfg, args[0])
		if err != nil {
			return err
		}
		defer ctl.Close()

		fmt.Printf("Checking %s\n", ctl.target)
		report := ctl.verifier.Verify(cmd.Context(), ctl.target)

		for _, res := range report.Results {
			switch res.Outcome {
			case types.CheckPass:
				fmt.Printf("✓ %-24s %s\n", res.Check, res.Detail)
			case types.CheckWarn:
				fmt.Printf("! %-24s %s\n", res.Check, res.Detail)
			default:
				fmt.Printf("✗ %-24s %s\n", res.Check, res.Detail)
			}
		}

		path, err := ctl.reporter.WriteHealth(ctl.target, report.Results, report.Pass())
		if err != nil {
			return err
		}
		fmt.Printf("Report: %s\n", path)

		pass, fail, warn := report.Counts()
		if !report.Pass() {
			return fmt.Errorf("%d check(s) failed (%d passed, %d warnings)", fail, pass, warn)
		}
		fmt.Printf("✓ %d check(s) passed, %d warning(s)\n", pass, warn)
		return nil
	},
}
