package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ripcordhq/ripcord/pkg/store"
	"github.com/ripcordhq/ripcord/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect recorded incidents",
}

var reportListCmd = &cobra.Command{
	Use:   "list <environment>",
	Short: "List incident records for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		env, err := types.ParseEnvironment(args[0])
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer st.Close()

		incidents, err := st.ListIncidents(env)
		if err != nil {
			return err
		}
		if len(incidents) == 0 {
			fmt.Printf("No incidents recorded for %s\n", env)
			return nil
		}

		fmt.Printf("%-36s  %-20s  %-12s  %s\n", "ID", "STARTED", "OUTCOME", "TRIGGER")
		for _, rec := range incidents {
			fmt.Printf("%-36s  %-20s  %-12s  %s\n",
				rec.ID,
				rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Outcome,
				rec.Trigger,
			)
		}
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportListCmd)
}
