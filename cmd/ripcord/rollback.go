package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ripcordhq/ripcord/pkg/types"
)

var rollbackForce bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback <environment> [reason]",
	Short: "Roll the service back to a previous revision",
	Long: `Rollback resolves a rollback target from the revision history,
applies it, waits for the rollout to settle, and verifies the result.

The default graceful policy rolls to the immediately previous revision
with an ordinary rolling update. With --force the emergency policy is
used instead: the service is scaled to zero, moved to the oldest known
revision, and scaled back up. Emergency rollback causes an outage and
requires interactive confirmation.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reason := "operator requested"
		if len(args) > 1 {
			reason = args[1]
		}

		policy := types.RollbackGraceful
		if rollbackForce {
			policy = types.RollbackEmergency
			// Confirmation happens before anything touches the cluster.
			interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			if err := confirmEmergency(os.Stdin, os.Stdout, interactive); err != nil {
				return err
			}
		}

		ctl, err := newController(cmd.Context(), cfg, args[0])
		if err != nil {
			return err
		}
		defer ctl.Close()

		fmt.Printf("Rolling back %s (%s)\n", ctl.target, policy)
		res, err := ctl.coord.Rollback(cmd.Context(), ctl.target, policy, reason)
		if err != nil {
			if res.ReportPath != "" {
				fmt.Printf("Incident record: %s\n", res.ReportPath)
			}
			return err
		}

		if res.ReportPath != "" {
			fmt.Printf("Incident record: %s\n", res.ReportPath)
		}
		if res.Outcome != types.OutcomeRolledBack {
			return fmt.Errorf("rollback applied but service is unhealthy: MANUAL INTERVENTION REQUIRED")
		}
		if res.Incident != nil && res.Incident.Decision != nil {
			fmt.Printf("✓ Rolled back to %s\n", res.Incident.Decision.Target.Handle)
		} else {
			fmt.Println("✓ Rolled back")
		}
		return nil
	},
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackForce, "force", false, "emergency rollback: scale to zero and apply the oldest known revision")
}

// confirmEmergency gates the emergency policy behind an explicit "yes". A
// non-interactive invocation fails closed: scripts do not get to cause an
// outage by accident.
func confirmEmergency(in io.Reader, out io.Writer, interactive bool) error {
	if !interactive {
		return fmt.Errorf("--force requires interactive confirmation (stdin is not a terminal)")
	}

	fmt.Fprint(out, "Emergency rollback scales the service to ZERO before switching revisions.\n")
	fmt.Fprint(out, `Type "yes" to continue: `)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("confirmation aborted: %w", err)
	}
	if strings.TrimSpace(line) != "yes" {
		return fmt.Errorf("emergency rollback not confirmed")
	}
	return nil
}
