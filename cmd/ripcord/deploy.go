package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ripcordhq/ripcord/pkg/collab"
	"github.com/ripcordhq/ripcord/pkg/config"
	"github.com/ripcordhq/ripcord/pkg/coordinator"
	"github.com/ripcordhq/ripcord/pkg/log"
	"github.com/ripcordhq/ripcord/pkg/metrics"
	"github.com/ripcordhq/ripcord/pkg/types"
)

var (
	deployImageTag          string
	deployEmergencyFallback bool
	deployMetricsAddr       string
)

var deployCmd = &cobra.Command{
	Use:   "deploy <environment>",
	Short: "Deploy the newest revision and verify the rollout",
	Long: `Deploy runs the full control flow against one environment: the
artifact-ready and infra-apply collaborators, the version change, a bounded
rollout wait, and the health check battery. A rollout that fails or times
out triggers one automatic rollback to the previous revision.

Exit status is zero only when the deployment succeeded and stayed healthy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.Budgets.InvocationTimeout)
		defer cancel()

		ctl, err := newController(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		defer ctl.Close()

		if deployMetricsAddr != "" {
			shutdown := serveMetrics(deployMetricsAddr)
			defer shutdown()
		}

		fmt.Printf("Deploying %s\n", ctl.target)
		res, err := ctl.coord.Deploy(ctx, ctl.target, deploySteps(ctl.spec), deployEmergencyFallback)
		if err != nil {
			if res.ReportPath != "" {
				fmt.Printf("Incident record: %s\n", res.ReportPath)
			}
			return err
		}

		switch res.Outcome {
		case types.OutcomeSucceeded:
			fmt.Println("✓ Deployment succeeded")
			return nil
		case types.OutcomeRolledBack:
			fmt.Println("✗ Deployment failed, rolled back to previous revision")
		default:
			fmt.Println("✗ Deployment failed, rollback unhealthy: MANUAL INTERVENTION REQUIRED")
		}
		if res.ReportPath != "" {
			fmt.Printf("Incident record: %s\n", res.ReportPath)
		}
		return fmt.Errorf("deployment %s", res.Outcome)
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployImageTag, "image-tag", "", "image tag passed to the artifact-ready collaborator")
	deployCmd.Flags().BoolVar(&deployEmergencyFallback, "emergency-fallback", false, "use the emergency rollback policy if the rollout fails")
	deployCmd.Flags().StringVar(&deployMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address for the run")
}

// deploySteps builds the collaborator hooks from the environment's configured
// commands. The image tag rides along as the last argument so the artifact
// command knows which build to check.
func deploySteps(spec config.EnvironmentSpec) coordinator.Steps {
	logger := log.WithComponent("collab")

	artifactArgv := spec.ArtifactReadyCmd
	if deployImageTag != "" && len(artifactArgv) > 0 {
		artifactArgv = append(append([]string{}, artifactArgv...), deployImageTag)
	}

	var steps coordinator.Steps
	if s := collab.NewCommandStep("artifact-ready", artifactArgv, logger); s != nil {
		steps.ArtifactReady = s
	}
	if s := collab.NewCommandStep("infra-apply", spec.InfraApplyCmd, logger); s != nil {
		steps.InfraApply = s
	}
	return steps
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server failed", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
