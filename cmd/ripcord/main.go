package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/config"
	"github.com/ripcordhq/ripcord/pkg/coordinator"
	"github.com/ripcordhq/ripcord/pkg/health"
	"github.com/ripcordhq/ripcord/pkg/log"
	"github.com/ripcordhq/ripcord/pkg/report"
	"github.com/ripcordhq/ripcord/pkg/rollback"
	"github.com/ripcordhq/ripcord/pkg/store"
	"github.com/ripcordhq/ripcord/pkg/types"
	"github.com/ripcordhq/ripcord/pkg/verifier"
	"github.com/ripcordhq/ripcord/pkg/waiter"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logJSON    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ripcord",
	Short: "Ripcord - deployment rollout verifier and rollback controller",
	Long: `Ripcord verifies that a deployed service revision is actually healthy
and pulls it back when it is not.

A deployment is driven through artifact and infrastructure collaborators,
a bounded rollout wait, and a multi-signal health verification. A failed
rollout triggers at most one automatic rollback; every failed run leaves
an incident record behind.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Ripcord version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ripcord.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(healthCheckCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(reportCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: logJSON})
	return cfg, nil
}

// controller bundles everything one invocation needs against one environment.
type controller struct {
	cfg      *config.Config
	target   types.DeploymentTarget
	spec     config.EnvironmentSpec
	facade   cluster.Facade
	store    *store.Store
	verifier *verifier.Verifier
	reporter *report.Reporter
	coord    *coordinator.Coordinator
}

func newController(ctx context.Context, cfg *config.Config, envArg string) (*controller, error) {
	env, err := types.ParseEnvironment(envArg)
	if err != nil {
		return nil, err
	}
	target, spec, err := cfg.Target(env)
	if err != nil {
		return nil, err
	}

	facade, err := cluster.NewAWSFacade(ctx, cluster.AWSOptions{
		Region:     target.Region,
		Stack:      spec.Stack,
		Repository: spec.Repository,
		Family:     spec.Service,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	logger := log.WithTarget(target.Cluster, target.Service)
	v := verifier.New(facade, verifier.Options{
		HealthPath:     spec.HealthPath,
		DependencyAddr: spec.DependencyAddr,
		Secrets:        spec.Secrets,
		EndpointPolicy: health.DefaultRetryPolicy(),
	}, logger)
	reporter := report.New(cfg.ReportsDir, st, logger)

	coordCfg := coordinator.Config{
		DeployWait: waiter.Policy{
			MaxAttempts: cfg.Budgets.DeployMaxAttempts,
			Interval:    cfg.Budgets.DeployInterval,
		},
		RollbackWait: waiter.Policy{
			MaxAttempts: cfg.Budgets.RollbackMaxAttempts,
			Interval:    cfg.Budgets.RollbackInterval,
		},
		DesiredCount: spec.DesiredCount,
	}
	coord := coordinator.New(facade, v,
		waiter.New(facade, logger),
		rollback.NewResolver(facade, logger),
		reporter,
		coordinator.NewLocker(st, cfg.Budgets.InvocationTimeout),
		coordCfg, logger)

	return &controller{
		cfg:      cfg,
		target:   target,
		spec:     spec,
		facade:   facade,
		store:    st,
		verifier: v,
		reporter: reporter,
		coord:    coord,
	}, nil
}

func (c *controller) Close() {
	if err := c.store.Close(); err != nil {
		log.Errorf("failed to close store", err)
	}
}
