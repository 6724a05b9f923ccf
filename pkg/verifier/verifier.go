package verifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/health"
	"github.com/ripcordhq/ripcord/pkg/metrics"
	"github.com/ripcordhq/ripcord/pkg/types"
)

// Check names, in battery order.
const (
	CheckInfrastructure = "infrastructure"
	CheckResources      = "resources"
	CheckActivity       = "service-activity"
	CheckRollout        = "rollout-completion"
	CheckEndpoint       = "endpoint-reachability"
	CheckDependency     = "dependency-reachability"
)

// healthyStackStates are the declared-infrastructure states that count as
// existing and settled.
var healthyStackStates = map[string]bool{
	"CREATE_COMPLETE":          true,
	"UPDATE_COMPLETE":          true,
	"UPDATE_ROLLBACK_COMPLETE": true,
}

// Options configures a verification pass for one environment.
type Options struct {
	// HealthPath is appended to the public endpoint for the HTTP probe.
	HealthPath string

	// DependencyAddr is the host:port of a declared downstream dependency.
	// Empty means no dependency check is declared.
	DependencyAddr string

	// Secrets are the declared secret handles resolved by the resource check.
	Secrets []string

	// EndpointPolicy bounds the endpoint probe's internal retries.
	EndpointPolicy health.RetryPolicy
}

// Report is the aggregated result of one verification pass.
type Report struct {
	Results []types.HealthCheckResult
}

// Pass reports the aggregate verdict: true only if every non-Warn check
// passed. Warn alone does not fail a rollout but is recorded.
func (r Report) Pass() bool {
	for _, res := range r.Results {
		if res.Outcome == types.CheckFail {
			return false
		}
	}
	return len(r.Results) > 0
}

// Counts returns the number of pass, fail and warn results.
func (r Report) Counts() (pass, fail, warn int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case types.CheckPass:
			pass++
		case types.CheckFail:
			fail++
		case types.CheckWarn:
			warn++
		}
	}
	return
}

// Verifier runs the ordered battery of independent health checks. It never
// mutates cluster state.
type Verifier struct {
	facade cluster.Facade
	opts   Options
	logger zerolog.Logger
}

// New creates a verifier for the given facade.
func New(facade cluster.Facade, opts Options, logger zerolog.Logger) *Verifier {
	if opts.EndpointPolicy.MaxAttempts == 0 {
		opts.EndpointPolicy = health.DefaultRetryPolicy()
	}
	return &Verifier{facade: facade, opts: opts, logger: logger}
}

// Verify runs the battery against the target. The infrastructure check is a
// prerequisite: if the declared infrastructure is absent there is nothing
// meaningful to probe, so the battery short-circuits to a single Fail. The
// remaining checks always run to completion, concurrently, because the
// aggregated detail is needed for the incident record; their results are
// ordered by battery position before aggregation.
func (v *Verifier) Verify(ctx context.Context, target types.DeploymentTarget) Report {
	infra := v.checkInfrastructure(ctx, target)
	v.observe(infra)
	if infra.Outcome == types.CheckFail {
		return Report{Results: []types.HealthCheckResult{infra}}
	}

	checks := []func(context.Context, types.DeploymentTarget) types.HealthCheckResult{
		v.checkResources,
		v.checkActivity,
		v.checkRollout,
		v.checkEndpoint,
	}
	if v.opts.DependencyAddr != "" {
		checks = append(checks, v.checkDependency)
	}

	results := make([]types.HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(slot int, fn func(context.Context, types.DeploymentTarget) types.HealthCheckResult) {
			defer wg.Done()
			results[slot] = fn(ctx, target)
		}(i, check)
	}
	wg.Wait()

	all := append([]types.HealthCheckResult{infra}, results...)
	for _, res := range all[1:] {
		v.observe(res)
	}
	return Report{Results: all}
}

func (v *Verifier) observe(res types.HealthCheckResult) {
	metrics.CheckOutcomes.WithLabelValues(res.Check, string(res.Outcome)).Inc()
	v.logger.Debug().
		Str("check", res.Check).
		Str("outcome", string(res.Outcome)).
		Str("detail", res.Detail).
		Msg("health check")
}

func result(check string, outcome types.CheckOutcome, detail string) types.HealthCheckResult {
	return types.HealthCheckResult{
		Check:     check,
		Outcome:   outcome,
		Detail:    detail,
		CheckedAt: time.Now(),
	}
}

func (v *Verifier) checkInfrastructure(ctx context.Context, target types.DeploymentTarget) types.HealthCheckResult {
	status, err := v.facade.StackStatus(ctx, target)
	if err != nil {
		return result(CheckInfrastructure, types.CheckFail,
			fmt.Sprintf("declared infrastructure unresolvable: %v", err))
	}
	if !healthyStackStates[status] {
		return result(CheckInfrastructure, types.CheckFail,
			fmt.Sprintf("stack in state %s", status))
	}
	return result(CheckInfrastructure, types.CheckPass,
		fmt.Sprintf("stack in state %s", status))
}

func (v *Verifier) checkResources(ctx context.Context, target types.DeploymentTarget) types.HealthCheckResult {
	var missing []string
	if err := v.facade.RegistryExists(ctx, target); err != nil {
		missing = append(missing, fmt.Sprintf("registry: %v", err))
	}
	if err := v.facade.ClusterExists(ctx, target); err != nil {
		missing = append(missing, fmt.Sprintf("cluster: %v", err))
	}
	for _, name := range v.opts.Secrets {
		if err := v.facade.SecretExists(ctx, name); err != nil {
			missing = append(missing, fmt.Sprintf("secret %s: %v", name, err))
		}
	}

	if len(missing) > 0 {
		return result(CheckResources, types.CheckFail, strings.Join(missing, "; "))
	}
	return result(CheckResources, types.CheckPass,
		fmt.Sprintf("registry, cluster and %d secret handle(s) resolve", len(v.opts.Secrets)))
}

func (v *Verifier) checkActivity(ctx context.Context, target types.DeploymentTarget) types.HealthCheckResult {
	status, err := v.facade.DescribeService(ctx, target)
	if err != nil {
		return result(CheckActivity, types.CheckFail,
			fmt.Sprintf("describe failed: %v", err))
	}
	if !status.Active() {
		return result(CheckActivity, types.CheckFail,
			fmt.Sprintf("%d/%d instances running", status.RunningCount, status.DesiredCount))
	}
	return result(CheckActivity, types.CheckPass,
		fmt.Sprintf("%d/%d instances running", status.RunningCount, status.DesiredCount))
}

func (v *Verifier) checkRollout(ctx context.Context, target types.DeploymentTarget) types.HealthCheckResult {
	status, err := v.facade.DescribeService(ctx, target)
	if err != nil {
		return result(CheckRollout, types.CheckFail,
			fmt.Sprintf("describe failed: %v", err))
	}
	switch status.State {
	case types.RolloutCompleted:
		return result(CheckRollout, types.CheckPass,
			fmt.Sprintf("rollout completed at revision %s", status.CurrentRevision.Handle))
	case types.RolloutInProgress, types.RolloutPending:
		// Still moving. The caller decides whether to wait longer.
		return result(CheckRollout, types.CheckWarn,
			fmt.Sprintf("rollout still %s", status.State))
	default:
		return result(CheckRollout, types.CheckFail,
			fmt.Sprintf("rollout state %s", status.State))
	}
}

func (v *Verifier) checkEndpoint(ctx context.Context, target types.DeploymentTarget) types.HealthCheckResult {
	endpoint, err := v.facade.PublicEndpoint(ctx, target)
	if err != nil {
		return result(CheckEndpoint, types.CheckFail,
			fmt.Sprintf("no public endpoint: %v", err))
	}

	url := strings.TrimSuffix(endpoint, "/") + v.opts.HealthPath
	probe := health.NewHTTPChecker(url).WithPolicy(v.opts.EndpointPolicy)
	res := probe.Check(ctx)
	if !res.Healthy {
		return result(CheckEndpoint, types.CheckFail,
			fmt.Sprintf("%s: %s", url, res.Message))
	}
	return result(CheckEndpoint, types.CheckPass,
		fmt.Sprintf("%s: %s", url, res.Message))
}

// checkDependency is best-effort: dependency reachability may legitimately be
// network-restricted, so failure is recorded as Warn, never Fail.
func (v *Verifier) checkDependency(ctx context.Context, target types.DeploymentTarget) types.HealthCheckResult {
	probe := health.NewTCPChecker(v.opts.DependencyAddr)
	res := probe.Check(ctx)
	if !res.Healthy {
		return result(CheckDependency, types.CheckWarn, res.Message)
	}
	return result(CheckDependency, types.CheckPass, res.Message)
}
