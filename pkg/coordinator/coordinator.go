package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/collab"
	"github.com/ripcordhq/ripcord/pkg/metrics"
	"github.com/ripcordhq/ripcord/pkg/report"
	"github.com/ripcordhq/ripcord/pkg/rollback"
	"github.com/ripcordhq/ripcord/pkg/types"
	"github.com/ripcordhq/ripcord/pkg/verifier"
	"github.com/ripcordhq/ripcord/pkg/waiter"
)

// State names a position in the deployment control flow. States only ever
// advance; a failed step routes to the rollback branch, never backward.
type State string

const (
	StateIdle           State = "idle"
	StateArtifactReady  State = "artifact-ready"
	StateInfraApplied   State = "infra-applied"
	StateRolloutWaiting State = "rollout-waiting"
	StateHealthChecking State = "health-checking"
	StateRollingBack    State = "rolling-back"
	StateSucceeded      State = "succeeded"
	StateRolledBack     State = "rolled-back"
	StateAbandoned      State = "abandoned"
)

// Config carries the per-invocation budgets.
type Config struct {
	DeployWait   waiter.Policy
	RollbackWait waiter.Policy

	// DesiredCount restores capacity after an emergency rollback.
	DesiredCount int
}

// Steps are the external collaborator hooks run before the version change.
// A nil step is skipped.
type Steps struct {
	ArtifactReady collab.Step
	InfraApply    collab.Step
}

// Result is what a finished invocation hands back to the CLI.
type Result struct {
	Outcome    types.InvocationOutcome
	ReportPath string
	Incident   *types.IncidentRecord
}

// Coordinator drives one deployment or rollback invocation through the
// control flow: collaborators, version change, rollout wait, verification,
// and at most one automatic rollback. It never takes a third automatic
// action; a second failure is recorded as abandoned and left to a human.
type Coordinator struct {
	facade   cluster.Facade
	verifier *verifier.Verifier
	waiter   *waiter.Waiter
	resolver *rollback.Resolver
	reporter *report.Reporter
	locker   *Locker
	cfg      Config
	logger   zerolog.Logger
}

func New(facade cluster.Facade, v *verifier.Verifier, w *waiter.Waiter, r *rollback.Resolver, rep *report.Reporter, locker *Locker, cfg Config, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		facade:   facade,
		verifier: v,
		waiter:   w,
		resolver: r,
		reporter: rep,
		locker:   locker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Deploy runs the full control flow for a new revision. The collaborator
// steps are expected to register the revision with the platform; the newest
// entry in the revision history after they finish is what gets rolled out.
// emergencyFallback selects the Emergency rollback policy should the rollout
// fail, instead of the default Graceful.
func (c *Coordinator) Deploy(ctx context.Context, target types.DeploymentTarget, steps Steps, emergencyFallback bool) (Result, error) {
	release, err := c.locker.Acquire(target.Key())
	if err != nil {
		return Result{}, err
	}
	defer release()

	inv := c.begin(target)
	c.transition(target, StateIdle)

	if err := c.runStep(ctx, steps.ArtifactReady); err != nil {
		return c.abort(inv, fmt.Sprintf("artifact-ready step failed: %v", err), err)
	}
	c.transition(target, StateArtifactReady)

	if err := c.runStep(ctx, steps.InfraApply); err != nil {
		return c.abort(inv, fmt.Sprintf("infra-apply step failed: %v", err), err)
	}
	c.transition(target, StateInfraApplied)

	revisions, err := c.facade.ListRevisions(ctx, target)
	if err != nil {
		return c.abort(inv, fmt.Sprintf("listing revisions: %v", err), err)
	}
	if len(revisions) == 0 {
		err := fmt.Errorf("no revisions registered for %s", target)
		return c.abort(inv, err.Error(), err)
	}
	next := revisions[0]

	if err := c.applyUpdate(ctx, target, next); err != nil {
		return c.abort(inv, fmt.Sprintf("update to %s: %v", next.Handle, err), err)
	}

	c.transition(target, StateRolloutWaiting)
	waitRes, err := c.waiter.Wait(ctx, target, c.cfg.DeployWait)
	if err != nil {
		return c.abort(inv, fmt.Sprintf("rollout wait: %v", err), err)
	}

	c.transition(target, StateHealthChecking)
	checks := c.verifier.Verify(ctx, target)
	inv.record.ChecksBefore = checks.Results

	if waitRes.Outcome == types.WaitCompleted && checks.Pass() {
		c.transition(target, StateSucceeded)
		return c.succeed(inv)
	}

	trigger := deployTrigger(waitRes, checks)
	c.logger.Warn().
		Str("target", target.Key()).
		Str("trigger", trigger).
		Msg("rollout unhealthy, rolling back")

	policy := types.RollbackGraceful
	if emergencyFallback {
		policy = types.RollbackEmergency
	}
	return c.rollBack(ctx, inv, policy, trigger)
}

// Rollback runs an operator-requested rollback through the same tail of the
// control flow a failed deploy takes.
func (c *Coordinator) Rollback(ctx context.Context, target types.DeploymentTarget, policy types.RollbackPolicy, reason string) (Result, error) {
	release, err := c.locker.Acquire(target.Key())
	if err != nil {
		return Result{}, err
	}
	defer release()

	inv := c.begin(target)
	checks := c.verifier.Verify(ctx, target)
	inv.record.ChecksBefore = checks.Results

	return c.rollBack(ctx, inv, policy, reason)
}

// rollBack resolves, applies, and verifies a rollback, then writes the
// incident record. The verification after the rollback wait decides between
// RolledBack and Abandoned; no further automatic action follows either way.
func (c *Coordinator) rollBack(ctx context.Context, inv *invocation, policy types.RollbackPolicy, reason string) (Result, error) {
	target := inv.record.Target
	c.transition(target, StateRollingBack)

	decision, err := c.resolver.Resolve(ctx, target, policy, reason)
	if err != nil {
		return c.abort(inv, fmt.Sprintf("resolving rollback: %v", err), err)
	}
	inv.record.Decision = &decision

	if err := c.resolver.Apply(ctx, target, decision, c.cfg.DesiredCount); err != nil {
		if !c.updateTookEffect(ctx, target, decision.Target) {
			return c.abort(inv, fmt.Sprintf("applying rollback to %s: %v", decision.Target.Handle, err), err)
		}
		c.logger.Warn().
			Str("target", target.Key()).
			Str("revision", decision.Target.Handle).
			Msg("rollback ack lost but update took effect, continuing")
	}

	c.transition(target, StateRolloutWaiting)
	waitRes, err := c.waiter.Wait(ctx, target, c.cfg.RollbackWait)
	if err != nil {
		return c.abort(inv, fmt.Sprintf("rollback wait: %v", err), err)
	}

	c.transition(target, StateHealthChecking)
	checks := c.verifier.Verify(ctx, target)
	inv.record.ChecksAfter = checks.Results

	if waitRes.Outcome == types.WaitCompleted && checks.Pass() {
		c.transition(target, StateRolledBack)
		return c.finish(inv, types.OutcomeRolledBack, reason)
	}

	c.transition(target, StateAbandoned)
	return c.finish(inv, types.OutcomeAbandoned, reason)
}

// applyUpdate issues the version change. UpdateService is the one
// non-idempotent facade call, so on a lost acknowledgement the coordinator
// re-describes once instead of retrying blind.
func (c *Coordinator) applyUpdate(ctx context.Context, target types.DeploymentTarget, rev types.RevisionRef) error {
	err := c.facade.UpdateService(ctx, target, rev, -1)
	if err == nil {
		return nil
	}
	if cluster.IsUnavailable(err) && c.updateTookEffect(ctx, target, rev) {
		c.logger.Warn().
			Str("target", target.Key()).
			Str("revision", rev.Handle).
			Msg("update ack lost but update took effect, continuing")
		return nil
	}
	return err
}

func (c *Coordinator) updateTookEffect(ctx context.Context, target types.DeploymentTarget, rev types.RevisionRef) bool {
	status, err := c.facade.DescribeService(ctx, target)
	if err != nil {
		return false
	}
	return status.CurrentRevision.Handle == rev.Handle
}

func (c *Coordinator) runStep(ctx context.Context, step collab.Step) error {
	if step == nil {
		return nil
	}
	return step.Run(ctx)
}

// invocation accumulates the incident record while the control flow runs.
type invocation struct {
	record *types.IncidentRecord
}

func (c *Coordinator) begin(target types.DeploymentTarget) *invocation {
	return &invocation{record: &types.IncidentRecord{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now().UTC(),
	}}
}

// succeed ends a healthy invocation. No incident record is written.
func (c *Coordinator) succeed(inv *invocation) (Result, error) {
	c.observe(inv.record.Target, types.OutcomeSucceeded)
	return Result{Outcome: types.OutcomeSucceeded}, nil
}

// finish ends a rollback path by persisting the incident record.
func (c *Coordinator) finish(inv *invocation, outcome types.InvocationOutcome, trigger string) (Result, error) {
	if inv.record.Trigger == "" {
		inv.record.Trigger = trigger
	}
	inv.record.Outcome = outcome
	inv.record.FinishedAt = time.Now().UTC()
	c.observe(inv.record.Target, outcome)

	path, err := c.reporter.WriteIncident(inv.record)
	if err != nil {
		return Result{Outcome: outcome, Incident: inv.record}, fmt.Errorf("writing incident record: %w", err)
	}
	return Result{Outcome: outcome, ReportPath: path, Incident: inv.record}, nil
}

// abort ends an invocation on a fatal error. The incident is still recorded
// so the failed attempt leaves an audit trail, then the error surfaces.
func (c *Coordinator) abort(inv *invocation, trigger string, cause error) (Result, error) {
	inv.record.Trigger = trigger
	res, err := c.finish(inv, types.OutcomeAbandoned, trigger)
	if err != nil {
		c.logger.Error().Err(err).Msg("recording aborted invocation")
	}
	return res, cause
}

func (c *Coordinator) observe(target types.DeploymentTarget, outcome types.InvocationOutcome) {
	metrics.DeploymentsTotal.WithLabelValues(string(target.Environment), string(outcome)).Inc()
}

func (c *Coordinator) transition(target types.DeploymentTarget, to State) {
	c.logger.Debug().
		Str("target", target.Key()).
		Str("state", string(to)).
		Msg("state transition")
}

func deployTrigger(waitRes waiter.Result, checks verifier.Report) string {
	switch waitRes.Outcome {
	case types.WaitFailed:
		return fmt.Sprintf("rollout failed after %d polls", waitRes.Attempts)
	case types.WaitTimedOut:
		return fmt.Sprintf("rollout did not settle within %d polls", waitRes.Attempts)
	}
	pass, fail, warn := checks.Counts()
	return fmt.Sprintf("health verification failed: %d pass, %d fail, %d warn", pass, fail, warn)
}
