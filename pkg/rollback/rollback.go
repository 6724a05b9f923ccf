package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/metrics"
	"github.com/ripcordhq/ripcord/pkg/types"
)

// ErrNoPreviousRevision means the current revision is the oldest known (or
// absent from the history), so there is nothing to roll back to. This is
// fatal and non-retryable; the operator must take the emergency or manual
// path.
var ErrNoPreviousRevision = errors.New("no previous revision to roll back to")

// DefaultMaxHistoryDepth bounds how far back the emergency policy may reach.
// An unbounded "oldest known revision" could select an extremely stale,
// possibly incompatible version from a long history.
const DefaultMaxHistoryDepth = 10

// Resolver computes and applies rollback targets from the revision history.
type Resolver struct {
	facade          cluster.Facade
	maxHistoryDepth int
	logger          zerolog.Logger
}

// NewResolver creates a resolver over the given facade.
func NewResolver(facade cluster.Facade, logger zerolog.Logger) *Resolver {
	return &Resolver{
		facade:          facade,
		maxHistoryDepth: DefaultMaxHistoryDepth,
		logger:          logger,
	}
}

// WithMaxHistoryDepth overrides the emergency policy's history window.
func (r *Resolver) WithMaxHistoryDepth(n int) *Resolver {
	if n > 0 {
		r.maxHistoryDepth = n
	}
	return r
}

// Resolve computes the rollback target for the given policy. The decision is
// emitted before anything is applied.
func (r *Resolver) Resolve(ctx context.Context, target types.DeploymentTarget, policy types.RollbackPolicy, reason string) (types.RollbackDecision, error) {
	history, err := r.facade.ListRevisions(ctx, target)
	if err != nil {
		return types.RollbackDecision{}, fmt.Errorf("failed to list revisions: %w", err)
	}
	if len(history) == 0 {
		return types.RollbackDecision{}, fmt.Errorf("revision history is empty: %w", ErrNoPreviousRevision)
	}

	status, err := r.facade.DescribeService(ctx, target)
	if err != nil {
		return types.RollbackDecision{}, fmt.Errorf("failed to describe service: %w", err)
	}

	var chosen types.RevisionRef
	switch policy {
	case types.RollbackGraceful:
		chosen, err = previousRevision(history, status.CurrentRevision)
		if err != nil {
			return types.RollbackDecision{}, err
		}
	case types.RollbackEmergency:
		chosen = oldestRevision(history, r.maxHistoryDepth)
		reason = fmt.Sprintf("%s (oldest of %d known revisions, window %d)",
			reason, len(history), r.maxHistoryDepth)
	default:
		return types.RollbackDecision{}, fmt.Errorf("unknown rollback policy %q", policy)
	}

	decision := types.RollbackDecision{
		Policy:    policy,
		Target:    chosen,
		Reason:    reason,
		DecidedAt: time.Now(),
	}
	r.logger.Info().
		Str("policy", string(policy)).
		Str("from", status.CurrentRevision.Handle).
		Str("to", chosen.Handle).
		Msg("rollback target resolved")
	return decision, nil
}

// Apply moves the service to the decided revision. The graceful policy is an
// ordinary rolling update. The emergency policy stops the bleeding first:
// scale to zero, apply the known-safe baseline, then restore capacity —
// deliberately bypassing the rolling update in which old and new revisions
// run concurrently. The caller observes the result through the rollout
// waiter exactly as an ordinary deployment.
func (r *Resolver) Apply(ctx context.Context, target types.DeploymentTarget, decision types.RollbackDecision, restoreDesiredCount int) error {
	switch decision.Policy {
	case types.RollbackGraceful:
		if err := r.facade.UpdateService(ctx, target, decision.Target, -1); err != nil {
			return fmt.Errorf("failed to apply rollback revision: %w", err)
		}

	case types.RollbackEmergency:
		if err := r.facade.Scale(ctx, target, 0); err != nil {
			return fmt.Errorf("failed to scale to zero: %w", err)
		}
		if err := r.facade.UpdateService(ctx, target, decision.Target, -1); err != nil {
			return fmt.Errorf("failed to apply rollback revision: %w", err)
		}
		if err := r.facade.Scale(ctx, target, restoreDesiredCount); err != nil {
			return fmt.Errorf("failed to restore desired count: %w", err)
		}

	default:
		return fmt.Errorf("unknown rollback policy %q", decision.Policy)
	}

	metrics.RollbacksTotal.WithLabelValues(string(decision.Policy)).Inc()
	return nil
}

// previousRevision scans the newest-first history for the current revision
// and selects the next (strictly older) element.
func previousRevision(history []types.RevisionRef, current types.RevisionRef) (types.RevisionRef, error) {
	for i, rev := range history {
		if rev.Handle != current.Handle {
			continue
		}
		if i+1 >= len(history) {
			return types.RevisionRef{}, ErrNoPreviousRevision
		}
		return history[i+1], nil
	}
	return types.RevisionRef{}, ErrNoPreviousRevision
}

// oldestRevision selects the last element within the bounded history window.
func oldestRevision(history []types.RevisionRef, depth int) types.RevisionRef {
	if len(history) > depth {
		history = history[:depth]
	}
	return history[len(history)-1]
}
