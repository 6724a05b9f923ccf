package waiter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/metrics"
	"github.com/ripcordhq/ripcord/pkg/types"
)

// Sleeper abstracts the inter-poll delay so the loop is unit-testable
// without real time passing.
type Sleeper interface {
	// Sleep blocks for d or until ctx is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy bounds one wait: at most MaxAttempts polls, Interval apart. Total
// wall time is therefore bounded by MaxAttempts x Interval.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Result describes how a wait terminated.
type Result struct {
	Outcome  types.WaitOutcome
	Attempts int
	Last     types.RolloutStatus
}

// Waiter polls the facade for rollout state after a version change. It owns
// all transient-platform retrying: Unavailable answers consume an attempt
// and the loop continues; NotFound aborts immediately.
type Waiter struct {
	facade  cluster.Facade
	sleeper Sleeper
	logger  zerolog.Logger
}

// New creates a waiter polling the given facade.
func New(facade cluster.Facade, logger zerolog.Logger) *Waiter {
	return &Waiter{facade: facade, sleeper: realSleeper{}, logger: logger}
}

// WithSleeper replaces the inter-poll sleeper. Tests use this to avoid real
// time passing.
func (w *Waiter) WithSleeper(s Sleeper) *Waiter {
	w.sleeper = s
	return w
}

// Wait polls until the rollout reaches a terminal state or the attempt
// budget is exhausted. The status is re-fetched fresh on every poll; a stale
// snapshot would corrupt the termination decision.
func (w *Waiter) Wait(ctx context.Context, target types.DeploymentTarget, policy Policy) (Result, error) {
	start := time.Now()
	res := Result{Outcome: types.WaitTimedOut}

	defer func() {
		metrics.RolloutWaitDuration.WithLabelValues(string(res.Outcome)).Observe(time.Since(start).Seconds())
		metrics.RolloutWaitAttempts.WithLabelValues(string(res.Outcome)).Observe(float64(res.Attempts))
	}()

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res.Attempts = attempt

		status, err := w.facade.DescribeService(ctx, target)
		switch {
		case err == nil:
			res.Last = status
			switch status.State {
			case types.RolloutCompleted:
				res.Outcome = types.WaitCompleted
				w.logger.Info().Int("attempts", attempt).Msg("rollout completed")
				return res, nil
			case types.RolloutFailed:
				res.Outcome = types.WaitFailed
				w.logger.Warn().Int("attempts", attempt).Msg("rollout failed")
				return res, nil
			}
			w.logger.Debug().
				Int("attempt", attempt).
				Int("max_attempts", policy.MaxAttempts).
				Str("state", string(status.State)).
				Msg("rollout still settling")

		case cluster.IsUnavailable(err):
			// Transient: the attempt is spent, the loop goes on.
			w.logger.Warn().Err(err).Int("attempt", attempt).Msg("platform unavailable, will re-poll")

		default:
			return res, err
		}

		if attempt < policy.MaxAttempts {
			if err := w.sleeper.Sleep(ctx, policy.Interval); err != nil {
				return res, err
			}
		}
	}

	w.logger.Warn().
		Int("attempts", res.Attempts).
		Dur("interval", policy.Interval).
		Msg("rollout wait budget exhausted")
	return res, nil
}
