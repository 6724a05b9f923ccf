package health

import (
	"context"
	"time"
)

// Result represents the outcome of a single probe attempt
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface all probes implement
type Checker interface {
	// Check performs the probe and returns the result
	Check(ctx context.Context) Result
}

// RetryPolicy bounds a probe's internal retries. Only the endpoint
// reachability probe is permitted to retry internally, because endpoint
// provisioning lag is expected and not itself a failure.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Interval is the base backoff between attempts; each wait is jittered.
	Interval time.Duration

	// AttemptTimeout bounds a single attempt.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the endpoint probe's standard policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		Interval:       3 * time.Second,
		AttemptTimeout: 5 * time.Second,
	}
}
