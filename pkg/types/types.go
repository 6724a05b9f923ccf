package types

import (
	"fmt"
	"time"
)

// Environment identifies which deployment environment a target belongs to
type Environment string

const (
	EnvironmentStaging    Environment = "staging"
	EnvironmentProduction Environment = "production"
)

// ParseEnvironment validates and converts an environment argument
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvironmentStaging, EnvironmentProduction:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("unknown environment %q (must be staging or production)", s)
	}
}

// DeploymentTarget identifies the service under control. It is supplied at
// invocation time and never mutated.
type DeploymentTarget struct {
	Environment Environment `json:"environment"`
	Service     string      `json:"service"`
	Cluster     string      `json:"cluster"`
	Region      string      `json:"region"`
}

// Key returns the identity used for per-target locking and report naming.
func (t DeploymentTarget) Key() string {
	return t.Cluster + "/" + t.Service
}

func (t DeploymentTarget) String() string {
	return fmt.Sprintf("%s/%s (%s)", t.Cluster, t.Service, t.Environment)
}

// RevisionRef is an immutable reference to one deployable version. Revisions
// are totally ordered by CreatedAt, newest first.
type RevisionRef struct {
	Family    string    `json:"family"`
	Handle    string    `json:"handle"` // opaque platform handle (task definition ARN)
	CreatedAt time.Time `json:"created_at"`
}

// RolloutState represents the platform-reported state of a rollout
type RolloutState string

const (
	RolloutPending    RolloutState = "pending"
	RolloutInProgress RolloutState = "in-progress"
	RolloutCompleted  RolloutState = "completed"
	RolloutFailed     RolloutState = "failed"
)

// RolloutStatus is a point-in-time snapshot of a service's rollout. It is
// re-fetched fresh on every poll and must never be cached across polls.
type RolloutStatus struct {
	State           RolloutState
	RunningCount    int
	DesiredCount    int
	CurrentRevision RevisionRef
}

// Active reports whether the service has at least one running instance.
func (s RolloutStatus) Active() bool {
	return s.RunningCount >= 1
}

// CheckOutcome is the verdict of a single health check
type CheckOutcome string

const (
	CheckPass CheckOutcome = "pass"
	CheckFail CheckOutcome = "fail"
	CheckWarn CheckOutcome = "warn"
)

// HealthCheckResult records the outcome of one check in a verification pass
type HealthCheckResult struct {
	Check     string       `json:"check"`
	Outcome   CheckOutcome `json:"outcome"`
	Detail    string       `json:"detail"`
	CheckedAt time.Time    `json:"checked_at"`
}

// RollbackPolicy selects how a rollback target is resolved
type RollbackPolicy string

const (
	// RollbackGraceful rolls to the immediately previous revision via an
	// ordinary rolling update.
	RollbackGraceful RollbackPolicy = "graceful"

	// RollbackEmergency scales to zero, applies the oldest known revision,
	// then restores desired capacity.
	RollbackEmergency RollbackPolicy = "emergency"
)

// RollbackDecision is computed once per rollback invocation and immutable
// once applied.
type RollbackDecision struct {
	Policy    RollbackPolicy `json:"policy"`
	Target    RevisionRef    `json:"target"`
	Reason    string         `json:"reason"`
	DecidedAt time.Time      `json:"decided_at"`
}

// WaitOutcome classifies how a rollout wait terminated
type WaitOutcome string

const (
	WaitCompleted WaitOutcome = "completed"
	WaitFailed    WaitOutcome = "failed"

	// WaitTimedOut is treated like WaitFailed by callers but recorded
	// distinctly so slow infrastructure can be told apart from a genuine
	// rollout failure.
	WaitTimedOut WaitOutcome = "timed-out"
)

// InvocationOutcome is the terminal state of a coordinator run
type InvocationOutcome string

const (
	OutcomeSucceeded  InvocationOutcome = "succeeded"
	OutcomeRolledBack InvocationOutcome = "rolled-back"

	// OutcomeAbandoned means the rolled-back revision is also unhealthy and
	// human intervention is required. The controller takes no further
	// automatic action.
	OutcomeAbandoned InvocationOutcome = "abandoned"
)

// IncidentRecord is the append-only audit artifact produced for a failed or
// rolled-back deployment attempt. It is persisted once at the end of the
// control flow and never edited afterward.
type IncidentRecord struct {
	ID           string              `json:"id"`
	Target       DeploymentTarget    `json:"target"`
	Trigger      string              `json:"trigger"`
	ChecksBefore []HealthCheckResult `json:"checks_before,omitempty"`
	ChecksAfter  []HealthCheckResult `json:"checks_after,omitempty"`
	Decision     *RollbackDecision   `json:"decision,omitempty"`
	Outcome      InvocationOutcome   `json:"outcome"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}
