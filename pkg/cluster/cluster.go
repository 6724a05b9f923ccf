package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/ripcordhq/ripcord/pkg/types"
)

// Facade is the narrow client abstraction over the managed container
// platform and its version registry. It is the sole I/O boundary of the
// controller; every other component is pure decision logic over the data it
// returns. No retries live here — retries belong to the rollout waiter and
// the endpoint reachability probe.
type Facade interface {
	// DescribeService returns a fresh rollout snapshot for the target.
	DescribeService(ctx context.Context, target types.DeploymentTarget) (types.RolloutStatus, error)

	// ListRevisions returns the target's revision history, newest first.
	ListRevisions(ctx context.Context, target types.DeploymentTarget) ([]types.RevisionRef, error)

	// UpdateService moves the service to the given revision. A negative
	// desiredCount leaves the current capacity untouched.
	UpdateService(ctx context.Context, target types.DeploymentTarget, rev types.RevisionRef, desiredCount int) error

	// Scale sets the service's desired instance count.
	Scale(ctx context.Context, target types.DeploymentTarget, desiredCount int) error

	// PublicEndpoint returns the service's externally reachable base URL.
	PublicEndpoint(ctx context.Context, target types.DeploymentTarget) (string, error)

	// StackStatus returns the state of the target's declared infrastructure.
	StackStatus(ctx context.Context, target types.DeploymentTarget) (string, error)

	// RegistryExists verifies the artifact registry entry resolves.
	RegistryExists(ctx context.Context, target types.DeploymentTarget) error

	// ClusterExists verifies the cluster resolves.
	ClusterExists(ctx context.Context, target types.DeploymentTarget) error

	// SecretExists verifies a declared secret handle resolves.
	SecretExists(ctx context.Context, name string) error
}

// Kind classifies facade failures. The distinction drives retry policy:
// Unavailable is retried inside bounded loops, NotFound never is.
type Kind string

const (
	// KindUnavailable means the platform could not be reached or answered
	// with a transient failure.
	KindUnavailable Kind = "unavailable"

	// KindNotFound means the addressed object does not exist.
	KindNotFound Kind = "not-found"
)

// Error wraps a platform failure with the operation and target that hit it.
type Error struct {
	Op     string
	Target string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("cluster.%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("cluster.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error for the given operation.
func NewError(op, target string, kind Kind, err error) *Error {
	return &Error{Op: op, Target: target, Kind: kind, Err: err}
}

// IsUnavailable reports whether err is a transient platform failure.
func IsUnavailable(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindUnavailable
}

// IsNotFound reports whether err means the addressed object does not exist.
func IsNotFound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindNotFound
}
