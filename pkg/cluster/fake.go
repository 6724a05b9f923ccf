package cluster

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/ripcordhq/ripcord/pkg/types"
)

// Fake is an in-memory Facade for tests. DescribeService consumes scripted
// statuses in order, sticking on the last one; every mutating call is
// recorded so tests can assert on call sequences.
type Fake struct {
	mu sync.Mutex

	// Statuses are returned by DescribeService in order. The last entry
	// repeats once the script is exhausted.
	Statuses []types.RolloutStatus

	// Revisions is the history returned by ListRevisions, newest first.
	Revisions []types.RevisionRef

	// Endpoint is returned by PublicEndpoint.
	Endpoint string

	// Stack is returned by StackStatus.
	Stack string

	// Errs maps an operation name to an error returned instead of the
	// scripted result ("describe-service", "list-revisions", ...).
	Errs map[string]error

	// MissingSecrets marks secret handles that fail to resolve.
	MissingSecrets map[string]bool

	// Calls records every facade call in order, e.g. "scale(0)".
	Calls []string

	describeCount int
}

// NewFake returns a Fake with a healthy single-status script.
func NewFake() *Fake {
	return &Fake{
		Stack: "CREATE_COMPLETE",
		Errs:  make(map[string]error),
	}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

// DescribeCount returns how many times DescribeService was polled.
func (f *Fake) DescribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.describeCount
}

func (f *Fake) DescribeService(ctx context.Context, target types.DeploymentTarget) (types.RolloutStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("describe-service")
	f.describeCount++
	if err := f.Errs["describe-service"]; err != nil {
		return types.RolloutStatus{}, err
	}
	if len(f.Statuses) == 0 {
		return types.RolloutStatus{}, NewError("describe-service", target.Key(), KindNotFound,
			errors.New("service not found"))
	}
	idx := f.describeCount - 1
	if idx >= len(f.Statuses) {
		idx = len(f.Statuses) - 1
	}
	return f.Statuses[idx], nil
}

func (f *Fake) ListRevisions(ctx context.Context, target types.DeploymentTarget) ([]types.RevisionRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list-revisions")
	if err := f.Errs["list-revisions"]; err != nil {
		return nil, err
	}
	revs := make([]types.RevisionRef, len(f.Revisions))
	copy(revs, f.Revisions)
	return revs, nil
}

func (f *Fake) UpdateService(ctx context.Context, target types.DeploymentTarget, rev types.RevisionRef, desiredCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update-service(" + rev.Handle + ")")
	return f.Errs["update-service"]
}

func (f *Fake) Scale(ctx context.Context, target types.DeploymentTarget, desiredCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("scale(" + strconv.Itoa(desiredCount) + ")")
	return f.Errs["scale"]
}

func (f *Fake) PublicEndpoint(ctx context.Context, target types.DeploymentTarget) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("public-endpoint")
	if err := f.Errs["public-endpoint"]; err != nil {
		return "", err
	}
	return f.Endpoint, nil
}

func (f *Fake) StackStatus(ctx context.Context, target types.DeploymentTarget) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stack-status")
	if err := f.Errs["stack-status"]; err != nil {
		return "", err
	}
	return f.Stack, nil
}

func (f *Fake) RegistryExists(ctx context.Context, target types.DeploymentTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("registry-exists")
	return f.Errs["registry-exists"]
}

func (f *Fake) ClusterExists(ctx context.Context, target types.DeploymentTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cluster-exists")
	return f.Errs["cluster-exists"]
}

func (f *Fake) SecretExists(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("secret-exists(" + name + ")")
	if f.MissingSecrets[name] {
		return NewError("secret-exists", name, KindNotFound, errors.New("secret not found"))
	}
	return f.Errs["secret-exists"]
}
