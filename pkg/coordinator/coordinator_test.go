package coordinator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/health"
	"github.com/ripcordhq/ripcord/pkg/report"
	"github.com/ripcordhq/ripcord/pkg/rollback"
	"github.com/ripcordhq/ripcord/pkg/store"
	"github.com/ripcordhq/ripcord/pkg/types"
	"github.com/ripcordhq/ripcord/pkg/verifier"
	"github.com/ripcordhq/ripcord/pkg/waiter"
)

var target = types.DeploymentTarget{
	Environment: types.EnvironmentStaging,
	Service:     "api",
	Cluster:     "staging-cluster",
}

func status(state types.RolloutState, handle string, running int) types.RolloutStatus {
	return types.RolloutStatus{
		State:           state,
		RunningCount:    running,
		DesiredCount:    2,
		CurrentRevision: types.RevisionRef{Family: "api", Handle: handle},
	}
}

func revisions(handles ...string) []types.RevisionRef {
	base := time.Now()
	refs := make([]types.RevisionRef, len(handles))
	for i, h := range handles {
		refs[i] = types.RevisionRef{
			Family:    "api",
			Handle:    h,
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return refs
}

type testHarness struct {
	coord  *Coordinator
	fake   *cluster.Fake
	store  *store.Store
	server *httptest.Server
}

func newHarness(t *testing.T, fake *cluster.Fake) *testHarness {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	fake.Endpoint = server.URL

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	v := verifier.New(fake, verifier.Options{
		HealthPath: "/health",
		EndpointPolicy: health.RetryPolicy{
			MaxAttempts:    1,
			Interval:       time.Millisecond,
			AttemptTimeout: time.Second,
		},
	}, logger)

	cfg := Config{
		DeployWait:   waiter.Policy{MaxAttempts: 5, Interval: time.Millisecond},
		RollbackWait: waiter.Policy{MaxAttempts: 5, Interval: time.Millisecond},
		DesiredCount: 2,
	}

	coord := New(fake, v,
		waiter.New(fake, logger),
		rollback.NewResolver(fake, logger),
		report.New(t.TempDir(), st, logger),
		NewLocker(st, time.Minute),
		cfg, logger)

	return &testHarness{coord: coord, fake: fake, store: st, server: server}
}

func TestDeploy_Succeeds(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutCompleted, "v9", 2)}

	h := newHarness(t, fake)
	res, err := h.coord.Deploy(context.Background(), target, Steps{}, false)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
	assert.Empty(t, res.ReportPath)
	assert.Nil(t, res.Incident)
	assert.Contains(t, fake.Calls, "update-service(v9)")

	history, err := h.store.ListIncidents(target.Environment)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeploy_RollsBackOnFailedRollout(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	// First describes report the failed rollout of v9; once the rollback
	// lands the service settles on v8.
	fake.Statuses = []types.RolloutStatus{
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutCompleted, "v8", 2),
	}

	h := newHarness(t, fake)
	res, err := h.coord.Deploy(context.Background(), target, Steps{}, false)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeRolledBack, res.Outcome)
	require.NotNil(t, res.Incident)
	require.NotNil(t, res.Incident.Decision)
	assert.Equal(t, types.RollbackGraceful, res.Incident.Decision.Policy)
	assert.Equal(t, "v8", res.Incident.Decision.Target.Handle)
	assert.NotEmpty(t, res.Incident.ChecksBefore)
	assert.NotEmpty(t, res.Incident.ChecksAfter)

	require.NotEmpty(t, res.ReportPath)
	_, statErr := os.Stat(res.ReportPath)
	assert.NoError(t, statErr)

	assert.Contains(t, fake.Calls, "update-service(v9)")
	assert.Contains(t, fake.Calls, "update-service(v8)")

	history, err := h.store.ListIncidents(target.Environment)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.OutcomeRolledBack, history[0].Outcome)
}

func TestDeploy_EmergencyFallbackScalesAroundUpdate(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8", "v7")
	fake.Statuses = []types.RolloutStatus{
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutFailed, "v9", 0),
		status(types.RolloutCompleted, "v7", 2),
	}

	h := newHarness(t, fake)
	res, err := h.coord.Deploy(context.Background(), target, Steps{}, true)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeRolledBack, res.Outcome)
	require.NotNil(t, res.Incident.Decision)
	assert.Equal(t, types.RollbackEmergency, res.Incident.Decision.Policy)
	assert.Equal(t, "v7", res.Incident.Decision.Target.Handle)

	// Emergency stops the bleeding before switching versions.
	assert.Contains(t, fake.Calls, "scale(0)")
	assert.Contains(t, fake.Calls, "update-service(v7)")
	assert.Contains(t, fake.Calls, "scale(2)")
}

func TestDeploy_AbandonedWhenRollbackUnhealthy(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutFailed, "v9", 0)}

	h := newHarness(t, fake)
	res, err := h.coord.Deploy(context.Background(), target, Steps{}, false)
	require.NoError(t, err)

	// Rollback was applied but never settled. No third action follows.
	assert.Equal(t, types.OutcomeAbandoned, res.Outcome)
	assert.Contains(t, fake.Calls, "update-service(v8)")
	assert.NotContains(t, fake.Calls, "update-service(v7)")

	history, err := h.store.ListIncidents(target.Environment)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.OutcomeAbandoned, history[0].Outcome)
}

func TestDeploy_NoPreviousRevisionIsFatal(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutFailed, "v9", 0)}

	h := newHarness(t, fake)
	res, err := h.coord.Deploy(context.Background(), target, Steps{}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, rollback.ErrNoPreviousRevision)

	// Even a rollback-impossible run leaves an audit trail.
	assert.Equal(t, types.OutcomeAbandoned, res.Outcome)
	history, listErr := h.store.ListIncidents(target.Environment)
	require.NoError(t, listErr)
	require.Len(t, history, 1)
}

func TestDeploy_FailedCollabStepAborts(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutCompleted, "v9", 2)}

	h := newHarness(t, fake)
	steps := Steps{ArtifactReady: stepFunc{name: "artifact-ready", err: errors.New("registry push failed")}}
	_, err := h.coord.Deploy(context.Background(), target, steps, false)
	require.Error(t, err)

	// The service was never touched.
	assert.NotContains(t, fake.Calls, "update-service(v9)")
}

func TestDeploy_LostAckConfirmedByDescribe(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutCompleted, "v9", 2)}
	fake.Errs["update-service"] = cluster.NewError("update-service", target.Key(),
		cluster.KindUnavailable, errors.New("request timed out"))

	h := newHarness(t, fake)
	res, err := h.coord.Deploy(context.Background(), target, Steps{}, false)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)

	// The lost ack must not trigger a second blind update.
	updates := 0
	for _, call := range fake.Calls {
		if call == "update-service(v9)" {
			updates++
		}
	}
	assert.Equal(t, 1, updates)
}

func TestRollback_OperatorRequested(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutCompleted, "v9", 2)}

	h := newHarness(t, fake)
	res, err := h.coord.Rollback(context.Background(), target, types.RollbackGraceful, "bad canary metrics")
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeRolledBack, res.Outcome)
	assert.Contains(t, fake.Calls, "update-service(v8)")
	require.NotNil(t, res.Incident)
	assert.Equal(t, "bad canary metrics", res.Incident.Trigger)
	assert.NotEmpty(t, res.Incident.ChecksBefore)
	assert.NotEmpty(t, res.Incident.ChecksAfter)
}

func TestDeploy_SameTargetExcluded(t *testing.T) {
	fake := cluster.NewFake()
	fake.Revisions = revisions("v9", "v8")
	fake.Statuses = []types.RolloutStatus{status(types.RolloutCompleted, "v9", 2)}

	h := newHarness(t, fake)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	steps := Steps{ArtifactReady: blockingStep{entered: entered, proceed: proceed}}

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.Deploy(context.Background(), target, steps, false)
		done <- err
	}()

	<-entered
	_, err := h.coord.Deploy(context.Background(), target, Steps{}, false)
	assert.ErrorIs(t, err, ErrTargetLocked)

	close(proceed)
	require.NoError(t, <-done)

	// The lock is released; the target is deployable again.
	_, err = h.coord.Deploy(context.Background(), target, Steps{}, false)
	require.NoError(t, err)
}

type stepFunc struct {
	name string
	err  error
}

func (s stepFunc) Name() string                  { return s.name }
func (s stepFunc) Run(ctx context.Context) error { return s.err }

type blockingStep struct {
	entered chan struct{}
	proceed chan struct{}
}

func (s blockingStep) Name() string { return "blocking" }

func (s blockingStep) Run(ctx context.Context) error {
	close(s.entered)
	<-s.proceed
	return nil
}
