package report

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcordhq/ripcord/pkg/store"
	"github.com/ripcordhq/ripcord/pkg/types"
)

var target = types.DeploymentTarget{
	Environment: types.EnvironmentStaging,
	Service:     "api",
	Cluster:     "staging-cluster",
}

func TestWriteIncident(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	reporter := New(dir, st, zerolog.Nop())

	rec := &types.IncidentRecord{
		Target:  target,
		Trigger: "rollout timed out",
		Decision: &types.RollbackDecision{
			Policy: types.RollbackGraceful,
			Target: types.RevisionRef{Handle: "v8"},
			Reason: "rollout timed out",
		},
		Outcome:    types.OutcomeRolledBack,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}

	path, err := reporter.WriteIncident(rec)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID, "reporter assigns an id")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.IncidentRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "rollout timed out", got.Trigger)
	assert.Equal(t, types.OutcomeRolledBack, got.Outcome)

	// The record also lands in the durable history.
	history, err := st.ListIncidents(types.EnvironmentStaging)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rec.ID, history[0].ID)
}

func TestWriteNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	reporter := New(dir, nil, zerolog.Nop())

	started := time.Now()
	first := &types.IncidentRecord{Target: target, Outcome: types.OutcomeAbandoned, StartedAt: started}
	second := &types.IncidentRecord{Target: target, Outcome: types.OutcomeAbandoned, StartedAt: started}

	p1, err := reporter.WriteIncident(first)
	require.NoError(t, err)
	p2, err := reporter.WriteIncident(second)
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2, "same-second reports must not collide")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteHealth(t *testing.T) {
	dir := t.TempDir()
	reporter := New(dir, nil, zerolog.Nop())

	results := []types.HealthCheckResult{
		{Check: "infrastructure", Outcome: types.CheckPass},
		{Check: "endpoint-reachability", Outcome: types.CheckFail, Detail: "HTTP 503"},
	}

	path, err := reporter.WriteHealth(target, results, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got HealthReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.False(t, got.Pass)
	assert.Len(t, got.Results, 2)
}
