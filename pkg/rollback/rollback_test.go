package rollback

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcordhq/ripcord/pkg/cluster"
	"github.com/ripcordhq/ripcord/pkg/types"
)

var target = types.DeploymentTarget{
	Environment: types.EnvironmentProduction,
	Service:     "api",
	Cluster:     "prod-cluster",
}

// history builds a newest-first revision sequence from handles
func history(handles ...string) []types.RevisionRef {
	revs := make([]types.RevisionRef, len(handles))
	now := time.Now()
	for i, h := range handles {
		revs[i] = types.RevisionRef{
			Family:    "api",
			Handle:    h,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		}
	}
	return revs
}

func fakeWith(current string, revs []types.RevisionRef) *cluster.Fake {
	f := cluster.NewFake()
	f.Revisions = revs
	f.Statuses = []types.RolloutStatus{{
		State:           types.RolloutFailed,
		RunningCount:    0,
		DesiredCount:    2,
		CurrentRevision: types.RevisionRef{Family: "api", Handle: current},
	}}
	return f
}

func TestResolve_Graceful(t *testing.T) {
	tests := []struct {
		name    string
		history []string
		current string
		want    string
		wantErr bool
	}{
		{
			name:    "previous revision selected",
			history: []string{"v9", "v8", "v7", "v6"},
			current: "v9",
			want:    "v8",
		},
		{
			name:    "current mid-history selects next older",
			history: []string{"v9", "v8", "v7", "v6"},
			current: "v7",
			want:    "v6",
		},
		{
			name:    "current is oldest",
			history: []string{"v9", "v8", "v7", "v6"},
			current: "v6",
			wantErr: true,
		},
		{
			name:    "current absent from history",
			history: []string{"v9", "v8"},
			current: "v3",
			wantErr: true,
		},
		{
			name:    "single-entry history",
			history: []string{"v1"},
			current: "v1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := fakeWith(tt.current, history(tt.history...))
			resolver := NewResolver(fake, zerolog.Nop())

			decision, err := resolver.Resolve(context.Background(), target,
				types.RollbackGraceful, "health check failed")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoPreviousRevision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Target.Handle)
			assert.Equal(t, types.RollbackGraceful, decision.Policy)

			// Selected revision must be strictly older than the current one.
			var current, chosen types.RevisionRef
			for _, rev := range fake.Revisions {
				switch rev.Handle {
				case tt.current:
					current = rev
				case tt.want:
					chosen = rev
				}
			}
			assert.True(t, chosen.CreatedAt.Before(current.CreatedAt))
		})
	}
}

func TestResolve_Emergency(t *testing.T) {
	tests := []struct {
		name    string
		history []string
		current string
		want    string
	}{
		{
			name:    "oldest selected regardless of current",
			history: []string{"v9", "v8", "v7", "v6"},
			current: "v9",
			want:    "v6",
		},
		{
			name:    "oldest selected even when current is oldest",
			history: []string{"v9", "v8"},
			current: "v8",
			want:    "v8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := fakeWith(tt.current, history(tt.history...))
			resolver := NewResolver(fake, zerolog.Nop())

			decision, err := resolver.Resolve(context.Background(), target,
				types.RollbackEmergency, "forced")
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Target.Handle)
			assert.Equal(t, types.RollbackEmergency, decision.Policy)
		})
	}
}

func TestResolve_EmergencyHistoryWindow(t *testing.T) {
	// A long history must not reach back past the window: revision 25 is
	// ancient and possibly incompatible.
	handles := make([]string, 25)
	for i := range handles {
		handles[i] = "rev-" + string(rune('a'+i))
	}
	fake := fakeWith(handles[0], history(handles...))
	resolver := NewResolver(fake, zerolog.Nop()).WithMaxHistoryDepth(10)

	decision, err := resolver.Resolve(context.Background(), target,
		types.RollbackEmergency, "forced")
	require.NoError(t, err)
	assert.Equal(t, handles[9], decision.Target.Handle)
}

func TestApply_Graceful(t *testing.T) {
	fake := fakeWith("v9", history("v9", "v8"))
	resolver := NewResolver(fake, zerolog.Nop())

	decision := types.RollbackDecision{
		Policy: types.RollbackGraceful,
		Target: types.RevisionRef{Handle: "v8"},
	}
	require.NoError(t, resolver.Apply(context.Background(), target, decision, 2))

	assert.Equal(t, []string{"update-service(v8)"}, fake.Calls)
}

func TestApply_EmergencyScalesAroundUpdate(t *testing.T) {
	fake := fakeWith("v9", history("v9", "v8", "v7"))
	resolver := NewResolver(fake, zerolog.Nop())

	decision := types.RollbackDecision{
		Policy: types.RollbackEmergency,
		Target: types.RevisionRef{Handle: "v7"},
	}
	require.NoError(t, resolver.Apply(context.Background(), target, decision, 3))

	// Scale to zero first, then apply, then restore capacity.
	assert.Equal(t, []string{"scale(0)", "update-service(v7)", "scale(3)"}, fake.Calls)
}
