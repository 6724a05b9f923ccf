package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcordhq/ripcord/pkg/store"
)

func TestLocker_SameTargetExcluded(t *testing.T) {
	locker := NewLocker(nil, time.Minute)

	release, err := locker.Acquire("staging-cluster/api")
	require.NoError(t, err)

	_, err = locker.Acquire("staging-cluster/api")
	assert.ErrorIs(t, err, ErrTargetLocked)

	release()
	release2, err := locker.Acquire("staging-cluster/api")
	require.NoError(t, err)
	release2()
}

func TestLocker_DifferentTargetsIndependent(t *testing.T) {
	locker := NewLocker(nil, time.Minute)

	r1, err := locker.Acquire("staging-cluster/api")
	require.NoError(t, err)
	defer r1()

	r2, err := locker.Acquire("prod-cluster/api")
	require.NoError(t, err)
	defer r2()
}

func TestLocker_LeaseExcludesOtherProcesses(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	// Two lockers over one store stand in for two processes on one host.
	first := NewLocker(st, time.Minute)
	second := NewLocker(st, time.Minute)

	release, err := first.Acquire("staging-cluster/api")
	require.NoError(t, err)

	_, err = second.Acquire("staging-cluster/api")
	assert.ErrorIs(t, err, ErrTargetLocked)

	release()
	release2, err := second.Acquire("staging-cluster/api")
	require.NoError(t, err)
	release2()
}

func TestLocker_ExpiredLeaseRecoverable(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	crashed := NewLocker(st, 10*time.Millisecond)
	_, err = crashed.Acquire("staging-cluster/api")
	require.NoError(t, err)
	// The crashed invocation never releases. Only its lease expires, so a
	// fresh locker must win once the TTL passes.
	time.Sleep(20 * time.Millisecond)

	next := NewLocker(st, time.Minute)
	release, err := next.Acquire("staging-cluster/api")
	require.NoError(t, err)
	release()
}
