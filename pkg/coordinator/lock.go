package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ripcordhq/ripcord/pkg/store"
)

// ErrTargetLocked means another invocation is already driving this target.
// Concurrent deploy and rollback against one service race on the current
// revision and can leave it in an undefined mixed state.
var ErrTargetLocked = errors.New("another invocation is in progress for this target")

// Locker grants exclusive, per-target access. In-process exclusion uses a
// keyed mutex registry; cross-process exclusion uses a store lease with a
// TTL so a crashed invocation cannot wedge the target forever. Invocations
// against different targets are fully independent.
type Locker struct {
	mu     sync.Mutex
	held   map[string]bool
	store  *store.Store
	ttl    time.Duration
	holder string
}

// NewLocker creates a locker backed by the given store. A nil store means
// in-process exclusion only.
func NewLocker(st *store.Store, ttl time.Duration) *Locker {
	return &Locker{
		held:   make(map[string]bool),
		store:  st,
		ttl:    ttl,
		holder: uuid.NewString(),
	}
}

// Acquire takes the target's lock, returning a release func. It never
// blocks: a busy target fails fast with ErrTargetLocked so the caller can
// surface the conflict instead of queueing behind an unknown invocation.
func (l *Locker) Acquire(key string) (func(), error) {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTargetLocked, key)
	}
	l.held[key] = true
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.AcquireLease(key, l.holder, l.ttl); err != nil {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
			if errors.Is(err, store.ErrLeaseHeld) {
				return nil, fmt.Errorf("%w: %s", ErrTargetLocked, key)
			}
			return nil, err
		}
	}

	return func() {
		if l.store != nil {
			_ = l.store.ReleaseLease(key, l.holder)
		}
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}
