package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// mutexHooks interprets the state as the hold count of the owning goroutine.
type mutexHooks struct {
	synchronizer.Unsupported
	fair bool
	sync *synchronizer.Synchronizer
}

func (h *mutexHooks) TryAcquire(st *synchronizer.State, acquires int32) (bool, error) {
	return h.tryAcquire(st, acquires, h.fair)
}

// tryAcquire takes the lock if it is free, or bumps the hold count if the
// caller already owns it. A fair caller defers to queued goroutines.
func (h *mutexHooks) tryAcquire(st *synchronizer.State, acquires int32, fair bool) (bool, error) {
	gid := synchronizer.CurrentGoroutine()
	c := st.Load()
	if c == 0 {
		if fair && h.sync.HasQueuedPredecessors() {
			return false, nil
		}
		if st.CompareAndSwap(0, acquires) {
			st.SetOwner(gid)
			return true, nil
		}
		return false, nil
	}
	if st.Owner() == gid {
		next := c + acquires
		if next < 0 {
			return false, synchronizer.ErrOverflow
		}
		st.Store(next)
		return true, nil
	}
	return false, nil
}

func (h *mutexHooks) TryRelease(st *synchronizer.State, releases int32) (bool, error) {
	if st.Owner() != synchronizer.CurrentGoroutine() {
		return false, synchronizer.ErrIllegalMonitorState
	}
	c := st.Load() - releases
	free := c == 0
	if free {
		st.SetOwner(0)
	}
	st.Store(c)
	return free, nil
}

func (h *mutexHooks) IsHeldExclusively(st *synchronizer.State) bool {
	return st.Owner() == synchronizer.CurrentGoroutine()
}

// Mutex is a reentrant mutual exclusion lock. The goroutine that locks it owns
// it and may lock it again; it is released after as many Unlock calls. Unlike
// sync.Mutex, a Mutex must be unlocked by the goroutine that locked it.
type Mutex struct {
	sync  *synchronizer.Synchronizer
	hooks *mutexHooks
}

// NewMutex creates an unlocked Mutex.
func NewMutex(opts ...Option) *Mutex {
	cfg := newConfig("mutex", opts)
	h := &mutexHooks{fair: cfg.Fair}
	h.sync = synchronizer.New(h, cfg.synchronizerOptions()...)
	return &Mutex{sync: h.sync, hooks: h}
}

// Lock acquires m, blocking until it is available. It panics if the hold
// count would overflow.
func (m *Mutex) Lock() {
	if err := m.sync.Acquire(1); err != nil {
		panic(fmt.Errorf("locks: lock: %w", err))
	}
}

// LockContext acquires m unless ctx is done first.
func (m *Mutex) LockContext(ctx context.Context) error {
	return m.sync.AcquireInterruptibly(ctx, 1)
}

// TryLock acquires m only if it is free or already held by the caller. It
// barges ahead of queued goroutines even when m is fair.
func (m *Mutex) TryLock() bool {
	ok, err := m.hooks.tryAcquire(m.sync.State(), 1, false)
	if err != nil {
		panic(fmt.Errorf("locks: try lock: %w", err))
	}
	return ok
}

// TryLockTimeout acquires m if it becomes available within timeout. Unlike
// TryLock it honours fairness.
func (m *Mutex) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return m.sync.TryAcquireNanos(ctx, 1, timeout)
}

// Unlock releases one hold of m. It panics if the caller does not own m.
func (m *Mutex) Unlock() {
	if _, err := m.sync.Release(1); err != nil {
		panic(fmt.Errorf("locks: unlock: %w", err))
	}
}

// NewCondition returns a condition variable bound to m.
func (m *Mutex) NewCondition() *synchronizer.Condition {
	return m.sync.NewCondition()
}

// HoldCount returns the number of holds the caller has on m.
func (m *Mutex) HoldCount() int {
	st := m.sync.State()
	if m.hooks.IsHeldExclusively(st) {
		return int(st.Load())
	}
	return 0
}

// IsHeldByCurrent reports whether the caller owns m.
func (m *Mutex) IsHeldByCurrent() bool {
	return m.hooks.IsHeldExclusively(m.sync.State())
}

// IsLocked reports whether any goroutine owns m.
func (m *Mutex) IsLocked() bool {
	return m.sync.State().Load() != 0
}

// IsFair reports whether m was created with WithFair(true).
func (m *Mutex) IsFair() bool { return m.hooks.fair }

// Owner returns the id of the owning goroutine, or 0.
func (m *Mutex) Owner() int64 {
	if m.sync.State().Load() == 0 {
		return 0
	}
	return m.sync.State().Owner()
}

// HasQueuedThreads reports whether goroutines may be waiting for m.
func (m *Mutex) HasQueuedThreads() bool { return m.sync.HasQueuedThreads() }

// QueueLength estimates the number of goroutines waiting for m.
func (m *Mutex) QueueLength() int { return m.sync.QueueLength() }

// Synchronizer exposes the underlying engine for inspection.
func (m *Mutex) Synchronizer() *synchronizer.Synchronizer { return m.sync }

func (m *Mutex) String() string {
	if owner := m.Owner(); owner != 0 {
		return fmt.Sprintf("%s[locked by goroutine %d]", m.sync.Name(), owner)
	}
	return fmt.Sprintf("%s[unlocked]", m.sync.Name())
}
