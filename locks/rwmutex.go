package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// The state is split in two unsigned 16-bit halves: the upper half counts read
// holds, the lower half counts the writer's reentrant holds.
const (
	sharedShift   = 16
	sharedUnit    = int32(1) << sharedShift
	maxHolds      = int32(1)<<sharedShift - 1
	exclusiveMask = int32(1)<<sharedShift - 1
)

func sharedCount(c int32) int32    { return int32(uint32(c) >> sharedShift) }
func exclusiveCount(c int32) int32 { return c & exclusiveMask }

// rwHooks implements both modes on one state.
type rwHooks struct {
	fair bool
	sync *synchronizer.Synchronizer
}

func (h *rwHooks) writerShouldBlock() bool {
	return h.fair && h.sync.HasQueuedPredecessors()
}

// readerShouldBlock keeps readers behind a writer at the head of the queue so
// a stream of readers cannot starve it.
func (h *rwHooks) readerShouldBlock() bool {
	if h.fair {
		return h.sync.HasQueuedPredecessors()
	}
	return h.sync.ApparentlyFirstQueuedIsExclusive()
}

func (h *rwHooks) TryAcquire(st *synchronizer.State, acquires int32) (bool, error) {
	return h.tryWrite(st, acquires, h.writerShouldBlock)
}

func (h *rwHooks) tryWrite(st *synchronizer.State, acquires int32, shouldBlock func() bool) (bool, error) {
	gid := synchronizer.CurrentGoroutine()
	c := st.Load()
	if c != 0 {
		// Readers present, or another goroutine writes.
		w := exclusiveCount(c)
		if w == 0 || st.Owner() != gid {
			return false, nil
		}
		if w+acquires > maxHolds {
			return false, synchronizer.ErrOverflow
		}
		st.Store(c + acquires)
		return true, nil
	}
	if shouldBlock() || !st.CompareAndSwap(c, c+acquires) {
		return false, nil
	}
	st.SetOwner(gid)
	return true, nil
}

func (h *rwHooks) TryRelease(st *synchronizer.State, releases int32) (bool, error) {
	if !h.IsHeldExclusively(st) {
		return false, synchronizer.ErrIllegalMonitorState
	}
	next := st.Load() - releases
	free := exclusiveCount(next) == 0
	if free {
		st.SetOwner(0)
	}
	st.Store(next)
	return free, nil
}

func (h *rwHooks) TryAcquireShared(st *synchronizer.State, _ int32) (int32, error) {
	return h.tryRead(st, h.readerShouldBlock)
}

// tryRead takes a read hold. The write owner may always take one, which is how
// a writer downgrades.
func (h *rwHooks) tryRead(st *synchronizer.State, shouldBlock func() bool) (int32, error) {
	gid := synchronizer.CurrentGoroutine()
	for {
		c := st.Load()
		if exclusiveCount(c) != 0 {
			if st.Owner() != gid {
				return -1, nil
			}
		} else if shouldBlock() {
			return -1, nil
		}
		if sharedCount(c) == maxHolds {
			return -1, fmt.Errorf("%w: too many read holds", synchronizer.ErrOverflow)
		}
		if st.CompareAndSwap(c, c+sharedUnit) {
			return 1, nil
		}
	}
}

func (h *rwHooks) TryReleaseShared(st *synchronizer.State, _ int32) (bool, error) {
	for {
		c := st.Load()
		if sharedCount(c) == 0 {
			return false, synchronizer.ErrIllegalMonitorState
		}
		next := c - sharedUnit
		if st.CompareAndSwap(c, next) {
			// Only a fully free lock lets a writer in.
			return next == 0, nil
		}
	}
}

func (h *rwHooks) IsHeldExclusively(st *synchronizer.State) bool {
	return st.Owner() == synchronizer.CurrentGoroutine()
}

func never() bool { return false }

// RWMutex is a reader/writer lock. The writer is reentrant and may downgrade
// by taking a read hold before releasing its write hold. Read holds are not
// owned; as with sync.RWMutex, a goroutine must not take a second read hold
// while it may be queued behind a writer.
type RWMutex struct {
	sync  *synchronizer.Synchronizer
	hooks *rwHooks
}

// NewRWMutex creates an unlocked RWMutex.
func NewRWMutex(opts ...Option) *RWMutex {
	cfg := newConfig("rwmutex", opts)
	h := &rwHooks{fair: cfg.Fair}
	h.sync = synchronizer.New(h, cfg.synchronizerOptions()...)
	return &RWMutex{sync: h.sync, hooks: h}
}

// Lock acquires the write lock.
func (rw *RWMutex) Lock() {
	if err := rw.sync.Acquire(1); err != nil {
		panic(fmt.Errorf("locks: lock: %w", err))
	}
}

// LockContext acquires the write lock unless ctx is done first.
func (rw *RWMutex) LockContext(ctx context.Context) error {
	return rw.sync.AcquireInterruptibly(ctx, 1)
}

// TryLock acquires the write lock only if it is available now, ignoring
// fairness.
func (rw *RWMutex) TryLock() bool {
	ok, err := rw.hooks.tryWrite(rw.sync.State(), 1, never)
	if err != nil {
		panic(fmt.Errorf("locks: try lock: %w", err))
	}
	return ok
}

// TryLockTimeout acquires the write lock if it becomes available within
// timeout.
func (rw *RWMutex) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return rw.sync.TryAcquireNanos(ctx, 1, timeout)
}

// Unlock releases one write hold. It panics if the caller is not the writer.
func (rw *RWMutex) Unlock() {
	if _, err := rw.sync.Release(1); err != nil {
		panic(fmt.Errorf("locks: unlock: %w", err))
	}
}

// RLock acquires a read hold.
func (rw *RWMutex) RLock() {
	if err := rw.sync.AcquireShared(1); err != nil {
		panic(fmt.Errorf("locks: rlock: %w", err))
	}
}

// RLockContext acquires a read hold unless ctx is done first.
func (rw *RWMutex) RLockContext(ctx context.Context) error {
	return rw.sync.AcquireSharedInterruptibly(ctx, 1)
}

// TryRLock acquires a read hold only if no writer holds the lock, ignoring
// fairness and queued writers.
func (rw *RWMutex) TryRLock() bool {
	r, err := rw.hooks.tryRead(rw.sync.State(), never)
	if err != nil {
		panic(fmt.Errorf("locks: try rlock: %w", err))
	}
	return r >= 0
}

// TryRLockTimeout acquires a read hold if one becomes available within
// timeout.
func (rw *RWMutex) TryRLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return rw.sync.TryAcquireSharedNanos(ctx, 1, timeout)
}

// RUnlock releases a read hold. It panics if no read hold is outstanding.
func (rw *RWMutex) RUnlock() {
	if _, err := rw.sync.ReleaseShared(1); err != nil {
		panic(fmt.Errorf("locks: runlock: %w", err))
	}
}

// RLocker returns a sync.Locker backed by RLock and RUnlock.
func (rw *RWMutex) RLocker() sync.Locker { return rlocker{rw} }

type rlocker struct{ rw *RWMutex }

func (r rlocker) Lock()   { r.rw.RLock() }
func (r rlocker) Unlock() { r.rw.RUnlock() }

// NewCondition returns a condition variable bound to the write lock.
func (rw *RWMutex) NewCondition() *synchronizer.Condition {
	return rw.sync.NewCondition()
}

// ReadLockCount returns the number of read holds.
func (rw *RWMutex) ReadLockCount() int { return int(sharedCount(rw.sync.State().Load())) }

// IsWriteLocked reports whether any goroutine holds the write lock.
func (rw *RWMutex) IsWriteLocked() bool { return exclusiveCount(rw.sync.State().Load()) != 0 }

// IsWriteLockedByCurrent reports whether the caller holds the write lock.
func (rw *RWMutex) IsWriteLockedByCurrent() bool {
	return rw.IsWriteLocked() && rw.hooks.IsHeldExclusively(rw.sync.State())
}

// WriteHoldCount returns the caller's write holds.
func (rw *RWMutex) WriteHoldCount() int {
	if !rw.IsWriteLockedByCurrent() {
		return 0
	}
	return int(exclusiveCount(rw.sync.State().Load()))
}

// IsFair reports whether rw was created with WithFair(true).
func (rw *RWMutex) IsFair() bool { return rw.hooks.fair }

// QueueLength estimates the number of goroutines waiting for rw.
func (rw *RWMutex) QueueLength() int { return rw.sync.QueueLength() }

// Synchronizer exposes the underlying engine for inspection.
func (rw *RWMutex) Synchronizer() *synchronizer.Synchronizer { return rw.sync }

func (rw *RWMutex) String() string {
	c := rw.sync.State().Load()
	return fmt.Sprintf("%s[write locks = %d, read locks = %d]", rw.sync.Name(), exclusiveCount(c), sharedCount(c))
}
