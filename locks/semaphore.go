package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// semaphoreHooks interprets the state as the number of available permits.
type semaphoreHooks struct {
	synchronizer.Unsupported
	fair bool
	sync *synchronizer.Synchronizer
}

func (h *semaphoreHooks) TryAcquireShared(st *synchronizer.State, acquires int32) (int32, error) {
	return h.tryAcquireShared(st, acquires, h.fair), nil
}

// tryAcquireShared returns the permits left after taking acquires, or a
// negative value if there were not enough.
func (h *semaphoreHooks) tryAcquireShared(st *synchronizer.State, acquires int32, fair bool) int32 {
	for {
		if fair && h.sync.HasQueuedPredecessors() {
			return -1
		}
		available := st.Load()
		remaining := available - acquires
		if remaining < 0 || st.CompareAndSwap(available, remaining) {
			return remaining
		}
	}
}

func (h *semaphoreHooks) TryReleaseShared(st *synchronizer.State, releases int32) (bool, error) {
	for {
		current := st.Load()
		next := current + releases
		if next < current {
			return false, synchronizer.ErrOverflow
		}
		if st.CompareAndSwap(current, next) {
			return true, nil
		}
	}
}

// Semaphore is a counting semaphore. Permits are not owned: any goroutine may
// release permits it did not acquire.
type Semaphore struct {
	sync  *synchronizer.Synchronizer
	hooks *semaphoreHooks
}

// NewSemaphore creates a Semaphore with the given number of permits. A
// negative count means releases must happen before any acquire succeeds.
func NewSemaphore(permits int32, opts ...Option) *Semaphore {
	cfg := newConfig("semaphore", opts)
	h := &semaphoreHooks{fair: cfg.Fair}
	h.sync = synchronizer.New(h, cfg.synchronizerOptions()...)
	h.sync.State().Store(permits)
	return &Semaphore{sync: h.sync, hooks: h}
}

// Acquire takes n permits, blocking until they are available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context, n int32) error {
	if n < 0 {
		return ErrNegativePermits
	}
	return s.sync.AcquireSharedInterruptibly(ctx, n)
}

// AcquireUninterruptibly takes n permits, blocking until they are available.
func (s *Semaphore) AcquireUninterruptibly(n int32) error {
	if n < 0 {
		return ErrNegativePermits
	}
	return s.sync.AcquireShared(n)
}

// TryAcquire takes n permits only if they are available now. It barges ahead
// of queued goroutines even when s is fair.
func (s *Semaphore) TryAcquire(n int32) bool {
	if n < 0 {
		return false
	}
	return s.hooks.tryAcquireShared(s.sync.State(), n, false) >= 0
}

// TryAcquireTimeout takes n permits if they become available within timeout.
func (s *Semaphore) TryAcquireTimeout(ctx context.Context, n int32, timeout time.Duration) (bool, error) {
	if n < 0 {
		return false, ErrNegativePermits
	}
	return s.sync.TryAcquireSharedNanos(ctx, n, timeout)
}

// Release returns n permits, waking waiters that can now proceed.
func (s *Semaphore) Release(n int32) error {
	if n < 0 {
		return ErrNegativePermits
	}
	_, err := s.sync.ReleaseShared(n)
	return err
}

// AvailablePermits returns the number of permits available now.
func (s *Semaphore) AvailablePermits() int32 { return s.sync.State().Load() }

// DrainPermits takes every available permit and returns how many it took.
func (s *Semaphore) DrainPermits() int32 {
	st := s.sync.State()
	for {
		current := st.Load()
		if current == 0 || st.CompareAndSwap(current, 0) {
			return current
		}
	}
}

// ReducePermits removes n permits without blocking. Unlike Acquire it may
// take the count negative.
func (s *Semaphore) ReducePermits(n int32) error {
	if n < 0 {
		return ErrNegativePermits
	}
	st := s.sync.State()
	for {
		current := st.Load()
		next := current - n
		if next > current {
			return synchronizer.ErrOverflow
		}
		if st.CompareAndSwap(current, next) {
			return nil
		}
	}
}

// IsFair reports whether s was created with WithFair(true).
func (s *Semaphore) IsFair() bool { return s.hooks.fair }

// HasQueuedThreads reports whether goroutines may be waiting for permits.
func (s *Semaphore) HasQueuedThreads() bool { return s.sync.HasQueuedThreads() }

// QueueLength estimates the number of goroutines waiting for permits.
func (s *Semaphore) QueueLength() int { return s.sync.QueueLength() }

// Synchronizer exposes the underlying engine for inspection.
func (s *Semaphore) Synchronizer() *synchronizer.Synchronizer { return s.sync }

func (s *Semaphore) String() string {
	return fmt.Sprintf("%s[permits = %d]", s.sync.Name(), s.AvailablePermits())
}
