package synchronizer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// binaryHooks is a non-reentrant mutex: 0 is free, 1 is held.
type binaryHooks struct {
	Unsupported
}

func (binaryHooks) TryAcquire(st *State, _ int32) (bool, error) {
	if st.CompareAndSwap(0, 1) {
		st.SetOwnerToCurrent()
		return true, nil
	}
	return false, nil
}

func (binaryHooks) TryRelease(st *State, _ int32) (bool, error) {
	if st.Load() == 0 || !st.OwnedByCurrent() {
		return false, ErrIllegalMonitorState
	}
	st.SetOwner(0)
	st.Store(0)
	return true, nil
}

func (binaryHooks) IsHeldExclusively(st *State) bool {
	return st.Load() == 1 && st.OwnedByCurrent()
}

// permitHooks is a counting semaphore: the state is the number of permits.
type permitHooks struct {
	Unsupported
}

func (permitHooks) TryAcquireShared(st *State, arg int32) (int32, error) {
	for {
		available := st.Load()
		remaining := available - arg
		if remaining < 0 || st.CompareAndSwap(available, remaining) {
			return remaining, nil
		}
	}
}

func (permitHooks) TryReleaseShared(st *State, arg int32) (bool, error) {
	for {
		current := st.Load()
		if st.CompareAndSwap(current, current+arg) {
			return true, nil
		}
	}
}

// gateHooks is a one-shot gate: shared acquires fail until a release opens
// it, after which every acquire succeeds.
type gateHooks struct {
	Unsupported
}

func (gateHooks) TryAcquireShared(st *State, _ int32) (int32, error) {
	if st.Load() != 0 {
		return 1, nil
	}
	return -1, nil
}

func (gateHooks) TryReleaseShared(st *State, _ int32) (bool, error) {
	st.Store(1)
	return true, nil
}

// failingHooks acquires like binaryHooks until fail is closed, after which
// every acquire attempt reports err.
type failingHooks struct {
	binaryHooks
	fail chan struct{}
	err  error
}

func (h failingHooks) TryAcquire(st *State, arg int32) (bool, error) {
	select {
	case <-h.fail:
		return false, h.err
	default:
		return h.binaryHooks.TryAcquire(st, arg)
	}
}

func newMutex(opts ...Option) *Synchronizer { return New(binaryHooks{}, opts...) }

func newPermits(n int32) *Synchronizer {
	s := New(permitHooks{})
	s.State().Store(n)
	return s
}

// eventually waits for cond with a generous timeout for slow CI machines.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, msg)
}

// receive waits for a value on ch.
func receive[T any](t *testing.T, ch <-chan T, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out: %s", msg)
	}
	var zero T
	return zero
}

// waitGroup waits for wg.
func waitGroup(t *testing.T, wg *sync.WaitGroup, msg string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	receive(t, done, msg)
}

// waitQueued waits until n goroutines are visible on the wait queue.
func waitQueued(t *testing.T, s *Synchronizer, n int) {
	t.Helper()
	eventually(t, func() bool { return s.QueueLength() == n }, "goroutines should be queued")
}

// checkQueue verifies the structural invariants of a quiescent queue: the
// head is not cancelled, and every node reachable backward from tail leads
// to head.
func checkQueue(t *testing.T, s *Synchronizer) {
	t.Helper()
	h, tl := s.head.Load(), s.tail.Load()
	if h == nil {
		require.Nil(t, tl, "tail without head")
		return
	}
	require.NotEqual(t, statusCancelled, h.status.Load(), "head must not be cancelled")

	steps := 0
	for n := tl; n != h; n = n.prev.Load() {
		require.NotNil(t, n, "tail must reach head through prev links")
		steps++
		require.Less(t, steps, 1<<20, "prev links contain a cycle")
	}
}
