package synchronizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------- Exclusive Mode ---------------------

func TestSynchronizer_MutualExclusion(t *testing.T) {
	s := newMutex()
	const goroutines, iterations = 8, 500

	var inside, violations atomic.Int32
	counter := 0

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				if !assert.NoError(t, s.Acquire(1)) {
					return
				}
				if inside.Add(1) != 1 {
					violations.Add(1)
				}
				counter++
				inside.Add(-1)
				_, err := s.Release(1)
				assert.NoError(t, err)
			}
		}()
	}
	waitGroup(t, &wg, "all goroutines should finish")

	assert.Zero(t, violations.Load(), "two goroutines held the synchronizer at once")
	assert.Equal(t, goroutines*iterations, counter)
	assert.False(t, s.HasQueuedThreads())
	assert.Equal(t, int32(0), s.State().Load())
	checkQueue(t, s)
}

func TestSynchronizer_HandOff(t *testing.T) {
	s := newMutex(WithName("handoff"))

	require.NoError(t, s.Acquire(1))
	assert.Equal(t, int32(1), s.State().Load())
	assert.Equal(t, CurrentGoroutine(), s.State().Owner())
	assert.False(t, s.HasContended(), "an uncontended acquire should not create the queue")

	var (
		idCh     = make(chan int64, 1)
		acquired = make(chan struct{})
		release  = make(chan struct{})
		finished = make(chan struct{})
	)
	go func() {
		defer close(finished)
		idCh <- CurrentGoroutine()

		ok, err := s.TryAcquire(1)
		assert.NoError(t, err)
		assert.False(t, ok, "TryAcquire should fail while another goroutine holds")

		assert.NoError(t, s.Acquire(1))
		close(acquired)
		<-release
		_, err = s.Release(1)
		assert.NoError(t, err)
	}()

	b := receive(t, idCh, "second goroutine should start")
	eventually(t, func() bool { return s.IsQueued(b) }, "second goroutine should queue")
	assert.True(t, s.HasQueuedThreads())
	assert.True(t, s.HasContended())
	assert.Equal(t, b, s.FirstQueuedThread())
	assert.Equal(t, []int64{b}, s.QueuedThreads())
	assert.Equal(t, []int64{b}, s.ExclusiveQueuedThreads())
	assert.Empty(t, s.SharedQueuedThreads())
	eventually(t, s.ApparentlyFirstQueuedIsExclusive, "queued goroutine waits exclusively")
	assert.True(t, s.HasQueuedPredecessors(), "the queued goroutine precedes the holder's next attempt")

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired while the first held")
	default:
	}

	released, err := s.Release(1)
	require.NoError(t, err)
	assert.True(t, released)

	receive(t, acquired, "second goroutine should acquire after release")
	assert.Equal(t, b, s.State().Owner())
	assert.False(t, s.IsQueued(b))

	ok, err := s.TryAcquireNanos(context.Background(), 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "first goroutine should not reacquire while the second holds")

	close(release)
	receive(t, finished, "second goroutine should release")

	require.NoError(t, s.Acquire(1))
	assert.Equal(t, CurrentGoroutine(), s.State().Owner())
	_, err = s.Release(1)
	require.NoError(t, err)
	checkQueue(t, s)
}

func TestSynchronizer_ReleaseByNonOwner(t *testing.T) {
	s := newMutex()

	_, err := s.Release(1)
	assert.ErrorIs(t, err, ErrIllegalMonitorState)

	require.NoError(t, s.Acquire(1))
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Release(1)
		errCh <- err
	}()
	assert.ErrorIs(t, receive(t, errCh, "release should return"), ErrIllegalMonitorState)
	assert.Equal(t, int32(1), s.State().Load(), "a failed release must not change the state")

	_, err = s.Release(1)
	assert.NoError(t, err)
}

func TestSynchronizer_NoLostWakeup(t *testing.T) {
	s := newMutex()
	const waiters = 6

	require.NoError(t, s.Acquire(1))

	var acquired atomic.Int32
	step := make(chan struct{})
	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Acquire(1))
			acquired.Add(1)
			<-step
			_, err := s.Release(1)
			assert.NoError(t, err)
		}()
	}
	waitQueued(t, s, waiters)

	_, err := s.Release(1)
	require.NoError(t, err)

	// Each release must hand the synchronizer to exactly one waiter.
	for i := int32(1); i <= waiters; i++ {
		eventually(t, func() bool { return acquired.Load() == i }, "next waiter should acquire")
		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, i, acquired.Load(), "a single release woke more than one holder")
		step <- struct{}{}
	}
	waitGroup(t, &wg, "all waiters should finish")
	assert.Equal(t, 0, s.QueueLength())
	checkQueue(t, s)
}

// --------------------- Cancellation ---------------------

func TestSynchronizer_AcquireInterruptibly(t *testing.T) {
	t.Run("context already done", func(t *testing.T) {
		s := newMutex()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.AcquireInterruptibly(ctx, 1)
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(0), s.State().Load(), "nothing should be acquired")
	})

	t.Run("free synchronizer", func(t *testing.T) {
		s := newMutex()
		require.NoError(t, s.AcquireInterruptibly(context.Background(), 1))
		assert.True(t, s.State().OwnedByCurrent())
	})

	t.Run("cancelled while queued", func(t *testing.T) {
		s := newMutex()
		require.NoError(t, s.Acquire(1))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- s.AcquireInterruptibly(ctx, 1) }()
		waitQueued(t, s, 1)

		cancel()
		err := receive(t, errCh, "interrupted acquire should return")
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, s.QueueLength())

		_, err = s.Release(1)
		require.NoError(t, err)

		// The cancelled node must not swallow the next hand-off.
		done := make(chan struct{})
		go func() {
			assert.NoError(t, s.Acquire(1))
			_, err := s.Release(1)
			assert.NoError(t, err)
			close(done)
		}()
		receive(t, done, "later acquire should succeed")
		checkQueue(t, s)
	})
}

func TestSynchronizer_TryAcquireNanos(t *testing.T) {
	ctx := context.Background()

	t.Run("free synchronizer", func(t *testing.T) {
		s := newMutex()
		ok, err := s.TryAcquireNanos(ctx, 1, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("zero timeout does not queue", func(t *testing.T) {
		s := newMutex()
		require.NoError(t, s.Acquire(1))

		done := make(chan bool, 1)
		go func() {
			ok, err := s.TryAcquireNanos(ctx, 1, 0)
			assert.NoError(t, err)
			done <- ok
		}()
		assert.False(t, receive(t, done, "zero timeout should return"))
		assert.False(t, s.HasContended())
	})

	t.Run("times out", func(t *testing.T) {
		s := newMutex()
		require.NoError(t, s.Acquire(1))

		type result struct {
			ok      bool
			err     error
			elapsed time.Duration
		}
		done := make(chan result, 1)
		go func() {
			start := time.Now()
			ok, err := s.TryAcquireNanos(ctx, 1, 30*time.Millisecond)
			done <- result{ok, err, time.Since(start)}
		}()

		r := receive(t, done, "timed acquire should return")
		require.NoError(t, r.err)
		assert.False(t, r.ok)
		assert.GreaterOrEqual(t, r.elapsed, 30*time.Millisecond)
		assert.Equal(t, 0, s.QueueLength())
		checkQueue(t, s)
	})

	t.Run("context deadline before timeout", func(t *testing.T) {
		s := newMutex()
		require.NoError(t, s.Acquire(1))

		errCh := make(chan error, 1)
		go func() {
			dctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			_, err := s.TryAcquireNanos(dctx, 1, 10*time.Second)
			errCh <- err
		}()
		err := receive(t, errCh, "interrupted acquire should return")
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("acquires within timeout", func(t *testing.T) {
		s := newMutex()
		require.NoError(t, s.Acquire(1))

		done := make(chan bool, 1)
		go func() {
			ok, err := s.TryAcquireNanos(ctx, 1, 5*time.Second)
			assert.NoError(t, err)
			done <- ok
			if ok {
				_, err = s.Release(1)
				assert.NoError(t, err)
			}
		}()
		waitQueued(t, s, 1)
		_, err := s.Release(1)
		require.NoError(t, err)
		assert.True(t, receive(t, done, "timed acquire should succeed"))
	})
}

func TestSynchronizer_CancellationSafety(t *testing.T) {
	s := newMutex()
	require.NoError(t, s.Acquire(1))

	var timed, interrupted, blocking sync.WaitGroup
	var timeouts atomic.Int32

	for i := range 20 {
		timed.Add(1)
		go func() {
			defer timed.Done()
			ok, err := s.TryAcquireNanos(context.Background(), 1, time.Duration(i+1)*time.Millisecond)
			assert.NoError(t, err)
			if !ok {
				timeouts.Add(1)
				return
			}
			_, err = s.Release(1)
			assert.NoError(t, err)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	for range 5 {
		interrupted.Add(1)
		go func() {
			defer interrupted.Done()
			err := s.AcquireInterruptibly(ctx, 1)
			assert.ErrorIs(t, err, ErrInterrupted)
		}()
	}

	var acquired atomic.Int32
	for range 3 {
		blocking.Add(1)
		go func() {
			defer blocking.Done()
			assert.NoError(t, s.Acquire(1))
			acquired.Add(1)
			_, err := s.Release(1)
			assert.NoError(t, err)
		}()
	}

	waitGroup(t, &timed, "timed acquires should give up")
	assert.Equal(t, int32(20), timeouts.Load(), "the holder never released, so every timed acquire must time out")

	waitQueued(t, s, 8)
	cancel()
	waitGroup(t, &interrupted, "interrupted acquires should return")
	waitQueued(t, s, 3)

	_, err := s.Release(1)
	require.NoError(t, err)
	waitGroup(t, &blocking, "blocking acquires should all succeed after release")
	assert.Equal(t, int32(3), acquired.Load())
	assert.False(t, s.HasQueuedThreads())
	checkQueue(t, s)
}

// --------------------- Hook Contract ---------------------

func TestSynchronizer_HookErrors(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("error before queueing", func(t *testing.T) {
		fail := make(chan struct{})
		close(fail)
		s := New(failingHooks{fail: fail, err: errBoom})

		assert.ErrorIs(t, s.Acquire(1), errBoom)
		assert.False(t, s.HasContended())
	})

	t.Run("error while queued cancels the node", func(t *testing.T) {
		fail := make(chan struct{})
		s := New(failingHooks{fail: fail, err: errBoom})
		require.NoError(t, s.Acquire(1))

		errCh := make(chan error, 1)
		go func() { errCh <- s.Acquire(1) }()
		waitQueued(t, s, 1)

		close(fail)
		_, err := s.Release(1)
		require.NoError(t, err)

		assert.ErrorIs(t, receive(t, errCh, "failing acquire should return"), errBoom)
		assert.Equal(t, 0, s.QueueLength())
		checkQueue(t, s)
	})
}

func TestSynchronizer_UnsupportedHooks(t *testing.T) {
	s := New(Unsupported{})
	ctx := context.Background()

	assert.ErrorIs(t, s.Acquire(1), ErrUnsupportedHook)
	assert.ErrorIs(t, s.AcquireInterruptibly(ctx, 1), ErrUnsupportedHook)
	_, err := s.TryAcquireNanos(ctx, 1, time.Millisecond)
	assert.ErrorIs(t, err, ErrUnsupportedHook)
	_, err = s.Release(1)
	assert.ErrorIs(t, err, ErrUnsupportedHook)

	assert.ErrorIs(t, s.AcquireShared(1), ErrUnsupportedHook)
	assert.ErrorIs(t, s.AcquireSharedInterruptibly(ctx, 1), ErrUnsupportedHook)
	_, err = s.TryAcquireShared(1)
	assert.ErrorIs(t, err, ErrUnsupportedHook)
	_, err = s.ReleaseShared(1)
	assert.ErrorIs(t, err, ErrUnsupportedHook)

	c := s.NewCondition()
	assert.ErrorIs(t, c.Signal(), ErrUnsupportedHook)
	assert.ErrorIs(t, c.Await(ctx), ErrUnsupportedHook)
	assert.False(t, s.HasContended(), "unsupported operations must not touch the queue")
}

// --------------------- Inspection & Events ---------------------

func TestSynchronizer_String(t *testing.T) {
	s := newMutex(WithName("mutex"))
	assert.Equal(t, "mutex[state = 0, empty queue]", s.String())

	require.NoError(t, s.Acquire(1))
	go func() {
		assert.NoError(t, s.Acquire(1))
		_, err := s.Release(1)
		assert.NoError(t, err)
	}()
	waitQueued(t, s, 1)
	assert.Equal(t, "mutex[state = 1, nonempty queue]", s.String())

	_, err := s.Release(1)
	require.NoError(t, err)
	eventually(t, func() bool { return !s.HasQueuedThreads() }, "queue should drain")
}

func TestSynchronizer_InspectionOnEmptyQueue(t *testing.T) {
	s := newMutex()

	assert.False(t, s.HasQueuedThreads())
	assert.False(t, s.HasContended())
	assert.Zero(t, s.FirstQueuedThread())
	assert.False(t, s.IsQueued(CurrentGoroutine()))
	assert.False(t, s.IsQueued(0))
	assert.False(t, s.HasQueuedPredecessors())
	assert.False(t, s.ApparentlyFirstQueuedIsExclusive())
	assert.Zero(t, s.QueueLength())
	assert.Empty(t, s.QueuedThreads())
	assert.Equal(t, "synchronizer", s.Name())
}

func TestSynchronizer_Observer(t *testing.T) {
	var mu sync.Mutex
	kinds := map[EventKind]int{}
	var waited time.Duration

	s := newMutex(WithName("observed"), WithObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "observed", e.Synchronizer)
		kinds[e.Kind]++
		if e.Kind == EventAcquired {
			waited = e.Waited
		}
	})))

	require.NoError(t, s.Acquire(1))
	done := make(chan struct{})
	go func() {
		assert.NoError(t, s.Acquire(1))
		_, err := s.Release(1)
		assert.NoError(t, err)
		close(done)
	}()
	waitQueued(t, s, 1)
	time.Sleep(10 * time.Millisecond)

	_, err := s.Release(1)
	require.NoError(t, err)
	receive(t, done, "queued goroutine should finish")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, kinds[EventEnqueued])
	assert.Equal(t, 1, kinds[EventAcquired])
	assert.Equal(t, 2, kinds[EventReleased])
	assert.GreaterOrEqual(t, kinds[EventParked], 1)
	assert.Zero(t, kinds[EventCancelled])
	assert.GreaterOrEqual(t, waited, 10*time.Millisecond)
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind     EventKind
		expected string
	}{
		{EventEnqueued, "enqueued"},
		{EventParked, "parked"},
		{EventAcquired, "acquired"},
		{EventCancelled, "cancelled"},
		{EventReleased, "released"},
		{EventSignalled, "signalled"},
		{EventAwait, "await"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}

	assert.Equal(t, "exclusive", Exclusive.String())
	assert.Equal(t, "shared", Shared.String())
	assert.Equal(t, "unknown", Mode(7).String())
}
