package locks

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_Reentrancy(t *testing.T) {
	m := NewMutex()

	for range 3 {
		m.Lock()
	}
	assert.Equal(t, 3, m.HoldCount())
	assert.True(t, m.IsHeldByCurrent())
	assert.Equal(t, synchronizer.CurrentGoroutine(), m.Owner())

	m.Unlock()
	m.Unlock()
	assert.Equal(t, 1, m.HoldCount())

	other := make(chan bool, 1)
	go func() {
		other <- m.TryLock()
	}()
	assert.False(t, receive(t, other, "TryLock should return"), "m is still held once")

	m.Unlock()
	assert.False(t, m.IsLocked())
	assert.Zero(t, m.HoldCount())
	assert.Zero(t, m.Owner())
}

func TestMutex_HandOff(t *testing.T) {
	m := NewMutex()
	m.Lock()

	acquired := make(chan int64, 1)
	release := make(chan struct{})
	go func() {
		m.Lock()
		acquired <- synchronizer.CurrentGoroutine()
		<-release
		m.Unlock()
	}()
	eventually(t, m.HasQueuedThreads, "second goroutine should queue")
	assert.Equal(t, 1, m.QueueLength())
	blocked(t, acquired, "mutex is held")

	m.Unlock()
	b := receive(t, acquired, "second goroutine should acquire")
	assert.Equal(t, b, m.Owner())
	assert.False(t, m.IsHeldByCurrent())

	close(release)
	eventually(t, func() bool { return !m.IsLocked() }, "second goroutine should unlock")
}

func TestMutex_UnlockPanics(t *testing.T) {
	m := NewMutex()
	assert.Panics(t, m.Unlock, "unlocking an unlocked mutex")

	m.Lock()
	defer m.Unlock()

	panicked := make(chan bool, 1)
	go func() {
		defer func() { panicked <- recover() != nil }()
		m.Unlock()
	}()
	assert.True(t, receive(t, panicked, "foreign unlock should return"), "only the owner may unlock")
}

func TestMutex_Overflow(t *testing.T) {
	m := NewMutex()
	st := m.Synchronizer().State()
	st.Store(math.MaxInt32)
	st.SetOwnerToCurrent()

	assert.Panics(t, func() { m.TryLock() })
	assert.Panics(t, m.Lock)
	assert.ErrorIs(t, m.LockContext(context.Background()), synchronizer.ErrOverflow)
	assert.Equal(t, int32(math.MaxInt32), st.Load(), "a failed acquire must leave the count alone")

	st.SetOwner(0)
	st.Store(0)
}

func TestMutex_LockContext(t *testing.T) {
	m := NewMutex()
	m.Lock()
	defer m.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.LockContext(ctx) }()
	eventually(t, m.HasQueuedThreads, "locker should queue")

	cancel()
	err := receive(t, errCh, "interrupted lock should return")
	assert.ErrorIs(t, err, synchronizer.ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.QueueLength())
}

func TestMutex_TryLockTimeout(t *testing.T) {
	m := NewMutex()
	m.Lock()
	defer m.Unlock()

	done := make(chan bool, 1)
	go func() {
		ok, err := m.TryLockTimeout(context.Background(), 15*time.Millisecond)
		assert.NoError(t, err)
		done <- ok
	}()
	assert.False(t, receive(t, done, "timed lock should give up"))

	ok, err := m.TryLockTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ok, "the owner reenters regardless of timeout")
	m.Unlock()
}

func TestMutex_Fairness(t *testing.T) {
	tests := []struct {
		name          string
		fair          bool
		timedAcquires bool
	}{
		{name: "fair mutex defers to the queue", fair: true, timedAcquires: false},
		{name: "non-fair mutex barges", fair: false, timedAcquires: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := &parkCounter{}
			m := NewMutex(WithFair(tt.fair), WithObserver(pc))
			assert.Equal(t, tt.fair, m.IsFair())

			m.Lock()
			done := make(chan struct{})
			go func() {
				m.Lock()
				m.Unlock()
				close(done)
			}()
			pc.waitParked(t, 1)

			// Free the state without waking the parked waiter, so the only
			// thing deciding the next attempt is the fairness policy.
			st := m.Synchronizer().State()
			st.SetOwner(0)
			st.Store(0)

			ok, err := m.TryLockTimeout(context.Background(), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.timedAcquires, ok)

			if !ok {
				assert.True(t, m.TryLock(), "TryLock barges even on a fair mutex")
			}
			m.Unlock()
			receive(t, done, "parked waiter should acquire after unlock")
		})
	}
}

func TestMutex_Condition(t *testing.T) {
	m := NewMutex()
	cond := m.NewCondition()

	m.Lock()
	m.Lock()

	go func() {
		m.Lock()
		defer m.Unlock()
		assert.NoError(t, cond.Signal())
	}()

	require.NoError(t, cond.Await(context.Background()))
	assert.Equal(t, 2, m.HoldCount(), "Await restores every hold")
	m.Unlock()
	m.Unlock()
	assert.False(t, m.IsLocked())
}

func TestMutex_MutualExclusion(t *testing.T) {
	for _, fair := range []bool{false, true} {
		t.Run(fmt.Sprintf("fair=%v", fair), func(t *testing.T) {
			m := NewMutex(WithFair(fair))
			counter := 0

			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 200 {
						m.Lock()
						counter++
						m.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1600, counter)
			assert.False(t, m.IsLocked())
		})
	}
}

func TestMutex_String(t *testing.T) {
	m := NewMutex(WithName("orders"))
	assert.Equal(t, "orders[unlocked]", m.String())

	m.Lock()
	defer m.Unlock()
	assert.Equal(t, fmt.Sprintf("orders[locked by goroutine %d]", synchronizer.CurrentGoroutine()), m.String())
	assert.Equal(t, "orders", m.Synchronizer().Name())
}
