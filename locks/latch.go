package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// latchHooks interprets the state as the remaining count.
type latchHooks struct {
	synchronizer.Unsupported
}

func (latchHooks) TryAcquireShared(st *synchronizer.State, _ int32) (int32, error) {
	if st.Load() == 0 {
		return 1, nil
	}
	return -1, nil
}

func (latchHooks) TryReleaseShared(st *synchronizer.State, _ int32) (bool, error) {
	for {
		c := st.Load()
		if c == 0 {
			return false, nil
		}
		next := c - 1
		if st.CompareAndSwap(c, next) {
			return next == 0, nil
		}
	}
}

// CountDownLatch lets goroutines wait until a count reaches zero. The count
// cannot be reset; once open the latch stays open.
type CountDownLatch struct {
	sync *synchronizer.Synchronizer
}

// NewCountDownLatch creates a latch that opens after count calls to
// CountDown.
func NewCountDownLatch(count int32, opts ...Option) (*CountDownLatch, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}
	cfg := newConfig("latch", opts)
	s := synchronizer.New(latchHooks{}, cfg.synchronizerOptions()...)
	s.State().Store(count)
	return &CountDownLatch{sync: s}, nil
}

// Wait blocks until the count reaches zero.
func (l *CountDownLatch) Wait() {
	// latchHooks never fails.
	_ = l.sync.AcquireShared(1)
}

// Await blocks until the count reaches zero or ctx is done.
func (l *CountDownLatch) Await(ctx context.Context) error {
	return l.sync.AcquireSharedInterruptibly(ctx, 1)
}

// AwaitTimeout blocks until the count reaches zero, ctx is done or timeout
// elapses. It reports whether the count reached zero.
func (l *CountDownLatch) AwaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.sync.TryAcquireSharedNanos(ctx, 1, timeout)
}

// CountDown decrements the count, releasing every waiter when it reaches
// zero. It does nothing once the count is zero.
func (l *CountDownLatch) CountDown() {
	_, _ = l.sync.ReleaseShared(1)
}

// Count returns the current count.
func (l *CountDownLatch) Count() int32 { return l.sync.State().Load() }

// Synchronizer exposes the underlying engine for inspection.
func (l *CountDownLatch) Synchronizer() *synchronizer.Synchronizer { return l.sync }

func (l *CountDownLatch) String() string {
	return fmt.Sprintf("%s[count = %d]", l.sync.Name(), l.Count())
}
