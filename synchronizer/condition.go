package synchronizer

import (
	"context"
	"errors"
	"runtime"
	"time"
)

// interruptMode records whether a condition wait was interrupted before or
// after its node was transferred to the wait queue.
type interruptMode int

const (
	notInterrupted interruptMode = iota
	// interruptedAfterSignal: the signal won; the wait completes normally.
	interruptedAfterSignal
	// interruptedBeforeSignal: the wait reports ErrInterrupted.
	interruptedBeforeSignal
)

// Condition is a condition variable bound to an exclusive Synchronizer.
// Waiting goroutines are held on a singly linked condition queue, separate
// from contention for the state, until Signal or SignalAll moves them to the
// wait queue. All methods require the caller to hold the synchronizer
// exclusively.
type Condition struct {
	owner *Synchronizer

	// Only the exclusive holder reads or writes the waiter list.
	firstWaiter *node
	lastWaiter  *node
}

// NewCondition creates a Condition bound to s. The hooks must implement
// IsHeldExclusively.
func (s *Synchronizer) NewCondition() *Condition {
	return &Condition{owner: s}
}

// checkHeld validates that the caller holds the synchronizer exclusively.
func (c *Condition) checkHeld() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, ErrUnsupportedHook) {
				err = ErrUnsupportedHook
				return
			}
			panic(r)
		}
	}()
	if !c.owner.hooks.IsHeldExclusively(&c.owner.state) {
		return ErrIllegalMonitorState
	}
	return nil
}

// addConditionWaiter appends a new condition node for the caller, first
// dropping cancelled nodes if the last one is cancelled.
func (c *Condition) addConditionWaiter() *node {
	t := c.lastWaiter
	if t != nil && t.status.Load() != statusCondition {
		c.unlinkCancelledWaiters()
		t = c.lastWaiter
	}

	n := newConditionNode()
	if t == nil {
		c.firstWaiter = n
	} else {
		t.nextWaiter = n
	}
	c.lastWaiter = n
	c.owner.emit(EventAwait, n, n.goroutine())
	return n
}

// unlinkCancelledWaiters removes every node whose status is no longer
// Condition from the waiter list.
func (c *Condition) unlinkCancelledWaiters() {
	var trail *node
	for t := c.firstWaiter; t != nil; {
		next := t.nextWaiter
		if t.status.Load() != statusCondition {
			t.nextWaiter = nil
			if trail == nil {
				c.firstWaiter = next
			} else {
				trail.nextWaiter = next
			}
			if next == nil {
				c.lastWaiter = trail
			}
		} else {
			trail = t
		}
		t = next
	}
}

// fullyRelease releases the whole current state and returns it so it can be
// reacquired. On failure n is cancelled.
func (c *Condition) fullyRelease(n *node) (int32, error) {
	saved := c.owner.state.Load()
	ok, err := c.owner.Release(saved)
	if err != nil || !ok {
		n.status.Store(statusCancelled)
		if err == nil {
			err = ErrIllegalMonitorState
		}
		return 0, err
	}
	return saved, nil
}

// transferForSignal moves n from the condition queue to the wait queue. It
// returns false if n was cancelled before the signal claimed it.
func (c *Condition) transferForSignal(n *node) bool {
	if !n.status.CompareAndSwap(statusCondition, statusNeutral) {
		return false
	}

	// If the predecessor is cancelled or will not take SIGNAL, wake n so it
	// resyncs itself rather than risk a lost wakeup.
	p := c.owner.enq(n)
	c.owner.emit(EventEnqueued, n, n.goroutine())
	ws := p.status.Load()
	if ws > 0 || !p.status.CompareAndSwap(ws, statusSignal) {
		n.unpark()
	}
	c.owner.emit(EventSignalled, n, n.goroutine())
	return true
}

// transferAfterCancelledWait moves n to the wait queue after its wait was
// interrupted or timed out. It returns true if it won the race against a
// signal.
func (c *Condition) transferAfterCancelledWait(n *node) bool {
	if n.status.CompareAndSwap(statusCondition, statusNeutral) {
		c.owner.enq(n)
		c.owner.emit(EventEnqueued, n, n.goroutine())
		return true
	}
	// A signal claimed n; wait until its enq completes.
	for !c.owner.isOnSyncQueue(n) {
		runtime.Gosched()
	}
	return false
}

func (c *Condition) checkInterruptWhileWaiting(ctx context.Context, n *node) interruptMode {
	if ctx.Err() == nil {
		return notInterrupted
	}
	if c.transferAfterCancelledWait(n) {
		return interruptedBeforeSignal
	}
	return interruptedAfterSignal
}

// reacquire contends for the synchronizer with the saved state and tidies the
// waiter list.
func (c *Condition) reacquire(n *node, saved int32) error {
	if _, err := c.owner.doAcquire(nil, n, saved, time.Time{}); err != nil {
		return err
	}
	if n.nextWaiter != nil {
		c.unlinkCancelledWaiters()
	}
	return nil
}

// enterWait runs the common prologue of every await variant.
func (c *Condition) enterWait() (*node, int32, error) {
	if err := c.checkHeld(); err != nil {
		return nil, 0, err
	}
	n := c.addConditionWaiter()
	saved, err := c.fullyRelease(n)
	if err != nil {
		return nil, 0, err
	}
	return n, saved, nil
}

// AwaitUninterruptibly releases the synchronizer, waits for a signal and
// reacquires before returning.
func (c *Condition) AwaitUninterruptibly() error {
	n, saved, err := c.enterWait()
	if err != nil {
		return err
	}

	parker := n.waiter.Load().parker
	for !c.owner.isOnSyncQueue(n) {
		parker.Park()
	}
	return c.reacquire(n, saved)
}

// Await releases the synchronizer and waits for a signal or for ctx to be
// done, then reacquires before returning. It returns ErrInterrupted only if
// ctx was done before the goroutine was signalled; if the signal came first
// the wait completes normally and ctx stays done for the caller to see.
func (c *Condition) Await(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}
	n, saved, err := c.enterWait()
	if err != nil {
		return err
	}

	parker := n.waiter.Load().parker
	mode := notInterrupted
	for !c.owner.isOnSyncQueue(n) {
		_ = parker.ParkContext(ctx)
		if mode = c.checkInterruptWhileWaiting(ctx, n); mode != notInterrupted {
			break
		}
	}
	return c.finishWait(ctx, n, saved, mode)
}

// AwaitNanos is like Await but also gives up after timeout. It returns an
// estimate of the time left; a value <= 0 means the wait timed out.
func (c *Condition) AwaitNanos(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, interrupted(err)
	}
	n, saved, err := c.enterWait()
	if err != nil {
		return 0, err
	}

	deadline := deadlineFor(timeout)
	_, mode := c.timedWait(ctx, n, deadline)
	if err := c.finishWait(ctx, n, saved, mode); err != nil {
		return 0, err
	}
	return time.Until(deadline), nil
}

// AwaitTimeout is like AwaitNanos but reports whether the goroutine was
// signalled before the timeout.
func (c *Condition) AwaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return c.AwaitUntil(ctx, deadlineFor(timeout))
}

// AwaitUntil is like Await but gives up at deadline. It reports whether the
// goroutine was signalled before the deadline.
func (c *Condition) AwaitUntil(ctx context.Context, deadline time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, interrupted(err)
	}
	n, saved, err := c.enterWait()
	if err != nil {
		return false, err
	}

	timedOut, mode := c.timedWait(ctx, n, deadline)
	if err := c.finishWait(ctx, n, saved, mode); err != nil {
		return false, err
	}
	return !timedOut, nil
}

// timedWait parks n until it is transferred, ctx is done or deadline passes.
// timedOut is true only if the timeout path won the race against a signal.
func (c *Condition) timedWait(ctx context.Context, n *node, deadline time.Time) (timedOut bool, mode interruptMode) {
	parker := n.waiter.Load().parker
	for !c.owner.isOnSyncQueue(n) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			timedOut = c.transferAfterCancelledWait(n)
			break
		}
		if remaining > SpinForTimeoutThreshold {
			_ = parker.ParkTimeout(ctx, remaining)
		}
		if mode = c.checkInterruptWhileWaiting(ctx, n); mode != notInterrupted {
			break
		}
	}
	return timedOut, mode
}

func (c *Condition) finishWait(ctx context.Context, n *node, saved int32, mode interruptMode) error {
	if err := c.reacquire(n, saved); err != nil {
		return err
	}
	if mode == interruptedBeforeSignal {
		return interrupted(ctx.Err())
	}
	return nil
}

// Signal moves the longest-waiting goroutine, if any, to the wait queue.
func (c *Condition) Signal() error {
	if err := c.checkHeld(); err != nil {
		return err
	}
	for first := c.firstWaiter; first != nil; first = c.firstWaiter {
		c.firstWaiter = first.nextWaiter
		if c.firstWaiter == nil {
			c.lastWaiter = nil
		}
		first.nextWaiter = nil
		if c.transferForSignal(first) {
			break
		}
	}
	return nil
}

// SignalAll moves every waiting goroutine to the wait queue in FIFO order.
func (c *Condition) SignalAll() error {
	if err := c.checkHeld(); err != nil {
		return err
	}
	first := c.firstWaiter
	c.firstWaiter, c.lastWaiter = nil, nil
	for first != nil {
		next := first.nextWaiter
		first.nextWaiter = nil
		c.transferForSignal(first)
		first = next
	}
	return nil
}

func (c *Condition) hasWaiters() bool {
	for w := c.firstWaiter; w != nil; w = w.nextWaiter {
		if w.status.Load() == statusCondition {
			return true
		}
	}
	return false
}

func (c *Condition) waitQueueLength() int {
	n := 0
	for w := c.firstWaiter; w != nil; w = w.nextWaiter {
		if w.status.Load() == statusCondition {
			n++
		}
	}
	return n
}

func (c *Condition) waitingGoroutines() []int64 {
	var ids []int64
	for w := c.firstWaiter; w != nil; w = w.nextWaiter {
		if w.status.Load() == statusCondition {
			if id := w.goroutine(); id != 0 {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
