package synchronizer

import (
	"context"
	"time"
)

// Acquire acquires in exclusive mode, blocking until it succeeds. It ignores
// cancellation. Newly arriving goroutines may acquire ahead of queued ones.
// The only errors are those returned by the hooks.
func (s *Synchronizer) Acquire(arg int32) error {
	ok, err := s.hooks.TryAcquire(&s.state, arg)
	if err != nil || ok {
		return err
	}
	_, err = s.doAcquire(nil, s.addWaiter(Exclusive), arg, time.Time{})
	return err
}

// AcquireInterruptibly acquires in exclusive mode, aborting with
// ErrInterrupted when ctx is done first.
func (s *Synchronizer) AcquireInterruptibly(ctx context.Context, arg int32) error {
	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}
	ok, err := s.hooks.TryAcquire(&s.state, arg)
	if err != nil || ok {
		return err
	}
	_, err = s.doAcquire(ctx, s.addWaiter(Exclusive), arg, time.Time{})
	return err
}

// TryAcquireNanos acquires in exclusive mode, giving up after timeout. It
// returns false with a nil error on timeout, and ErrInterrupted when ctx is
// done first.
func (s *Synchronizer) TryAcquireNanos(ctx context.Context, arg int32, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, interrupted(err)
	}
	ok, err := s.hooks.TryAcquire(&s.state, arg)
	if err != nil || ok {
		return ok, err
	}
	if timeout <= 0 {
		return false, nil
	}
	deadline := deadlineFor(timeout)
	return s.doAcquire(ctx, s.addWaiter(Exclusive), arg, deadline)
}

// TryAcquire makes one exclusive acquire attempt without queueing.
func (s *Synchronizer) TryAcquire(arg int32) (bool, error) {
	return s.hooks.TryAcquire(&s.state, arg)
}

// Release releases in exclusive mode and, when the hooks report the
// synchronizer fully released, wakes the first queued goroutine.
func (s *Synchronizer) Release(arg int32) (bool, error) {
	ok, err := s.hooks.TryRelease(&s.state, arg)
	if err != nil || !ok {
		return false, err
	}
	if h := s.head.Load(); h != nil && h.status.Load() != statusNeutral {
		s.unparkSuccessor(h)
	}
	s.emit(EventReleased, nil, caller)
	return true, nil
}
