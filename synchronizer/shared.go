package synchronizer

import (
	"context"
	"time"
)

// AcquireShared acquires in shared mode, blocking until it succeeds. It
// ignores cancellation.
func (s *Synchronizer) AcquireShared(arg int32) error {
	r, err := s.hooks.TryAcquireShared(&s.state, arg)
	if err != nil || r >= 0 {
		return err
	}
	_, err = s.doAcquire(nil, s.addWaiter(Shared), arg, time.Time{})
	return err
}

// AcquireSharedInterruptibly acquires in shared mode, aborting with
// ErrInterrupted when ctx is done first.
func (s *Synchronizer) AcquireSharedInterruptibly(ctx context.Context, arg int32) error {
	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}
	r, err := s.hooks.TryAcquireShared(&s.state, arg)
	if err != nil || r >= 0 {
		return err
	}
	_, err = s.doAcquire(ctx, s.addWaiter(Shared), arg, time.Time{})
	return err
}

// TryAcquireSharedNanos acquires in shared mode, giving up after timeout.
func (s *Synchronizer) TryAcquireSharedNanos(ctx context.Context, arg int32, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, interrupted(err)
	}
	r, err := s.hooks.TryAcquireShared(&s.state, arg)
	if err != nil {
		return false, err
	}
	if r >= 0 {
		return true, nil
	}
	if timeout <= 0 {
		return false, nil
	}
	deadline := deadlineFor(timeout)
	return s.doAcquire(ctx, s.addWaiter(Shared), arg, deadline)
}

// TryAcquireShared makes one shared acquire attempt without queueing.
func (s *Synchronizer) TryAcquireShared(arg int32) (bool, error) {
	r, err := s.hooks.TryAcquireShared(&s.state, arg)
	return err == nil && r >= 0, err
}

// ReleaseShared releases in shared mode and propagates wakeups when the hooks
// report a waiter may proceed.
func (s *Synchronizer) ReleaseShared(arg int32) (bool, error) {
	ok, err := s.hooks.TryReleaseShared(&s.state, arg)
	if err != nil || !ok {
		return false, err
	}
	s.doReleaseShared()
	s.emit(EventReleased, nil, caller)
	return true, nil
}

// doReleaseShared signals the head's successor, or marks the head PROPAGATE
// so a release racing with this one still propagates. It loops while the
// head changes underneath it.
func (s *Synchronizer) doReleaseShared() {
	for {
		h := s.head.Load()
		if h != nil && h != s.tail.Load() {
			switch ws := h.status.Load(); {
			case ws == statusSignal:
				if !h.status.CompareAndSwap(statusSignal, statusNeutral) {
					continue
				}
				s.unparkSuccessor(h)
			case ws == statusNeutral:
				if !h.status.CompareAndSwap(statusNeutral, statusPropagate) {
					continue
				}
			}
		}
		if h == s.head.Load() {
			return
		}
	}
}

// setHeadAndPropagate makes n the head and, if the acquire left room for more
// shared holders or a release asked to propagate, wakes the next shared
// waiter. The check is conservative and may wake more than needed.
func (s *Synchronizer) setHeadAndPropagate(n *node, propagate int32) {
	old := s.head.Load()
	s.setHead(n)

	if propagate > 0 || old == nil || old.status.Load() < 0 {
		s.propagateFrom(n)
		return
	}
	if h := s.head.Load(); h == nil || h.status.Load() < 0 {
		s.propagateFrom(n)
	}
}

func (s *Synchronizer) propagateFrom(n *node) {
	if next := n.next.Load(); next == nil || next.isShared() {
		s.doReleaseShared()
	}
}
