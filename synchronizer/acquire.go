package synchronizer

import (
	"context"
	"time"
)

// doAcquire runs the queued acquire loop for n until it acquires, the deadline
// passes, ctx is done, or a hook fails. A nil ctx means uninterruptible and a
// zero deadline means untimed. On every failure path n is cancelled.
func (s *Synchronizer) doAcquire(ctx context.Context, n *node, arg int32, deadline time.Time) (bool, error) {
	parker := n.waiter.Load().parker
	gid := n.goroutine()

	for {
		p := n.predecessor()
		if p == s.head.Load() {
			acquired, err := s.tryAcquireAt(n, p, arg)
			if err != nil {
				s.cancelAcquire(n)
				return false, err
			}
			if acquired {
				s.emit(EventAcquired, n, gid)
				return true, nil
			}
		}

		var remaining time.Duration
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				s.cancelAcquire(n)
				return false, nil
			}
		}

		if shouldParkAfterFailedAcquire(p, n) {
			switch {
			case ctx == nil:
				s.emit(EventParked, n, gid)
				parker.Park()
			case deadline.IsZero():
				s.emit(EventParked, n, gid)
				_ = parker.ParkContext(ctx)
			case remaining > SpinForTimeoutThreshold:
				s.emit(EventParked, n, gid)
				_ = parker.ParkTimeout(ctx, remaining)
			}
		}

		if ctx != nil {
			if err := ctx.Err(); err != nil {
				s.cancelAcquire(n)
				return false, interrupted(err)
			}
		}
	}
}

// tryAcquireAt attempts the acquire for n, whose predecessor p is the head,
// and on success makes n the head.
func (s *Synchronizer) tryAcquireAt(n, p *node, arg int32) (bool, error) {
	if n.isShared() {
		r, err := s.hooks.TryAcquireShared(&s.state, arg)
		if err != nil || r < 0 {
			return false, err
		}
		s.setHeadAndPropagate(n, r)
	} else {
		ok, err := s.hooks.TryAcquire(&s.state, arg)
		if err != nil || !ok {
			return false, err
		}
		s.setHead(n)
	}
	p.next.Store(nil)
	return true, nil
}

// deadlineFor converts a timeout to the deadline doAcquire expects.
func deadlineFor(timeout time.Duration) time.Time {
	return time.Now().Add(timeout)
}
