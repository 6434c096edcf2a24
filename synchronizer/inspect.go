package synchronizer

import "fmt"

// The methods in this file take best-effort snapshots of a queue that may
// change concurrently. They are meant for monitoring and for fairness checks
// in hooks, never for synchronization control.

// HasQueuedThreads reports whether any goroutine may be waiting to acquire.
func (s *Synchronizer) HasQueuedThreads() bool {
	return s.head.Load() != s.tail.Load()
}

// HasContended reports whether any goroutine has ever had to queue.
func (s *Synchronizer) HasContended() bool {
	return s.head.Load() != nil
}

// FirstQueuedThread returns the id of the longest-waiting goroutine, or 0 if
// none is queued.
func (s *Synchronizer) FirstQueuedThread() int64 {
	if s.head.Load() == s.tail.Load() {
		return 0
	}
	return s.fullGetFirstQueuedThread()
}

func (s *Synchronizer) fullGetFirstQueuedThread() int64 {
	// The first node is normally head.next. Try twice in case head moves
	// underneath us, then fall back to a scan from tail.
	for range 2 {
		if h := s.head.Load(); h != nil {
			if n := h.next.Load(); n != nil && n.prev.Load() == s.head.Load() {
				if id := n.goroutine(); id != 0 {
					return id
				}
			}
		}
	}

	var first int64
	for t := s.tail.Load(); t != nil && t != s.head.Load(); t = t.prev.Load() {
		if id := t.goroutine(); id != 0 {
			first = id
		}
	}
	return first
}

// IsQueued reports whether the goroutine with the given id is queued.
func (s *Synchronizer) IsQueued(gid int64) bool {
	if gid == 0 {
		return false
	}
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t.goroutine() == gid {
			return true
		}
	}
	return false
}

// HasQueuedPredecessors reports whether some other goroutine has been waiting
// longer than the caller. Fair hooks call it before attempting to acquire.
func (s *Synchronizer) HasQueuedPredecessors() bool {
	// Read tail before head: head is initialized before tail.
	t := s.tail.Load()
	h := s.head.Load()
	if h == t {
		return false
	}
	n := h.next.Load()
	return n == nil || n.goroutine() != CurrentGoroutine()
}

// ApparentlyFirstQueuedIsExclusive reports whether the first queued
// goroutine, if it can be seen, waits in exclusive mode. Read-write locks use
// it to keep readers from starving a queued writer.
func (s *Synchronizer) ApparentlyFirstQueuedIsExclusive() bool {
	h := s.head.Load()
	if h == nil {
		return false
	}
	n := h.next.Load()
	return n != nil && !n.isShared() && n.goroutine() != 0
}

// QueueLength returns an estimate of the number of queued goroutines.
func (s *Synchronizer) QueueLength() int {
	count := 0
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t.goroutine() != 0 {
			count++
		}
	}
	return count
}

// QueuedThreads returns the ids of queued goroutines, most recent first.
func (s *Synchronizer) QueuedThreads() []int64 {
	return s.queued(func(*node) bool { return true })
}

// ExclusiveQueuedThreads returns the ids of goroutines queued in exclusive
// mode.
func (s *Synchronizer) ExclusiveQueuedThreads() []int64 {
	return s.queued(func(n *node) bool { return !n.isShared() })
}

// SharedQueuedThreads returns the ids of goroutines queued in shared mode.
func (s *Synchronizer) SharedQueuedThreads() []int64 {
	return s.queued(func(n *node) bool { return n.isShared() })
}

func (s *Synchronizer) queued(keep func(*node) bool) []int64 {
	var ids []int64
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if !keep(t) {
			continue
		}
		if id := t.goroutine(); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Owns reports whether c was created by s.
func (s *Synchronizer) Owns(c *Condition) bool {
	return c != nil && c.owner == s
}

// HasWaiters reports whether any goroutine waits on c. The caller must hold s
// exclusively.
func (s *Synchronizer) HasWaiters(c *Condition) (bool, error) {
	if err := s.checkCondition(c); err != nil {
		return false, err
	}
	return c.hasWaiters(), nil
}

// WaitQueueLength estimates the number of goroutines waiting on c. The caller
// must hold s exclusively.
func (s *Synchronizer) WaitQueueLength(c *Condition) (int, error) {
	if err := s.checkCondition(c); err != nil {
		return 0, err
	}
	return c.waitQueueLength(), nil
}

// WaitingThreads returns the ids of goroutines waiting on c. The caller must
// hold s exclusively.
func (s *Synchronizer) WaitingThreads(c *Condition) ([]int64, error) {
	if err := s.checkCondition(c); err != nil {
		return nil, err
	}
	return c.waitingGoroutines(), nil
}

func (s *Synchronizer) checkCondition(c *Condition) error {
	if !s.Owns(c) {
		return ErrNotOwner
	}
	return c.checkHeld()
}

// String describes the synchronizer's state and whether its queue is empty.
func (s *Synchronizer) String() string {
	q := "empty"
	if s.HasQueuedThreads() {
		q = "nonempty"
	}
	return fmt.Sprintf("%s[state = %d, %s queue]", s.name, s.state.Load(), q)
}
