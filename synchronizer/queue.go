package synchronizer

// enq appends n to the wait queue, installing a sentinel head first if the
// queue was never initialized. It returns n's predecessor.
func (s *Synchronizer) enq(n *node) *node {
	for {
		t := s.tail.Load()
		if t == nil {
			if sentinel := (&node{}); s.head.CompareAndSwap(nil, sentinel) {
				s.tail.Store(sentinel)
			}
			continue
		}
		n.prev.Store(t)
		if s.tail.CompareAndSwap(t, n) {
			t.next.Store(n)
			return t
		}
	}
}

// addWaiter creates and enqueues a node for the calling goroutine.
func (s *Synchronizer) addWaiter(mode Mode) *node {
	n := newNode(mode)
	if pred := s.tail.Load(); pred != nil {
		n.prev.Store(pred)
		if s.tail.CompareAndSwap(pred, n) {
			pred.next.Store(n)
			s.emit(EventEnqueued, n, n.goroutine())
			return n
		}
	}
	s.enq(n)
	s.emit(EventEnqueued, n, n.goroutine())
	return n
}

// setHead makes n the head. Only the goroutine that just acquired calls it;
// the old head becomes unreachable from the queue.
func (s *Synchronizer) setHead(n *node) {
	s.head.Store(n)
	n.waiter.Store(nil)
	n.prev.Store(nil)
}

// unparkSuccessor wakes the nearest live successor of n. When next is missing
// or cancelled it scans backward from tail, because forward links may not be
// published yet.
func (s *Synchronizer) unparkSuccessor(n *node) {
	if ws := n.status.Load(); ws < 0 {
		n.status.CompareAndSwap(ws, statusNeutral)
	}

	succ := n.next.Load()
	if succ == nil || succ.status.Load() > 0 {
		succ = nil
		for t := s.tail.Load(); t != nil && t != n; t = t.prev.Load() {
			if t.status.Load() <= 0 {
				succ = t
			}
		}
	}
	if succ != nil {
		succ.unpark()
	}
}

// shouldParkAfterFailedAcquire reports whether n may park: only once its
// predecessor has promised to signal it. Cancelled predecessors are skipped.
// A false return means the caller must retry the acquire before parking.
func shouldParkAfterFailedAcquire(pred, n *node) bool {
	ws := pred.status.Load()
	if ws == statusSignal {
		return true
	}
	if ws > 0 {
		for {
			pred = pred.prev.Load()
			n.prev.Store(pred)
			if pred.status.Load() <= 0 {
				break
			}
		}
		pred.next.Store(n)
		return false
	}
	pred.status.CompareAndSwap(ws, statusSignal)
	return false
}

// cancelAcquire gives up n's place in the queue.
func (s *Synchronizer) cancelAcquire(n *node) {
	if n == nil {
		return
	}
	gid := n.goroutine()
	n.waiter.Store(nil)

	pred := n.prev.Load()
	for pred.status.Load() > 0 {
		pred = pred.prev.Load()
		n.prev.Store(pred)
	}
	predNext := pred.next.Load()

	// Other goroutines skip n from here on.
	n.status.Store(statusCancelled)

	if n == s.tail.Load() && s.tail.CompareAndSwap(n, pred) {
		pred.next.CompareAndSwap(predNext, nil)
	} else {
		ws := pred.status.Load()
		if pred != s.head.Load() &&
			(ws == statusSignal || (ws <= 0 && pred.status.CompareAndSwap(ws, statusSignal))) &&
			pred.waiter.Load() != nil {
			if next := n.next.Load(); next != nil && next.status.Load() <= 0 {
				pred.next.CompareAndSwap(predNext, next)
			}
		} else {
			s.unparkSuccessor(n)
		}
		n.next.Store(n)
	}
	s.emit(EventCancelled, n, gid)
}

// isOnSyncQueue reports whether a node that started on a condition queue is
// now on the wait queue.
func (s *Synchronizer) isOnSyncQueue(n *node) bool {
	if n.status.Load() == statusCondition || n.prev.Load() == nil {
		return false
	}
	if n.next.Load() != nil {
		return true
	}
	// prev can be set before the tail CAS fails, so search from tail.
	return s.findNodeFromTail(n)
}

func (s *Synchronizer) findNodeFromTail(n *node) bool {
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t == n {
			return true
		}
	}
	return false
}
