// Package synchronizer is a framework for building blocking synchronization
// primitives such as mutexes, latches and read/write locks on top of a single
// atomic int32 state and a lock-free FIFO queue of parked goroutines.
//
// # Extension Contract
//
// A concrete primitive implements Hooks to give the state a meaning and
// delegates its blocking operations to a Synchronizer:
//
//	type mutex struct {
//		synchronizer.Unsupported
//	}
//
//	func (mutex) TryAcquire(st *synchronizer.State, _ int32) (bool, error) {
//		if st.CompareAndSwap(0, 1) {
//			st.SetOwnerToCurrent()
//			return true, nil
//		}
//		return false, nil
//	}
//
//	func (mutex) TryRelease(st *synchronizer.State, _ int32) (bool, error) {
//		if st.Load() == 0 {
//			return false, synchronizer.ErrIllegalMonitorState
//		}
//		st.SetOwner(0)
//		st.Store(0)
//		return true, nil
//	}
//
//	func (mutex) IsHeldExclusively(st *synchronizer.State) bool {
//		return st.Load() == 1 && st.OwnedByCurrent()
//	}
//
//	s := synchronizer.New(mutex{})
//	_ = s.Acquire(1)
//	_, _ = s.Release(1)
//
// # Wait Queue
//
// Goroutines that fail to acquire join an intrusive doubly linked queue. Tail
// insertion is a single compare-and-swap; backward links are always valid and
// forward links are best effort. Each node carries a status that tells its
// successor whether it will be signalled; cancelled nodes are spliced out by
// whoever passes them.
//
// # Modes and Cancellation
//
// Acquire and AcquireShared ignore cancellation. The Interruptibly variants
// abort with ErrInterrupted when their context is done, and the Nanos
// variants additionally give up, returning false, once their timeout elapses.
// Newly arriving goroutines may acquire ahead of queued ones; hooks that want
// strict FIFO consult HasQueuedPredecessors.
//
// # Conditions
//
// NewCondition returns a Condition bound to an exclusive synchronizer. Await
// fully releases the state, parks on the condition queue and, once signalled,
// moves to the wait queue to reacquire the saved state.
//
// The engine never takes a mutex: the state, node status and queue links are
// only changed with atomic operations.
package synchronizer
