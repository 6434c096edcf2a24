// Package qsync provides a queued synchronizer framework and the locks built on
// it.
//
// The module is organized into focused subpackages:
//
//   - github.com/a2y-d5l/go-qsync/synchronizer - Queue engine, hooks and conditions
//   - github.com/a2y-d5l/go-qsync/locks        - Mutex, RWMutex, Semaphore and CountDownLatch
//   - github.com/a2y-d5l/go-qsync/observability - Logging and metrics for queue events
//
// The root package re-exports the types most callers need so that a single
// import is enough.
//
// Example usage:
//
//	mu := qsync.NewMutex(qsync.WithFair(true))
//	if err := mu.LockContext(ctx); err != nil {
//		return err
//	}
//	defer mu.Unlock()
//
//	ready := mu.NewCondition()
//	for !done {
//		if err := ready.Await(ctx); err != nil {
//			return err
//		}
//	}
//
// A custom synchronizer supplies Hooks that decide acquisition from the
// atomic State:
//
//	type flag struct{ qsync.Unsupported }
//
//	func (flag) TryAcquireShared(st *qsync.State, _ int32) (int32, error) {
//		if st.Load() != 0 {
//			return 1, nil
//		}
//		return -1, nil
//	}
//
//	func (flag) TryReleaseShared(st *qsync.State, _ int32) (bool, error) {
//		st.Store(1)
//		return true, nil
//	}
//
//	s := qsync.New(flag{}, qsync.WithSynchronizerName("flag"))
package qsync
