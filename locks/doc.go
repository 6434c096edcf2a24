// Package locks provides blocking primitives built on the synchronizer engine:
// a reentrant Mutex, a counting Semaphore, a CountDownLatch and a RWMutex.
//
// Each type supplies the synchronizer hooks that give the state its meaning
// and forwards its blocking operations to the engine. Lock and Unlock style
// methods panic on misuse, like sync.Mutex; context-aware methods return
// errors that match synchronizer.ErrInterrupted.
package locks
