package synchronizer

import (
	"sync/atomic"
	"time"

	"github.com/a2y-d5l/go-qsync/internal/goid"
	"github.com/a2y-d5l/go-qsync/internal/park"
)

// Node status values. Non-negative values need no signalling; code can test
// the sign instead of individual values.
const (
	statusNeutral   int32 = 0
	statusCancelled int32 = 1
	statusSignal    int32 = -1
	statusCondition int32 = -2
	statusPropagate int32 = -3
)

// Mode tells whether a node waits to acquire exclusively or shared.
type Mode int

const (
	// Exclusive allows at most one holder.
	Exclusive Mode = iota
	// Shared allows many concurrent holders.
	Shared
)

func (m Mode) String() string {
	switch m {
	case Exclusive:
		return "exclusive"
	case Shared:
		return "shared"
	default:
		return "unknown"
	}
}

// waiter is the execution context handle of a queued goroutine.
type waiter struct {
	parker *park.Parker
	gid    int64
}

// node is one wait queue or condition queue entry.
//
// prev is written before the CAS that publishes a node as tail, so a node may
// be reachable backward from tail before its predecessor's next points at it.
// next is best effort; a nil next does not mean there is no successor. A
// cancelled node that has been excised points next at itself.
type node struct {
	status atomic.Int32
	prev   atomic.Pointer[node]
	next   atomic.Pointer[node]
	waiter atomic.Pointer[waiter]

	// mode and enqueuedAt are written before the node is published.
	mode       Mode
	enqueuedAt time.Time

	// nextWaiter links condition queue nodes. Only the exclusive holder
	// touches it.
	nextWaiter *node
}

func newNode(mode Mode) *node {
	n := &node{mode: mode, enqueuedAt: time.Now()}
	n.waiter.Store(&waiter{parker: park.New(), gid: goid.Current()})
	return n
}

// newConditionNode creates a node for a condition queue.
func newConditionNode() *node {
	n := newNode(Exclusive)
	n.status.Store(statusCondition)
	return n
}

func (n *node) isShared() bool { return n.mode == Shared }

// predecessor returns prev. Callers only use it on queued nodes, whose prev
// is never nil.
func (n *node) predecessor() *node { return n.prev.Load() }

// goroutine returns the id of the goroutine waiting on n, or 0 once the node
// has left the queue.
func (n *node) goroutine() int64 {
	if w := n.waiter.Load(); w != nil {
		return w.gid
	}
	return goid.None
}

func (n *node) unpark() {
	if w := n.waiter.Load(); w != nil {
		w.parker.Unpark()
	}
}
