package synchronizer

import (
	"sync/atomic"
	"time"

	"github.com/a2y-d5l/go-qsync/internal/goid"
)

// SpinForTimeoutThreshold is the remaining time below which timed waits spin
// instead of parking; parking with a timer costs more than that.
const SpinForTimeoutThreshold = time.Microsecond

// Synchronizer is a queued synchronizer: a State cell interpreted by Hooks and
// a lock-free FIFO queue of parked goroutines. It is safe for concurrent use
// and must not be copied after first use.
type Synchronizer struct {
	state State
	hooks Hooks

	// head and tail are lazily initialized with a sentinel on first
	// contention. head is only replaced by the goroutine that acquired.
	head atomic.Pointer[node]
	tail atomic.Pointer[node]

	name     string
	observer Observer
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithName sets the name reported with observed events.
func WithName(name string) Option { return func(s *Synchronizer) { s.name = name } }

// WithObserver installs an Observer notified of queue events.
func WithObserver(o Observer) Option { return func(s *Synchronizer) { s.observer = o } }

// New creates a Synchronizer whose state is interpreted by hooks.
func New(hooks Hooks, opts ...Option) *Synchronizer {
	s := &Synchronizer{hooks: hooks, name: "synchronizer"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the state cell. Hooks receive the same cell.
func (s *Synchronizer) State() *State { return &s.state }

// Name returns the name given with WithName.
func (s *Synchronizer) Name() string { return s.name }

// EventKind identifies an observed queue event.
type EventKind int

const (
	// EventEnqueued is emitted when a goroutine joins the wait queue, including
	// a condition waiter moved there by a signal or by giving up its wait.
	EventEnqueued EventKind = iota
	// EventParked is emitted each time a queued goroutine blocks.
	EventParked
	// EventAcquired is emitted when a queued goroutine acquires.
	EventAcquired
	// EventCancelled is emitted when a queued goroutine gives up.
	EventCancelled
	// EventReleased is emitted when a release frees the synchronizer.
	EventReleased
	// EventSignalled is emitted when a condition waiter is transferred.
	EventSignalled
	// EventAwait is emitted when a goroutine starts waiting on a condition.
	EventAwait
)

func (k EventKind) String() string {
	switch k {
	case EventEnqueued:
		return "enqueued"
	case EventParked:
		return "parked"
	case EventAcquired:
		return "acquired"
	case EventCancelled:
		return "cancelled"
	case EventReleased:
		return "released"
	case EventSignalled:
		return "signalled"
	case EventAwait:
		return "await"
	default:
		return "unknown"
	}
}

// Event describes one queue transition.
type Event struct {
	Synchronizer string
	Kind         EventKind
	Mode         Mode
	Goroutine    int64
	// Waited is the time spent queued, set for EventAcquired and
	// EventCancelled.
	Waited time.Duration
	Time   time.Time
}

// Observer receives queue events. Observe is called synchronously on the
// goroutine causing the event and must not block or touch the synchronizer.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// caller asks emit to resolve the calling goroutine only when an observer
// is installed.
const caller int64 = -1

func (s *Synchronizer) emit(kind EventKind, n *node, gid int64) {
	if s.observer == nil {
		return
	}
	if gid == caller {
		gid = goid.Current()
	}
	now := time.Now()
	e := Event{Synchronizer: s.name, Kind: kind, Goroutine: gid, Time: now}
	if n != nil {
		e.Mode = n.mode
		if kind == EventAcquired || kind == EventCancelled {
			e.Waited = now.Sub(n.enqueuedAt)
		}
	}
	s.observer.Observe(e)
}
