package qsync

// Re-export core types from subpackages
import (
	"github.com/a2y-d5l/go-qsync/locks"
	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// Engine types
type Synchronizer = synchronizer.Synchronizer
type Hooks = synchronizer.Hooks
type Unsupported = synchronizer.Unsupported
type State = synchronizer.State
type Mode = synchronizer.Mode
type Condition = synchronizer.Condition

// Queue events
type Event = synchronizer.Event
type EventKind = synchronizer.EventKind
type Observer = synchronizer.Observer
type ObserverFunc = synchronizer.ObserverFunc

// Lock types
type Mutex = locks.Mutex
type RWMutex = locks.RWMutex
type Semaphore = locks.Semaphore
type CountDownLatch = locks.CountDownLatch

// Option types
type SynchronizerOption = synchronizer.Option
type LockOption = locks.Option

// Modes
const (
	Exclusive = synchronizer.Exclusive
	Shared    = synchronizer.Shared
)

// Event kinds
const (
	EventEnqueued  = synchronizer.EventEnqueued
	EventParked    = synchronizer.EventParked
	EventAcquired  = synchronizer.EventAcquired
	EventCancelled = synchronizer.EventCancelled
	EventReleased  = synchronizer.EventReleased
	EventSignalled = synchronizer.EventSignalled
	EventAwait     = synchronizer.EventAwait
)

// Constructors
var (
	New               = synchronizer.New
	NewMutex          = locks.NewMutex
	NewRWMutex        = locks.NewRWMutex
	NewSemaphore      = locks.NewSemaphore
	NewCountDownLatch = locks.NewCountDownLatch
	CurrentGoroutine  = synchronizer.CurrentGoroutine
)

// Synchronizer options
var (
	WithSynchronizerName     = synchronizer.WithName
	WithSynchronizerObserver = synchronizer.WithObserver
)

// Lock options
var (
	WithFair     = locks.WithFair
	WithName     = locks.WithName
	WithObserver = locks.WithObserver
)
