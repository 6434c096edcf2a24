package synchronizer

import (
	"sync/atomic"

	"github.com/a2y-d5l/go-qsync/internal/goid"
)

// State is the synchronization state cell: one atomic int32 plus the identity
// of the exclusive owner. It has no meaning of its own; the Hooks decide what
// the value represents.
type State struct {
	value atomic.Int32
	owner atomic.Int64
}

// Load returns the current state value.
func (s *State) Load() int32 { return s.value.Load() }

// Store sets the state value.
func (s *State) Store(v int32) { s.value.Store(v) }

// CompareAndSwap atomically sets the state to new if it currently equals old.
func (s *State) CompareAndSwap(old, new int32) bool {
	return s.value.CompareAndSwap(old, new)
}

// Owner returns the goroutine id recorded as exclusive owner, or 0.
func (s *State) Owner() int64 { return s.owner.Load() }

// SetOwner records the exclusive owner. Only the goroutine that just
// established exclusivity, or is about to give it up, should call it.
func (s *State) SetOwner(gid int64) { s.owner.Store(gid) }

// SetOwnerToCurrent records the calling goroutine as exclusive owner.
func (s *State) SetOwnerToCurrent() { s.owner.Store(goid.Current()) }

// OwnedByCurrent reports whether the calling goroutine is the recorded owner.
func (s *State) OwnedByCurrent() bool {
	owner := s.owner.Load()
	return owner != goid.None && owner == goid.Current()
}

// CurrentGoroutine returns the id of the calling goroutine as used for owner
// and queue identity.
func CurrentGoroutine() int64 { return goid.Current() }
