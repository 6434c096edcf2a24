package synchronizer

// Hooks is the extension contract a concrete synchronizer implements. The
// engine never looks at the state itself; it only acts on the values and errors
// the hooks return. Hooks must not block and must be safe for concurrent use.
//
// TryAcquireShared returns a negative value on failure, zero when it succeeded
// but no further shared acquire can succeed, and a positive value when later
// shared acquires may also succeed.
//
// TryRelease returns true when the synchronizer is fully released.
// TryReleaseShared returns true when the release may let a waiter proceed.
//
// IsHeldExclusively is only consulted by conditions.
type Hooks interface {
	TryAcquire(st *State, arg int32) (bool, error)
	TryRelease(st *State, arg int32) (bool, error)
	TryAcquireShared(st *State, arg int32) (int32, error)
	TryReleaseShared(st *State, arg int32) (bool, error)
	IsHeldExclusively(st *State) bool
}

// Unsupported implements every hook by reporting ErrUnsupportedHook. Embed it
// and override the hooks the synchronizer supports.
type Unsupported struct{}

func (Unsupported) TryAcquire(*State, int32) (bool, error) { return false, ErrUnsupportedHook }

func (Unsupported) TryRelease(*State, int32) (bool, error) { return false, ErrUnsupportedHook }

func (Unsupported) TryAcquireShared(*State, int32) (int32, error) { return -1, ErrUnsupportedHook }

func (Unsupported) TryReleaseShared(*State, int32) (bool, error) { return false, ErrUnsupportedHook }

// IsHeldExclusively panics: a synchronizer that hands out conditions must
// override it.
func (Unsupported) IsHeldExclusively(*State) bool { panic(ErrUnsupportedHook) }
