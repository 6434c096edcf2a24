package synchronizer

import "errors"

// Contract errors
var (
	// ErrUnsupportedHook indicates a hook the operation needs was not implemented.
	ErrUnsupportedHook = errors.New("synchronizer: operation not supported")
	// ErrIllegalMonitorState indicates a release or condition operation by a
	// goroutine that does not hold the synchronizer.
	ErrIllegalMonitorState = errors.New("synchronizer: illegal monitor state")
	// ErrOverflow indicates a hold count would exceed the representable range.
	ErrOverflow = errors.New("synchronizer: hold count overflow")
)

// Wait errors
var (
	// ErrInterrupted indicates the caller's context was done before the
	// operation completed. It wraps the context error.
	ErrInterrupted = errors.New("synchronizer: interrupted")
	// ErrNotOwner indicates a condition was passed to a synchronizer that did
	// not create it.
	ErrNotOwner = errors.New("synchronizer: condition not owned by this synchronizer")
)

// interrupted wraps a context error so that both errors.Is(err, ErrInterrupted)
// and errors.Is(err, context.Canceled) hold.
func interrupted(cause error) error {
	if cause == nil {
		return ErrInterrupted
	}
	return errors.Join(ErrInterrupted, cause)
}
