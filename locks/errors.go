package locks

import "errors"

var (
	// ErrNegativePermits indicates a negative permit count was requested.
	ErrNegativePermits = errors.New("locks: negative permit count")
	// ErrNegativeCount indicates a latch was created with a negative count.
	ErrNegativeCount = errors.New("locks: negative latch count")
)
