package qsync

import (
	"github.com/a2y-d5l/go-qsync/locks"
	"github.com/a2y-d5l/go-qsync/synchronizer"
)

var (
	// ErrInterrupted indicates the caller's context was done before a wait
	// completed.
	ErrInterrupted = synchronizer.ErrInterrupted
	// ErrIllegalMonitorState indicates a release or condition operation by a
	// goroutine that does not hold the synchronizer.
	ErrIllegalMonitorState = synchronizer.ErrIllegalMonitorState
	// ErrOverflow indicates a hold count would exceed the representable range.
	ErrOverflow = synchronizer.ErrOverflow
	// ErrUnsupportedHook indicates a hook the operation needs was not implemented.
	ErrUnsupportedHook = synchronizer.ErrUnsupportedHook
	// ErrNotOwner indicates a condition was passed to a synchronizer that did
	// not create it.
	ErrNotOwner = synchronizer.ErrNotOwner
	// ErrNegativePermits indicates a negative permit count was requested.
	ErrNegativePermits = locks.ErrNegativePermits
	// ErrNegativeCount indicates a latch was created with a negative count.
	ErrNegativeCount = locks.ErrNegativeCount
)
