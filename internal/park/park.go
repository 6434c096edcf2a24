// Package park provides the block/unblock primitive the synchronizer engine
// parks goroutines on.
//
// A Parker holds at most one permit. Unpark makes the permit available and
// never blocks; Park consumes it, blocking until it is available. Unparking a
// goroutine that is not parked is remembered, so the next Park returns at once.
// Callers must tolerate spurious returns and re-check their own condition.
package park

import (
	"context"
	"time"
)

// Parker is a one-permit park/unpark handle owned by a single goroutine.
type Parker struct {
	permit chan struct{}
}

// New creates a Parker with no permit available.
func New() *Parker {
	return &Parker{permit: make(chan struct{}, 1)}
}

// Unpark makes the permit available. Calling it repeatedly is the same as
// calling it once.
func (p *Parker) Unpark() {
	select {
	case p.permit <- struct{}{}:
	default:
	}
}

// Park blocks until the permit is available and consumes it.
func (p *Parker) Park() {
	<-p.permit
}

// ParkContext blocks until the permit is available or ctx is done. It returns
// ctx.Err() when woken by ctx.
func (p *Parker) ParkContext(ctx context.Context) error {
	select {
	case <-p.permit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParkTimeout is like ParkContext but also returns, with a nil error, once d
// has elapsed. A non-positive d returns immediately.
func (p *Parker) ParkTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.permit:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
