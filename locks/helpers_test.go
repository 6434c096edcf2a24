package locks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
	"github.com/stretchr/testify/require"
)

// parkCounter counts how many times queued goroutines blocked. Once a waiter
// has parked it stays parked until a release wakes it.
type parkCounter struct {
	parked atomic.Int32
}

func (p *parkCounter) Observe(e synchronizer.Event) {
	if e.Kind == synchronizer.EventParked {
		p.parked.Add(1)
	}
}

func (p *parkCounter) waitParked(t *testing.T, n int32) {
	t.Helper()
	eventually(t, func() bool { return p.parked.Load() >= n }, "waiter should park")
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, msg)
}

func receive[T any](t *testing.T, ch <-chan T, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out: %s", msg)
	}
	var zero T
	return zero
}

// blocked asserts that nothing arrives on ch for a short while.
func blocked[T any](t *testing.T, ch <-chan T, msg string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpectedly proceeded: %s", msg)
	case <-time.After(20 * time.Millisecond):
	}
}
