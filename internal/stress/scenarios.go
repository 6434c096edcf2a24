package stress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a2y-d5l/go-qsync/locks"
	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// runMutex takes a reentrant Mutex twice per iteration and checks that only
// one goroutine is ever inside and that no increment of the shared counter
// is lost.
func runMutex(ctx context.Context, cfg Config, lockOpts []locks.Option, t *tally) error {
	mu := locks.NewMutex(lockOpts...)
	var (
		inside  atomic.Int32
		counter int
	)

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Goroutines {
		g.Go(func() error {
			for range cfg.Iterations {
				if err := mu.LockContext(gctx); err != nil {
					return err
				}
				mu.Lock()
				if n := inside.Add(1); n != 1 {
					t.violate("mutex: %d goroutines inside the critical section", n)
				}
				if hc := mu.HoldCount(); hc != 2 {
					t.violate("mutex: hold count %d after reentrant lock, want 2", hc)
				}
				counter++
				t.acquisitions.Add(1)
				inside.Add(-1)
				mu.Unlock()
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if want := cfg.Goroutines * cfg.Iterations; counter != want {
		t.violate("mutex: counter is %d, want %d", counter, want)
	}
	if mu.IsLocked() {
		t.violate("mutex: still locked after every goroutine finished")
	}
	return nil
}

// runSemaphore checks that no more than Permits goroutines hold a permit at
// once and that every permit is returned.
func runSemaphore(ctx context.Context, cfg Config, lockOpts []locks.Option, t *tally) error {
	sem := locks.NewSemaphore(cfg.Permits, lockOpts...)
	var inside atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Goroutines {
		g.Go(func() error {
			for range cfg.Iterations {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				if n := inside.Add(1); n > cfg.Permits {
					t.violate("semaphore: %d holders with %d permits", n, cfg.Permits)
				}
				t.acquisitions.Add(1)
				runtime.Gosched()
				inside.Add(-1)
				if err := sem.Release(1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if got := sem.AvailablePermits(); got != cfg.Permits {
		t.violate("semaphore: %d permits available at rest, want %d", got, cfg.Permits)
	}
	return nil
}

// runLatch uses one latch per iteration as a barrier. A goroutine that passes
// a latch must see every arrival counted for that round.
func runLatch(ctx context.Context, cfg Config, lockOpts []locks.Option, t *tally) error {
	latches := make([]*locks.CountDownLatch, cfg.Iterations)
	for i := range latches {
		l, err := locks.NewCountDownLatch(int32(cfg.Goroutines), lockOpts...)
		if err != nil {
			return err
		}
		latches[i] = l
	}
	var arrived atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Goroutines {
		g.Go(func() error {
			for round, l := range latches {
				arrived.Add(1)
				l.CountDown()
				if err := l.Await(gctx); err != nil {
					return err
				}
				want := int64(round+1) * int64(cfg.Goroutines)
				if got := arrived.Load(); got < want {
					t.violate("latch: round %d opened with %d arrivals, want at least %d", round, got, want)
				}
				t.acquisitions.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for round, l := range latches {
		if l.Count() != 0 {
			t.violate("latch: round %d left with count %d", round, l.Count())
		}
	}
	return nil
}

// runCondition runs a bounded buffer of capacity Permits guarded by one Mutex
// and two conditions. Producers and consumers split the goroutines; every
// produced value must be consumed exactly once.
func runCondition(ctx context.Context, cfg Config, lockOpts []locks.Option, t *tally) error {
	mu := locks.NewMutex(lockOpts...)
	notFull, notEmpty := mu.NewCondition(), mu.NewCondition()
	capacity := int(cfg.Permits)
	buf := make([]int64, 0, capacity)

	producers := cfg.Goroutines / 2
	consumers := cfg.Goroutines - producers
	total := producers * cfg.Iterations

	var produced, consumed atomic.Int64

	put := func(ctx context.Context, v int64) error {
		if err := mu.LockContext(ctx); err != nil {
			return err
		}
		defer mu.Unlock()
		for len(buf) >= capacity {
			if err := notFull.Await(ctx); err != nil {
				return err
			}
		}
		buf = append(buf, v)
		if len(buf) > capacity {
			t.violate("condition: buffer holds %d items, capacity %d", len(buf), capacity)
		}
		return notEmpty.Signal()
	}
	take := func(ctx context.Context) (int64, error) {
		if err := mu.LockContext(ctx); err != nil {
			return 0, err
		}
		defer mu.Unlock()
		for len(buf) == 0 {
			if err := notEmpty.Await(ctx); err != nil {
				return 0, err
			}
		}
		v := buf[0]
		buf = buf[1:]
		return v, notFull.Signal()
	}

	g, gctx := errgroup.WithContext(ctx)
	for p := range producers {
		g.Go(func() error {
			for i := range cfg.Iterations {
				v := int64(p*cfg.Iterations + i + 1)
				if err := put(gctx, v); err != nil {
					return err
				}
				produced.Add(v)
			}
			return nil
		})
	}
	for c := range consumers {
		n := total / consumers
		if c < total%consumers {
			n++
		}
		g.Go(func() error {
			for range n {
				v, err := take(gctx)
				if err != nil {
					return err
				}
				consumed.Add(v)
				t.acquisitions.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if p, c := produced.Load(), consumed.Load(); p != c {
		t.violate("condition: produced sum %d, consumed sum %d", p, c)
	}
	if len(buf) != 0 {
		t.violate("condition: %d items left in the buffer", len(buf))
	}

	mu.Lock()
	defer mu.Unlock()
	for _, c := range []*synchronizer.Condition{notFull, notEmpty} {
		n, err := mu.Synchronizer().WaitQueueLength(c)
		if err != nil {
			return err
		}
		if n != 0 {
			t.violate("condition: %d waiters left on a condition", n)
		}
	}
	return nil
}

// runCancel keeps a Mutex busy while contenders give up through timeouts and
// cancelled contexts. Abandoned nodes must leave the queue clean and the lock
// acquirable.
func runCancel(ctx context.Context, cfg Config, lockOpts []locks.Option, t *tally) error {
	mu := locks.NewMutex(lockOpts...)
	var inside atomic.Int32

	stop := make(chan struct{})
	holderErr := make(chan error, 1)
	go func() {
		holderErr <- hold(ctx, mu, cfg.Timeout, stop, t)
	}()

	enter := func() {
		if n := inside.Add(1); n != 1 {
			t.violate("cancel: %d goroutines inside the critical section", n)
		}
		t.acquisitions.Add(1)
		inside.Add(-1)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Goroutines {
		g.Go(func() error {
			for i := range cfg.Iterations {
				if i%2 == 0 {
					ok, err := mu.TryLockTimeout(gctx, cfg.Timeout)
					if err != nil {
						return err
					}
					if !ok {
						t.timeouts.Add(1)
						continue
					}
					enter()
					continue
				}

				tctx, cancel := context.WithTimeout(gctx, cfg.Timeout)
				err := mu.LockContext(tctx)
				cancel()
				switch {
				case err == nil:
					enter()
				case gctx.Err() != nil:
					return gctx.Err()
				case errors.Is(err, synchronizer.ErrInterrupted):
					t.interrupts.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	close(stop)
	if herr := <-holderErr; err == nil {
		err = herr
	}
	if err != nil {
		return err
	}

	if n := mu.QueueLength(); n != 0 {
		t.violate("cancel: %d goroutines still queued after every contender finished", n)
	}
	ok, err := mu.TryLockTimeout(ctx, time.Second)
	if err != nil {
		return err
	}
	if !ok {
		t.violate("cancel: lock not acquirable after contenders gave up")
		return nil
	}
	mu.Unlock()
	return nil
}

// hold locks mu for d at a time until stop is closed, sampling the queue
// length on every release.
func hold(ctx context.Context, mu *locks.Mutex, d time.Duration, stop <-chan struct{}, t *tally) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		if err := mu.LockContext(ctx); err != nil {
			return fmt.Errorf("holder: %w", err)
		}
		time.Sleep(d)
		t.sampleQueue(mu.QueueLength())
		mu.Unlock()
		runtime.Gosched()
	}
}
