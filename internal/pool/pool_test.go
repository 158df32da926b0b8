package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"reeler/internal/pool"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1, -10} {
		p, err := pool.New[int](context.Background(), size)
		if !errors.Is(err, pool.ErrInvalidSize) {
			t.Fatalf("size %d: expected ErrInvalidSize, got %v", size, err)
		}
		if p != nil {
			t.Fatalf("size %d: expected nil pool", size)
		}
	}
}

func TestPoolNeverExceedsSize(t *testing.T) {
	for _, size := range []int{1, 2, 4} {
		const tasks = 20
		p, err := pool.New[int](context.Background(), size)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		var running, maxRunning atomic.Int32
		go func() {
			defer p.Close()
			for i := 0; i < tasks; i++ {
				i := i
				if err := p.Add(func(context.Context) (int, error) {
					now := running.Add(1)
					for {
						prev := maxRunning.Load()
						if now <= prev || maxRunning.CompareAndSwap(prev, now) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					running.Add(-1)
					return i, nil
				}); err != nil {
					t.Errorf("Add: %v", err)
					return
				}
			}
		}()

		seen := make(map[int]bool)
		observed, err := p.WaitUntilDrained(context.Background(), tasks, func(v int) error {
			seen[v] = true
			return nil
		})
		if err != nil || observed != tasks {
			t.Fatalf("size %d: WaitUntilDrained = %d, %v", size, observed, err)
		}
		if len(seen) != tasks {
			t.Fatalf("size %d: expected %d distinct results, got %d", size, tasks, len(seen))
		}
		if got := int(maxRunning.Load()); got > size {
			t.Fatalf("size %d: observed %d concurrent tasks", size, got)
		}
		if p.Peak() > size {
			t.Fatalf("size %d: peak %d", size, p.Peak())
		}
		p.Wait()
		if _, err := p.Next(context.Background()); !errors.Is(err, pool.ErrDrained) {
			t.Fatalf("expected ErrDrained after all results, got %v", err)
		}
		if p.InFlight() != 0 {
			t.Fatalf("expected no tasks in flight, got %d", p.InFlight())
		}
	}
}

func TestPoolFaultsOnFirstFailure(t *testing.T) {
	p, err := pool.New[int](context.Background(), 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	boom := errors.New("boom")

	if err := p.Add(func(context.Context) (int, error) { return 0, boom }); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err = p.Next(context.Background())
	var fault *pool.FaultError
	if !errors.As(err, &fault) || !errors.Is(err, boom) {
		t.Fatalf("expected FaultError wrapping boom, got %v", err)
	}

	addErr := p.Add(func(context.Context) (int, error) { return 1, nil })
	if !errors.Is(addErr, boom) {
		t.Fatalf("expected Add to refuse work after fault, got %v", addErr)
	}
	p.Close()
	p.Wait()
	if _, err := p.Next(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected fault to persist, got %v", err)
	}
}

func TestPoolLetsRunningTasksFinishAfterFault(t *testing.T) {
	p, _ := pool.New[int](context.Background(), 2)
	release := make(chan struct{})
	var finished atomic.Bool

	_ = p.Add(func(context.Context) (int, error) {
		<-release
		finished.Store(true)
		return 1, nil
	})
	_ = p.Add(func(context.Context) (int, error) { return 0, errors.New("fail") })

	if _, err := p.Next(context.Background()); err == nil {
		t.Fatal("expected fault")
	}
	close(release)
	p.Close()
	p.Wait()
	if !finished.Load() {
		t.Fatal("expected running task to complete")
	}
}

func TestPoolBackpressureHoldsSlotUntilResultConsumed(t *testing.T) {
	p, _ := pool.New[int](context.Background(), 1)

	// The first result fills the buffer, the second occupies the only slot
	// while waiting to hand over its result.
	_ = p.Add(func(context.Context) (int, error) { return 1, nil })
	_ = p.Add(func(context.Context) (int, error) { return 2, nil })

	added := make(chan struct{})
	go func() {
		_ = p.Add(func(context.Context) (int, error) { return 3, nil })
		close(added)
	}()

	select {
	case <-added:
		t.Fatal("expected Add to block while results are unconsumed")
	case <-time.After(30 * time.Millisecond):
	}

	if _, err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	select {
	case <-added:
	case <-time.After(time.Second):
		t.Fatal("expected Add to proceed once a result was consumed")
	}
	p.Close()
	if n, err := p.WaitUntilDrained(context.Background(), 2, nil); err != nil || n != 2 {
		t.Fatalf("WaitUntilDrained = %d, %v", n, err)
	}
}

func TestPoolCloseWithoutTasksDrains(t *testing.T) {
	p, _ := pool.New[string](context.Background(), 3)
	p.Close()
	if _, err := p.Next(context.Background()); !errors.Is(err, pool.ErrDrained) {
		t.Fatalf("expected ErrDrained, got %v", err)
	}
	if err := p.Add(func(context.Context) (string, error) { return "", nil }); !errors.Is(err, pool.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWaitUntilDrainedReportsShortStream(t *testing.T) {
	p, _ := pool.New[int](context.Background(), 1)
	_ = p.Add(func(context.Context) (int, error) { return 1, nil })
	p.Close()
	n, err := p.WaitUntilDrained(context.Background(), 2, nil)
	var short *pool.ShortDrainError
	if !errors.As(err, &short) || n != 1 || short.Expected != 2 {
		t.Fatalf("expected short drain after 1, got %d %v", n, err)
	}
}

func TestPoolContextCancelUnblocksAdd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := pool.New[int](ctx, 1)
	block := make(chan struct{})
	defer close(block)
	_ = p.Add(func(context.Context) (int, error) {
		<-block
		return 0, nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Add(func(context.Context) (int, error) { return 0, nil })
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Add did not return after cancellation")
	}
}

func TestPoolConvertsPanicToFault(t *testing.T) {
	p, _ := pool.New[int](context.Background(), 1)
	_ = p.Add(func(context.Context) (int, error) { panic("kaboom") })
	if _, err := p.Next(context.Background()); err == nil {
		t.Fatal("expected fault from panicking task")
	}
}

func TestPoolObserverSeesInFlightChanges(t *testing.T) {
	var maxSeen atomic.Int32
	p, _ := pool.New[int](context.Background(), 2, pool.WithObserver(func(n int) {
		if int32(n) > maxSeen.Load() {
			maxSeen.Store(int32(n))
		}
	}))
	_ = p.Add(func(context.Context) (int, error) { return 1, nil })
	p.Close()
	if _, err := p.WaitUntilDrained(context.Background(), 1, nil); err != nil {
		t.Fatalf("WaitUntilDrained: %v", err)
	}
	p.Wait()
	if maxSeen.Load() != 1 || p.InFlight() != 0 {
		t.Fatalf("unexpected observer state: max=%d inflight=%d", maxSeen.Load(), p.InFlight())
	}
}
