package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of pooled work.
type Task[T any] func(ctx context.Context) (T, error)

// Option configures a Pool.
type Option func(*settings)

type settings struct {
	observer func(inFlight int)
}

// WithObserver registers a callback invoked whenever the number of running
// tasks changes.
func WithObserver(fn func(inFlight int)) Option {
	return func(s *settings) {
		s.observer = fn
	}
}

// Pool runs tasks with bounded parallelism.
type Pool[T any] struct {
	ctx     context.Context
	size    int
	sem     *semaphore.Weighted
	results chan T

	accept     context.Context
	stopAccept context.CancelFunc

	faultOnce sync.Once
	faultCh   chan struct{}
	fault     error

	wg   sync.WaitGroup
	done chan struct{}

	mu       sync.Mutex
	closed   bool
	inFlight int
	peak     int
	observer func(int)
}

// New constructs a pool running at most size tasks concurrently. Tasks receive
// ctx; cancelling it also unblocks pending Add calls.
func New[T any](ctx context.Context, size int, opts ...Option) (*Pool[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	accept, stop := context.WithCancel(ctx)
	return &Pool[T]{
		ctx:        ctx,
		size:       size,
		sem:        semaphore.NewWeighted(int64(size)),
		results:    make(chan T, size),
		accept:     accept,
		stopAccept: stop,
		faultCh:    make(chan struct{}),
		done:       make(chan struct{}),
		observer:   s.observer,
	}, nil
}

// Size returns the configured concurrency limit.
func (p *Pool[T]) Size() int { return p.size }

// Add schedules task, blocking until a slot is free. It returns the fault
// error once the pool has faulted, ErrClosed after Close, or the context
// error if the pool context ends first.
func (p *Pool[T]) Add(task Task[T]) error {
	if err := p.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(p.accept, 1); err != nil {
		p.wg.Done()
		if faultErr := p.Err(); faultErr != nil {
			return faultErr
		}
		if ctxErr := p.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrClosed
	}
	if err := p.Err(); err != nil {
		p.sem.Release(1)
		p.wg.Done()
		return err
	}

	p.track(1)
	go p.run(task)
	return nil
}

func (p *Pool[T]) run(task Task[T]) {
	defer p.wg.Done()
	defer p.sem.Release(1)
	defer p.track(-1)

	value, err := p.invoke(task)
	if err != nil {
		p.setFault(err)
		return
	}
	select {
	case p.results <- value:
	case <-p.faultCh:
	case <-p.ctx.Done():
	}
}

func (p *Pool[T]) invoke(task Task[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(p.ctx)
}

func (p *Pool[T]) setFault(err error) {
	p.faultOnce.Do(func() {
		p.fault = &FaultError{Err: err}
		close(p.faultCh)
		p.stopAccept()
	})
}

// Err returns the fault error, or nil while the pool is healthy.
func (p *Pool[T]) Err() error {
	select {
	case <-p.faultCh:
		return p.fault
	default:
		return nil
	}
}

// Close stops accepting tasks. The stream ends once running tasks finish.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopAccept()
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
}

// Wait blocks until Close has been called and every started task has returned.
func (p *Pool[T]) Wait() {
	<-p.done
}

// Next returns the next completed result. It returns the fault error once any
// task has failed, ErrDrained after Close once every result was consumed, or
// ctx.Err() if ctx ends first.
func (p *Pool[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := p.Err(); err != nil {
		return zero, err
	}
	select {
	case value := <-p.results:
		return value, nil
	case <-p.faultCh:
		return zero, p.fault
	case <-p.done:
		if err := p.Err(); err != nil {
			return zero, err
		}
		select {
		case value := <-p.results:
			return value, nil
		default:
			return zero, ErrDrained
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// WaitUntilDrained blocks until exactly expected completions have been
// observed, passing each to onResult (which may be nil). It stops early on a
// fault, a context error, an error from onResult, or a stream that ends short.
func (p *Pool[T]) WaitUntilDrained(ctx context.Context, expected int, onResult func(T) error) (int, error) {
	observed := 0
	for observed < expected {
		value, err := p.Next(ctx)
		if errors.Is(err, ErrDrained) {
			return observed, &ShortDrainError{Expected: expected, Observed: observed}
		}
		if err != nil {
			return observed, err
		}
		observed++
		if onResult != nil {
			if err := onResult(value); err != nil {
				return observed, err
			}
		}
	}
	return observed, nil
}

// InFlight reports the number of tasks currently running.
func (p *Pool[T]) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Peak reports the highest number of concurrently running tasks observed.
func (p *Pool[T]) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func (p *Pool[T]) track(delta int) {
	p.mu.Lock()
	p.inFlight += delta
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	current := p.inFlight
	observer := p.observer
	p.mu.Unlock()
	if observer != nil {
		observer(current)
	}
}
