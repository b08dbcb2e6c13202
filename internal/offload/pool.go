// Package offload runs blocking units of work on a bounded pool so the
// calling goroutine only waits for the result.
package offload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("offload pool closed")

// Pool bounds the number of units running at once.
type Pool struct {
	size     int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	closed   atomic.Bool
}

// NewPool returns a pool running at most workers units concurrently.
// workers below 1 is treated as 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{size: int64(workers), sem: semaphore.NewWeighted(int64(workers))}
}

// Size returns the maximum number of concurrent units.
func (p *Pool) Size() int { return int(p.size) }

// InFlight returns the number of units currently running.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// Close stops the pool accepting new units and waits for running ones.
func (p *Pool) Close(ctx context.Context) error {
	p.closed.Store(true)
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return fmt.Errorf("drain offload pool: %w", err)
	}
	p.sem.Release(p.size)
	return nil
}

// Run executes unit on the pool and waits for its result.
//
// Waiting for a slot honours ctx. Once a unit has started it runs to
// completion under a context that is never cancelled, so a commit in
// progress is not torn down; if ctx ends first Run returns ctx.Err() and the
// result is discarded. A panic in unit is returned as an error.
func Run[T any](ctx context.Context, p *Pool, unit func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.closed.Load() {
		return zero, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	// Close may have drained and returned while this caller waited.
	if p.closed.Load() {
		p.sem.Release(1)
		return zero, ErrPoolClosed
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	detached := context.WithoutCancel(ctx)

	p.inFlight.Add(1)
	go func() {
		var r result
		var pc panics.Catcher
		pc.Try(func() { r.v, r.err = unit(detached) })
		if rec := pc.Recovered(); rec != nil {
			r = result{err: fmt.Errorf("offloaded unit: %w", rec.AsError())}
		}
		// Free the slot before publishing so callers observe it released.
		p.inFlight.Add(-1)
		p.sem.Release(1)
		done <- r
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
