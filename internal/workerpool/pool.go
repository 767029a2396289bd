// Package workerpool runs work items on a fixed number of workers with a
// pool-wide concurrency ceiling.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pool bounds how many work functions run at once. The ceiling holds
// across overlapping Run calls, so stragglers from an abandoned run keep
// their slot until they return.
type Pool struct {
	name   string
	size   int
	sem    chan struct{}
	active atomic.Int64
	logger *zap.Logger

	// OnOccupancy, when set, observes the in-flight count after each change.
	OnOccupancy func(name string, inFlight int64)
}

func New(name string, size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name:   name,
		size:   size,
		sem:    make(chan struct{}, size),
		logger: logger,
	}
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Size() int { return p.size }

// InFlight returns the number of work functions currently executing.
func (p *Pool) InFlight() int64 {
	return p.active.Load()
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		p.observe(p.active.Add(1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	p.observe(p.active.Add(-1))
	<-p.sem
}

func (p *Pool) observe(n int64) {
	if p.OnOccupancy != nil {
		p.OnOccupancy(p.name, n)
	}
}

// PanicError is returned through Result.Err when fn panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// Result pairs an item with what fn produced for it.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Run feeds items to at most p.Size() workers through a bounded queue and
// returns a channel carrying one Result per processed item. The channel is
// buffered for every item, so an abandoned reader never blocks a worker,
// and it is closed once all workers have exited. Items not yet started when
// ctx is done are dropped.
func Run[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) <-chan Result[T, R] {
	results := make(chan Result[T, R], len(items))
	jobs := make(chan T, p.size)

	workers := p.size
	if len(items) < workers {
		workers = len(items)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range jobs {
				if err := p.acquire(ctx); err != nil {
					continue
				}
				results <- execOne(ctx, p, item, fn)
				p.release()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				p.logger.Debug("pool run cancelled before all items were queued",
					zap.String("pool", p.name),
					zap.Int("items", len(items)),
				)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func execOne[T, R any](ctx context.Context, p *Pool, item T, fn func(context.Context, T) (R, error)) (res Result[T, R]) {
	res.Item = item
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic recovered",
				zap.String("pool", p.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res.Err = &PanicError{Value: r}
		}
	}()

	res.Value, res.Err = fn(ctx, item)
	return res
}
