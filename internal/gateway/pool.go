package gateway

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs generation tasks as independent goroutines bounded by a global
// concurrency semaphore. Unlike a FIFO queue, submissions never wait on each
// other to be accepted: the command path must return immediately, and a slow
// request for one user must not block another.
type Pool struct {
	sem *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool allowing up to maxConcurrent tasks to execute
// simultaneously.
func NewPool(maxConcurrent int64) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Start initialises the pool's context. Must be called before Submit.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
}

// Stop cancels the pool context and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit schedules fn on the pool and returns immediately. fn is always
// invoked, even during shutdown, so deferred cleanup inside it runs exactly
// once; it must check its context before doing real work.
func (p *Pool) Submit(fn func(ctx context.Context)) error {
	if p.ctx == nil {
		return fmt.Errorf("pool not started")
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			// Context canceled while waiting for a slot; let fn observe
			// the cancellation and clean up.
			fn(p.ctx)
			return
		}
		defer p.sem.Release(1)
		fn(p.ctx)
	}()
	return nil
}
