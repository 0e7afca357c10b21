package worker

import (
	"context"
	"log/slog"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool[T any] struct {
	name       string
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	done   <-chan struct{}
}

func NewPool[T any](name string, numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	return &Pool[T]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	p.done = ctx.Done()
	p.mu.Unlock()

	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				slog.Warn("job failed", "pool", p.name, "worker", id, "error", err)
			}
		}
	}
}

// Submit blocks until the job is queued. It reports false once the pool is
// stopped or the context passed to Start is done.
func (p *Pool[T]) Submit(job T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.done:
		return false
	}
}

// TrySubmit queues the job only if there is room, never blocking the caller.
func (p *Pool[T]) TrySubmit(job T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop stops accepting jobs and waits for the workers to drain the queue.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
