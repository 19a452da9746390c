package worker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// A small bounded worker pool: a fixed number of goroutines drain a queue of tasks.
// With one worker, tasks run strictly in submission order.

type Task func(ctx context.Context) error

var ErrPoolClosed = errors.New("worker pool closed")

type Pool struct {
	n      int
	jobs   chan Task
	g      *errgroup.Group
	ctx    context.Context
	once   sync.Once
	closed chan struct{}
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{n: workers, jobs: make(chan Task), closed: make(chan struct{})}
}

// Workers returns the number of goroutines started by Start.
func (p *Pool) Workers() int { return p.n }

// Start launches the workers. A task error stops the pool and cancels the
// context handed to the remaining tasks.
func (p *Pool) Start(ctx context.Context) {
	p.g, p.ctx = errgroup.WithContext(ctx)
	for i := 0; i < p.n; i++ {
		p.g.Go(func() error {
			for task := range p.jobs {
				if task == nil {
					continue
				}
				if err := task(p.ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// Submit blocks until a worker accepts the task or ctx is done.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Wait stops accepting tasks and waits for the running ones to finish.
// Submit and Wait must be called from the same producer goroutine.
func (p *Pool) Wait() error {
	p.once.Do(func() {
		close(p.closed)
		close(p.jobs)
	})
	return p.g.Wait()
}
