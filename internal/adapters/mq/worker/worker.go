package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/hepplot/internal/adapters/mq/queue"
	"github.com/okian/hepplot/pkg/logger"
	"github.com/okian/hepplot/pkg/metrics"
)

// Handler runs one task.
type Handler interface {
	Handle(ctx context.Context, t queue.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t queue.Task) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t queue.Task) error { return f(ctx, t) }

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// TaskError ties a handler failure to its task.
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %s: %v", e.TaskID, e.Err) }

func (e *TaskError) Unwrap() error { return e.Err }

// Pool drains a queue with a fixed number of workers.
type Pool struct {
	workers  int
	queue    Queue
	handler  Handler
	name     string
	failFast bool
	logger   logger.Logger

	active atomic.Int64
	mu     sync.Mutex
	errs   []error
}

// NewPool creates a worker pool. A non-positive count means one worker per CPU.
func NewPool(workers int, q Queue, h Handler, opts ...Option) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		queue:   q,
		handler: h,
		name:    "worker-pool",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named(p.name)
	}
	return p
}

// Run blocks until the queue is closed and drained, or ctx is done. Task
// failures are logged and returned joined as *TaskError values; with
// fail-fast the first failure stops the pool.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	tasks := p.queue.Dequeue(gctx)
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error { return p.work(gctx, id, tasks) })
	}
	// every error a worker returns is also in p.errs
	_ = g.Wait()
	metrics.UpdateWorkersActive(0)

	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Pool) work(ctx context.Context, id int, tasks <-chan queue.Task) error {
	log := p.logger.With(logger.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-tasks:
			if !ok {
				return nil
			}
			metrics.UpdateWorkersActive(int(p.active.Add(1)))
			err := p.handler.Handle(ctx, t)
			metrics.UpdateWorkersActive(int(p.active.Add(-1)))
			if err == nil {
				continue
			}
			terr := &TaskError{TaskID: t.ID, Err: err}
			log.Error(ctx, "task failed", logger.String("task", t.ID), logger.Error(err))
			p.mu.Lock()
			p.errs = append(p.errs, terr)
			p.mu.Unlock()
			if p.failFast {
				return terr
			}
		}
	}
}
