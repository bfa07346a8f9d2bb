// Package queue holds plot jobs waiting for a worker.
package queue

import (
	"context"
	"sync"

	"github.com/okian/hepplot/internal/config"
	"github.com/okian/hepplot/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 64
)

// Task is one plot job flowing through the queue.
type Task struct {
	// ID identifies the task in logs and reports.
	ID  string
	Job *config.Job
}

// Queue provides bounded enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task without blocking. It returns ErrFull or ErrClosed
	// when the task was not added.
	Enqueue(ctx context.Context, t Task) error
	// Put adds a task, waiting for room until ctx is done.
	Put(ctx context.Context, t Task) error
	// Dequeue returns a channel that receives tasks in FIFO order. It is
	// closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Task
	// Len returns the number of pending tasks.
	Len() int
	// Close stops accepting tasks. Pending tasks are still delivered.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a task if there is room.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

// Put adds a task, blocking while the queue is full.
func (q *InMemoryQueue) Put(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns a channel that will receive tasks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			select {
			case out <- t:
				metrics.UpdateQueueSize(len(q.tasks))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of pending tasks.
func (q *InMemoryQueue) Len() int {
	return len(q.tasks)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
