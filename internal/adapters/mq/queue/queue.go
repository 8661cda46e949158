// Package queue defines the contract for enqueuing and consuming signals.
//
// Implementations may use channels or more advanced structures. The MVP
// starts with an in-memory bounded queue.
package queue

import (
	"context"
	"sync"

	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 1024
)

// Signal is the payload type flowing through the queue.
type Signal = model.Signal

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a signal to the queue.
	// Returns false if the queue is full and the signal was not enqueued.
	Enqueue(ctx context.Context, s Signal) bool

	// Dequeue returns a channel that receives signals as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Signal

	// Len returns the current number of queued signals.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. After closing, no new signals
	// can be enqueued and the dequeue channel is closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	signals  chan Signal
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.signals = make(chan Signal, q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a signal to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Signal) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.signals <- s:
		metrics.UpdateQueueSize(len(q.signals))
		return true
	case <-ctx.Done():
		return false
	default:
		return false // queue is full
	}
}

// Dequeue returns a channel that receives signals as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Signal {
	out := make(chan Signal)
	go func() {
		defer close(out)
		for s := range q.signals {
			select {
			case out <- s:
				metrics.UpdateQueueSize(len(q.signals))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued signals.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.signals)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.signals)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
