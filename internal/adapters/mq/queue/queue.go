// Package queue buffers tournament notifications between the engine and the
// dispatch workers.
//
// Enqueue never blocks: a full queue drops the notification so rating and
// bracket operations are never slowed by slow subscribers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds n. It returns ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, n model.Notification) error
	// Dequeue returns the channel consumers read from; it is closed by Close.
	Dequeue() <-chan model.Notification
	// Len returns the number of buffered notifications.
	Len() int
	// Close stops accepting notifications. Buffered ones remain readable.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan model.Notification
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Notification, q.capacity)
	metrics.UpdateNotifyQueueSize(0)
	return q
}

// Enqueue adds a notification without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n model.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case q.items <- n:
		metrics.UpdateNotifyQueueSize(len(q.items))
		return nil
	default:
		metrics.RecordNotificationDropped()
		return ErrFull
	}
}

// Dequeue returns the receive side of the buffer.
func (q *InMemoryQueue) Dequeue() <-chan model.Notification {
	return q.items
}

// Len returns the current number of queued notifications.
func (q *InMemoryQueue) Len() int {
	n := len(q.items)
	metrics.UpdateNotifyQueueSize(n)
	return n
}

// Close stops the queue. It is idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
