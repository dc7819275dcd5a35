// Package worker dispatches queued notifications to a publisher.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/pkg/logger"
	"github.com/okian/piste/pkg/metrics"
)

const poolShutdownTimeout = 10 * time.Second

// Publisher delivers a notification to its subscribers.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue() <-chan model.Notification
}

// InMemoryWorker drains the queue into a publisher.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	name      string

	shutdown chan struct{}
	done     chan struct{}

	processed *atomic.Int64
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		publisher: publisher,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: &atomic.Int64{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run publishes notifications until the queue is closed and drained, ctx is
// done, or Stop is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, n); err != nil {
				w.logger.Error(ctx, "publish failed", logger.String("notification", n.ID), logger.Error(err))
			}
		}
	}
}

// Stop asks the worker to exit without draining.
func (w *InMemoryWorker) Stop() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, n model.Notification) error {
	if err := w.publisher.Publish(ctx, n); err != nil {
		metrics.RecordNotificationError()
		return fmt.Errorf("publish %s %s: %w", n.Type, n.ID, err)
	}
	metrics.RecordNotificationPublished(string(n.Type))
	w.processed.Add(1)
	return nil
}

// Pool runs several workers over one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64
	logger    logger.Logger
}

// NewPool creates a pool. workerCount < 1 uses one worker per CPU.
func NewPool(workerCount int, queue Queue, publisher Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		w := NewInMemoryWorker(queue, publisher, WithName("worker-"+strconv.Itoa(i)))
		w.processed = &p.processed
		p.workers[i] = w
	}
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Processed returns the number of notifications published so far.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			w.Stop()
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
