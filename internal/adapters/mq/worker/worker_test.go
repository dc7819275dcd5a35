package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/piste/internal/adapters/mq/queue"
	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingPublisher struct {
	mu   sync.Mutex
	got  []model.Notification
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, n model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("bus down")
	}
	p.got = append(p.got, n)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func TestPool(t *testing.T) {
	_ = logger.Init()

	Convey("Given a pool over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		pub := &recordingPublisher{}
		pool := NewPool(3, q, pub)
		pool.Start(context.Background())

		Convey("When notifications are enqueued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				So(q.Enqueue(context.Background(), model.NewNotification(model.BoutAdded, "Open", nil)), ShouldBeNil)
			}
			So(pool.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then every notification is published", func() {
				So(pub.count(), ShouldEqual, 20)
				So(pool.Processed(), ShouldEqual, 20)
			})
		})
	})

	Convey("Given a failing publisher", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		pub := &recordingPublisher{fail: true}
		w := NewInMemoryWorker(q, pub, WithName("solo"))
		go w.Run(context.Background())

		_ = q.Enqueue(context.Background(), model.NewNotification(model.BracketCreated, "Open", nil))
		_ = q.Close()

		Convey("Then the worker keeps going and exits when the queue is drained", func() {
			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not exit")
			}
			So(w.processed.Load(), ShouldEqual, 0)
		})
	})

	Convey("Given a stopped worker", t, func() {
		q := queue.NewInMemoryQueue()
		w := NewInMemoryWorker(q, &recordingPublisher{})
		go w.Run(context.Background())
		w.Stop()
		w.Stop()

		Convey("Then Run returns without the queue closing", func() {
			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not stop")
			}
		})
	})
}
