// Package publisher delivers tournament notifications to in-process subscribers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/pkg/logger"
)

// DefaultTopic carries every notification.
const DefaultTopic = "piste.notifications"

// Publisher delivers one notification.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Bus publishes notifications on a watermill Go-channel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	topic  string
}

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	topic  string
	buffer int64
}

// WithTopic overrides the topic name.
func WithTopic(topic string) BusOption {
	return func(c *busConfig) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithBuffer sets the per-subscriber output buffer.
func WithBuffer(n int64) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// NewBus creates an in-process bus.
func NewBus(opts ...BusOption) *Bus {
	c := busConfig{topic: DefaultTopic, buffer: 256}
	for _, opt := range opts {
		opt(&c)
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: c.buffer},
			watermill.NewStdLogger(false, false),
		),
		topic: c.topic,
	}
}

// Publish encodes n as JSON and sends it on the topic.
func (b *Bus) Publish(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(n.Type))
	msg.Metadata.Set("event", n.Event)
	msg.SetContext(ctx)
	return b.pubsub.Publish(b.topic, msg)
}

// Subscribe returns decoded notifications until ctx is done or the bus closes.
func (b *Bus) Subscribe(ctx context.Context) (<-chan model.Notification, error) {
	msgs, err := b.pubsub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	out := make(chan model.Notification)
	go func() {
		defer close(out)
		for msg := range msgs {
			var n model.Notification
			if err := json.Unmarshal(msg.Payload, &n); err != nil {
				msg.Nack()
				continue
			}
			select {
			case out <- n:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the pub/sub down and closes subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink over l.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{log: l}
}

// Publish logs n at info level.
func (s *LogSink) Publish(ctx context.Context, n model.Notification) error {
	s.log.Info(ctx, "notification",
		logger.String("id", n.ID),
		logger.String("type", string(n.Type)),
		logger.String("event", n.Event),
		logger.Int("payload_bytes", len(n.Payload)),
	)
	return nil
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

// Publish delivers n to every sink, even after a failure.
func (f Fanout) Publish(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
