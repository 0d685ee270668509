// Package deadletter parks messages that a bus handler rejected on a Kafka
// topic so they can be inspected or replayed by hand.
package deadletter

import (
	"context"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/segmentio/kafka-go"
)

const (
	headerRoutingKey = "routing-key"
	headerError      = "error"
	headerFailedAt   = "failed-at"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	w     messageWriter
	topic string
}

func New(brokers []string, topic string) *Sink {
	return &Sink{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (s *Sink) Send(ctx context.Context, d bus.Delivery, cause error) error {
	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(d.RoutingKey),
		Value: d.Body,
		Headers: []kafka.Header{
			{Key: headerRoutingKey, Value: []byte(d.RoutingKey)},
			{Key: headerFailedAt, Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
		},
	}
	if cause != nil {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerError, Value: []byte(cause.Error())})
	}
	return s.w.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (s *Sink) Close() error { return s.w.Close() }
