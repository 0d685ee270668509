// Package redisbus carries bus messages over Redis Pub/Sub. Channels are
// named "<exchange>:<routing key>"; each subscription holds its own
// PSUBSCRIBE connection and publishes share the client pool.
package redisbus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Bus struct {
	client   *redis.Client
	exchange string
	dl       bus.DeadLetterSink

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

type Option func(*Bus)

func WithDeadLetter(dl bus.DeadLetterSink) Option {
	return func(b *Bus) { b.dl = dl }
}

func New(client *redis.Client, exchange string, opts ...Option) *Bus {
	if exchange == "" {
		exchange = bus.DefaultExchange
	}
	b := &Bus{client: client, exchange: exchange, subs: make(map[*subscription]struct{})}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bus) channel(routingKey string) string {
	return b.exchange + ":" + routingKey
}

// globPattern widens a topic pattern to a Redis glob. Exact topic semantics
// are enforced afterwards with bus.Match.
func (b *Bus) globPattern(pattern string) string {
	return b.channel(strings.NewReplacer("#", "*").Replace(pattern))
}

func (b *Bus) Publish(ctx context.Context, routingKey string, msg any) error {
	body, err := bus.Encode(msg)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(routingKey), body).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", bus.ErrPublish, routingKey, err)
	}
	observability.BusMessagesTotal.WithLabelValues(routingKey, "published").Inc()
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, pattern string, h bus.Handler) (bus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("redisbus: subscribe on closed bus")
	}

	glob := b.globPattern(pattern)
	pubsub := b.client.PSubscribe(ctx, glob)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redisbus: psubscribe %s: %w", glob, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{bus: b, pubsub: pubsub, cancel: cancel, stopped: make(chan struct{})}
	b.subs[s] = struct{}{}
	go s.run(subCtx, pattern, h)
	return s, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return nil
}

// Ping lets readiness checks cover the bus connection.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type subscription struct {
	bus     *Bus
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

func (s *subscription) run(ctx context.Context, pattern string, h bus.Handler) {
	defer close(s.stopped)

	log := observability.GetLogger(ctx)
	log.Info("redisbus: subscribed", zap.String("pattern", pattern))

	prefix := s.bus.exchange + ":"
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info("redisbus: subscription loop stopping", zap.String("pattern", pattern))
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn("redisbus: pubsub channel closed", zap.String("pattern", pattern))
				return
			}
			key := strings.TrimPrefix(msg.Channel, prefix)
			if !bus.Match(pattern, key) {
				continue
			}
			bus.Consume(ctx, bus.Delivery{RoutingKey: key, Body: []byte(msg.Payload)}, h, s.bus.dl)
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		<-s.stopped
		err = s.pubsub.Close()

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
