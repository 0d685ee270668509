// Package kafkabus carries bus messages over a Kafka topic named after the
// exchange. The routing key travels in a record header. Every subscription
// joins its own consumer group, so each node sees every message, as a
// private queue bound to a topic exchange would.
package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const routingKeyHeader = "routing-key"

// Keyed messages choose their partition key; others are keyed by routing key.
type Keyed interface {
	PartitionKey() string
}

type Config struct {
	Brokers        []string
	Exchange       string
	InstanceID     string
	ConnectTimeout time.Duration
}

type Bus struct {
	cfg      Config
	producer *kgo.Client
	dl       bus.DeadLetterSink

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

type Option func(*Bus)

func WithDeadLetter(dl bus.DeadLetterSink) Option {
	return func(b *Bus) { b.dl = dl }
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Bus, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = bus.DefaultExchange
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Exchange),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := producer.Ping(pingCtx); err != nil {
		producer.Close()
		return nil, fmt.Errorf("kafkabus: connect %v: %w", cfg.Brokers, err)
	}

	b := &Bus{cfg: cfg, producer: producer, subs: make(map[*subscription]struct{})}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func newRecord(exchange, routingKey string, msg any, body []byte) *kgo.Record {
	key := routingKey
	if k, ok := msg.(Keyed); ok && k.PartitionKey() != "" {
		key = k.PartitionKey()
	}
	return &kgo.Record{
		Topic:   exchange,
		Key:     []byte(key),
		Value:   body,
		Headers: []kgo.RecordHeader{{Key: routingKeyHeader, Value: []byte(routingKey)}},
	}
}

func routingKeyOf(r *kgo.Record) string {
	return recordCarrier{record: r}.Get(routingKeyHeader)
}

func (b *Bus) Publish(ctx context.Context, routingKey string, msg any) error {
	body, err := bus.Encode(msg)
	if err != nil {
		return err
	}

	rec := newRecord(b.cfg.Exchange, routingKey, msg, body)
	otel.GetTextMapPropagator().Inject(ctx, recordCarrier{record: rec})

	if err := b.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("%w: %s: %w", bus.ErrPublish, routingKey, err)
	}
	observability.BusMessagesTotal.WithLabelValues(routingKey, "published").Inc()
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, pattern string, h bus.Handler) (bus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("kafkabus: subscribe on closed bus")
	}

	group := fmt.Sprintf("%s.%s.%s", b.cfg.Exchange, b.cfg.InstanceID, uuid.NewString())
	client, err := kgo.NewClient(
		kgo.SeedBrokers(b.cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(b.cfg.Exchange),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsRevoked(func(ctx context.Context, _ *kgo.Client, _ map[string][]int32) {
			observability.GetLogger(ctx).Info("kafka partitions revoked", zap.String("group", group))
		}),
		kgo.OnPartitionsAssigned(func(ctx context.Context, _ *kgo.Client, _ map[string][]int32) {
			observability.GetLogger(ctx).Info("kafka partitions assigned", zap.String("group", group))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("kafkabus: consumer for %s: %w", pattern, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{bus: b, client: client, commit: client.CommitRecords, cancel: cancel, stopped: make(chan struct{})}
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
	b.producer.Close()
	return nil
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.producer.Ping(ctx)
}

type subscription struct {
	bus     *Bus
	client  *kgo.Client
	commit  func(context.Context, ...*kgo.Record) error
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// run polls until the subscription is closed.
func (s *subscription) run(ctx context.Context, pattern string, h bus.Handler) {
	defer close(s.stopped)

	log := observability.GetLogger(ctx)
	log.Info("kafkabus: consumer started", zap.String("pattern", pattern))
	for {
		fetches := s.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			log.Info("kafkabus: consumer loop stopping", zap.String("pattern", pattern))
			return
		}
		s.handle(ctx, fetches, pattern, h)
	}
}

// handle processes one poll. A partition error is logged and the records that
// healthy partitions returned in the same poll are still handled. Each record
// is committed after its handler returns, failed ones included: a rejected
// message is dropped, not retried.
func (s *subscription) handle(ctx context.Context, fetches kgo.Fetches, pattern string, h bus.Handler) {
	log := observability.GetLogger(ctx)

	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("kafka fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
	})

	fetches.EachRecord(func(r *kgo.Record) {
		key := routingKeyOf(r)
		if bus.Match(pattern, key) {
			rctx := otel.GetTextMapPropagator().Extract(ctx, recordCarrier{record: r})
			bus.Consume(rctx, bus.Delivery{RoutingKey: key, Body: r.Value}, h, s.bus.dl)
		}
		if err := s.commit(ctx, r); err != nil && ctx.Err() == nil {
			log.Warn("kafkabus: commit failed", zap.Int64("offset", r.Offset), zap.Error(err))
		}
	})
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.stopped
		s.client.Close()

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return nil
}
