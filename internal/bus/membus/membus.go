// Package membus is a single-process bus. Each subscription owns a buffered
// queue drained by one goroutine, so handlers see messages in publish order.
package membus

import (
	"context"
	"fmt"
	"sync"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
)

const queueSize = 256

type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
	dl     bus.DeadLetterSink
}

type Option func(*Bus)

func WithDeadLetter(dl bus.DeadLetterSink) Option {
	return func(b *Bus) { b.dl = dl }
}

func New(opts ...Option) *Bus {
	b := &Bus{subs: make(map[*subscription]struct{})}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, routingKey string, msg any) error {
	body, err := bus.Encode(msg)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("%w: bus closed", bus.ErrPublish)
	}

	d := bus.Delivery{RoutingKey: routingKey, Body: body}
	for s := range b.subs {
		if !bus.Match(s.pattern, routingKey) {
			continue
		}
		select {
		case s.queue <- d:
		case <-s.done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", bus.ErrPublish, ctx.Err())
		}
	}
	observability.BusMessagesTotal.WithLabelValues(routingKey, "published").Inc()
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, pattern string, h bus.Handler) (bus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("membus: subscribe on closed bus")
	}

	s := &subscription{
		bus:     b,
		pattern: pattern,
		queue:   make(chan bus.Delivery, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	b.subs[s] = struct{}{}
	go s.run(ctx, h, b.dl)
	return s, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
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

type subscription struct {
	bus     *Bus
	pattern string
	queue   chan bus.Delivery
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func (s *subscription) run(ctx context.Context, h bus.Handler, dl bus.DeadLetterSink) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			s.detach()
			return
		case <-s.done:
			return
		case d := <-s.queue:
			bus.Consume(ctx, d, h, dl)
		}
	}
}

// detach closes done before taking the bus lock so a publisher blocked on a
// full queue is released.
func (s *subscription) detach() {
	s.once.Do(func() {
		close(s.done)
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
}

// Close stops delivery and waits for an in-flight handler to return.
func (s *subscription) Close() error {
	s.detach()
	<-s.stopped
	return nil
}
