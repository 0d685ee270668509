package membus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	keys []string
}

func (c *collector) handle(_ context.Context, d bus.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, d.RoutingKey)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

func TestBus_RoutesByPattern(t *testing.T) {
	ctx := context.Background()
	b := New()
	defer b.Close()

	ops, participants := &collector{}, &collector{}
	_, err := b.Subscribe(ctx, bus.RoutingOperations, ops.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, "session.participant.*", participants.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, bus.RoutingOperations, map[string]int{"v": 1}))
	require.NoError(t, b.Publish(ctx, bus.RoutingParticipantJoined, map[string]int{"v": 2}))
	require.NoError(t, b.Publish(ctx, bus.RoutingParticipantLeft, map[string]int{"v": 3}))

	assert.Eventually(t, func() bool { return len(ops.snapshot()) == 1 && len(participants.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{bus.RoutingParticipantJoined, bus.RoutingParticipantLeft}, participants.snapshot())
}

func TestBus_PreservesOrderPerSubscription(t *testing.T) {
	ctx := context.Background()
	b := New()
	defer b.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	_, err := b.Subscribe(ctx, "#", func(_ context.Context, d bus.Delivery) error {
		v, err := bus.Decode[int](d)
		if err != nil {
			return err
		}
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, b.Publish(ctx, bus.RoutingOperations, i))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	}, time.Second, 5*time.Millisecond)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

type sink struct {
	mu  sync.Mutex
	got int
}

func (s *sink) Send(context.Context, bus.Delivery, error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got++
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got
}

func TestBus_HandlerErrorDropsAndContinues(t *testing.T) {
	ctx := context.Background()
	dl := &sink{}
	b := New(WithDeadLetter(dl))
	defer b.Close()

	ok := &collector{}
	_, err := b.Subscribe(ctx, bus.RoutingOperations, func(ctx context.Context, d bus.Delivery) error {
		if string(d.Body) == `"bad"` {
			return errors.New("poison")
		}
		return ok.handle(ctx, d)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, bus.RoutingOperations, "bad"))
	require.NoError(t, b.Publish(ctx, bus.RoutingOperations, "good"))

	assert.Eventually(t, func() bool { return len(ok.snapshot()) == 1 && dl.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBus_ClosedRejectsPublish(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())

	err := b.Publish(context.Background(), bus.RoutingOperations, "x")
	assert.ErrorIs(t, err, bus.ErrPublish)
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	b := New()
	defer b.Close()

	c := &collector{}
	sub, err := b.Subscribe(ctx, "#", c.handle)
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	require.NoError(t, b.Publish(ctx, bus.RoutingOperations, "x"))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}
