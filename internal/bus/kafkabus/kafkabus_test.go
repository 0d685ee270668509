package kafkabus

import (
	"context"
	"errors"
	"testing"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

type keyedMsg struct{ session string }

func (m keyedMsg) PartitionKey() string { return m.session }

func TestNewRecord(t *testing.T) {
	rec := newRecord("ex", bus.RoutingOperations, keyedMsg{session: "s-1"}, []byte(`{}`))

	assert.Equal(t, "ex", rec.Topic)
	assert.Equal(t, "s-1", string(rec.Key))
	assert.Equal(t, bus.RoutingOperations, routingKeyOf(rec))

	plain := newRecord("ex", bus.RoutingParticipantLeft, map[string]string{}, []byte(`{}`))
	assert.Equal(t, bus.RoutingParticipantLeft, string(plain.Key))
}

func TestRecordCarrier(t *testing.T) {
	rec := &kgo.Record{}
	c := recordCarrier{record: rec}

	c.Set("traceparent", "00-a-b-01")
	c.Set("traceparent", "00-c-d-01")
	c.Set("baggage", "k=v")

	assert.Equal(t, "00-c-d-01", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, c.Keys())
}

func TestHandle_PartitionErrorKeepsHealthyRecords(t *testing.T) {
	var committed []int64
	s := &subscription{
		bus: &Bus{},
		commit: func(_ context.Context, rs ...*kgo.Record) error {
			for _, r := range rs {
				committed = append(committed, r.Offset)
			}
			return nil
		},
	}

	op := newRecord("ex", bus.RoutingOperations, struct{}{}, []byte(`{"n":1}`))
	op.Offset = 7
	left := newRecord("ex", bus.RoutingParticipantLeft, struct{}{}, []byte(`{"n":2}`))
	left.Offset = 8

	fetches := kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic: "ex",
		Partitions: []kgo.FetchPartition{
			{Partition: 0, Err: errors.New("not leader for partition")},
			{Partition: 1, Records: []*kgo.Record{op, left}},
		},
	}}}}

	var handled []string
	s.handle(context.Background(), fetches, "session.operations", func(_ context.Context, d bus.Delivery) error {
		handled = append(handled, string(d.Body))
		return nil
	})

	assert.Equal(t, []string{`{"n":1}`}, handled)
	assert.Equal(t, []int64{7, 8}, committed, "unmatched records are committed too")
}
