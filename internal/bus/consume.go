package bus

import (
	"context"
	"fmt"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"go.uber.org/zap"
)

// DeadLetterSink receives messages a handler rejected.
type DeadLetterSink interface {
	Send(ctx context.Context, d Delivery, cause error) error
}

// Consume runs h for one delivery and applies the drop policy shared by every
// driver: failures are logged, counted and forwarded to dl when set.
func Consume(ctx context.Context, d Delivery, h Handler, dl DeadLetterSink) {
	err := safeHandle(ctx, d, h)
	if err == nil {
		observability.BusMessagesTotal.WithLabelValues(d.RoutingKey, "consumed").Inc()
		return
	}

	log := observability.GetLogger(ctx)
	log.Error("bus: dropping message",
		zap.String("routing_key", d.RoutingKey),
		zap.Int("size", len(d.Body)),
		zap.Error(err),
	)
	observability.BusMessagesTotal.WithLabelValues(d.RoutingKey, "dropped").Inc()

	if dl == nil {
		return
	}
	if err := dl.Send(ctx, d, err); err != nil {
		log.Warn("bus: dead-letter forward failed", zap.String("routing_key", d.RoutingKey), zap.Error(err))
	}
}

func safeHandle(ctx context.Context, d Delivery, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, d)
}
