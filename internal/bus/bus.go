// Package bus decouples the write path from the push path. Publishers emit
// JSON messages under a routing key; subscribers bind a topic pattern and
// receive matching messages one at a time.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	RoutingOperations        = "session.operations"
	RoutingParticipantJoined = "session.participant.joined"
	RoutingParticipantLeft   = "session.participant.left"

	DefaultExchange = "collab-editor-exchange"
)

var ErrPublish = errors.New("bus: publish failed")

// Delivery is one message handed to a subscriber.
type Delivery struct {
	RoutingKey string
	Body       []byte
}

// Handler processes a delivery. A returned error drops the message; it is
// never redelivered.
type Handler func(ctx context.Context, d Delivery) error

type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

type Subscription interface {
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, pattern string, h Handler) (Subscription, error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Encode marshals msg unless it is already raw bytes.
func Encode(msg any) ([]byte, error) {
	switch v := msg.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrPublish, err)
	}
	return b, nil
}

func Decode[T any](d Delivery) (T, error) {
	var v T
	if err := json.Unmarshal(d.Body, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", d.RoutingKey, err)
	}
	return v, nil
}

// Match reports whether routingKey matches an AMQP topic pattern: words are
// dot separated, "*" matches exactly one word and "#" zero or more.
func Match(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(p, k []string) bool {
	for len(p) > 0 {
		switch p[0] {
		case "#":
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(k); i++ {
				if matchWords(p[1:], k[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(k) == 0 {
				return false
			}
		default:
			if len(k) == 0 || p[0] != k[0] {
				return false
			}
		}
		p, k = p[1:], k[1:]
	}
	return len(k) == 0
}
