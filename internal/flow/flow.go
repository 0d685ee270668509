// Package flow turns bus messages into frames for the connections this node
// holds. Every node runs the same subscribers, so each one pushes to its own
// clients only.
package flow

import (
	"context"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/application"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/websocket"
	"go.uber.org/zap"
)

type Flows struct {
	registry *websocket.Registry
}

func New(registry *websocket.Registry) *Flows {
	return &Flows{registry: registry}
}

// Subscribe binds every flow to sub. On error the subscriptions already made
// are closed.
func (f *Flows) Subscribe(ctx context.Context, sub bus.Subscriber) ([]bus.Subscription, error) {
	bindings := []struct {
		key string
		h   bus.Handler
	}{
		{bus.RoutingOperations, f.HandleOperation},
		{bus.RoutingParticipantJoined, f.HandleParticipantJoined},
		{bus.RoutingParticipantLeft, f.HandleParticipantLeft},
	}

	subs := make([]bus.Subscription, 0, len(bindings))
	for _, b := range bindings {
		s, err := sub.Subscribe(ctx, b.key, b.h)
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// HandleOperation broadcasts to the whole session, author included; the
// author's copy is its acknowledgement.
func (f *Flows) HandleOperation(ctx context.Context, d bus.Delivery) error {
	msg, err := bus.Decode[application.OperationMessage](d)
	if err != nil {
		return err
	}
	sessionID, err := domain.ParseSessionID(msg.SessionID)
	if err != nil {
		return err
	}
	if f.registry.ConnectionCount(sessionID) == 0 {
		return nil
	}

	n := f.registry.BroadcastToSession(ctx, sessionID, websocket.OperationAppliedFrame{
		Type:      websocket.FrameOperationApplied,
		SessionID: msg.SessionID,
		Operation: msg.Operation,
	})
	observability.GetLogger(ctx).Debug("operation broadcast",
		zap.String("session_id", msg.SessionID),
		zap.Int("version", msg.NewVersion),
		zap.Int("delivered", n),
	)
	return nil
}

// HandleParticipantJoined sends the joiner its snapshot and tells everyone
// else in the session.
func (f *Flows) HandleParticipantJoined(ctx context.Context, d bus.Delivery) error {
	msg, err := bus.Decode[application.ParticipantJoinedMessage](d)
	if err != nil {
		return err
	}
	sessionID, err := domain.ParseSessionID(msg.SessionID)
	if err != nil {
		return err
	}
	participantID, err := domain.ParseParticipantID(msg.ParticipantID)
	if err != nil {
		return err
	}

	f.registry.SendToParticipant(ctx, participantID, websocket.NewJoinedFrame(msg.ParticipantID, msg.Session))
	f.registry.BroadcastToSession(ctx, sessionID, websocket.ParticipantJoinedFrame{
		Type:          websocket.FrameParticipantJoined,
		SessionID:     msg.SessionID,
		ParticipantID: msg.ParticipantID,
		Name:          msg.ParticipantName,
	}, participantID)
	return nil
}

// HandleParticipantLeft unregisters the leaver, if this node holds it for
// that session, then tells the remaining members.
func (f *Flows) HandleParticipantLeft(ctx context.Context, d bus.Delivery) error {
	msg, err := bus.Decode[application.ParticipantLeftMessage](d)
	if err != nil {
		return err
	}
	sessionID, err := domain.ParseSessionID(msg.SessionID)
	if err != nil {
		return err
	}
	participantID, err := domain.ParseParticipantID(msg.ParticipantID)
	if err != nil {
		return err
	}

	f.registry.RemoveFromSession(participantID, sessionID)
	f.registry.BroadcastToSession(ctx, sessionID, websocket.ParticipantLeftFrame{
		Type:          websocket.FrameParticipantLeft,
		SessionID:     msg.SessionID,
		ParticipantID: msg.ParticipantID,
	})
	return nil
}
