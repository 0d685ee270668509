package application

import (
	"context"
	"fmt"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository"
	"go.uber.org/zap"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, e domain.Event) error
}

// BusDispatcher publishes domain events as bus messages.
type BusDispatcher struct {
	pub  bus.Publisher
	repo repository.Repository
}

func NewBusDispatcher(pub bus.Publisher, repo repository.Repository) *BusDispatcher {
	return &BusDispatcher{pub: pub, repo: repo}
}

func (d *BusDispatcher) Dispatch(ctx context.Context, e domain.Event) error {
	switch ev := e.(type) {
	case domain.OperationApplied:
		return d.pub.Publish(ctx, bus.RoutingOperations, OperationMessage{
			SessionID:        ev.SessionID.String(),
			Operation:        ToOperationDto(ev.Operation),
			ResultingContent: ev.ResultingContent.Text(),
			NewVersion:       ev.NewVersion,
		})
	case domain.ParticipantJoined:
		return d.pub.Publish(ctx, bus.RoutingParticipantJoined, ParticipantJoinedMessage{
			SessionID:       ev.SessionID.String(),
			ParticipantID:   ev.ParticipantID.String(),
			ParticipantName: ev.ParticipantName,
			Session:         d.sessionSnapshot(ctx, ev),
		})
	case domain.ParticipantLeft:
		return d.pub.Publish(ctx, bus.RoutingParticipantLeft, ParticipantLeftMessage{
			SessionID:             ev.SessionID.String(),
			ParticipantID:         ev.ParticipantID.String(),
			RemainingParticipants: ev.RemainingParticipants,
		})
	default:
		return fmt.Errorf("no dispatcher for event kind %q", e.Kind())
	}
}

// sessionSnapshot re-reads the session so the joiner gets the full participant
// list; the content carried by the event is the fallback.
func (d *BusDispatcher) sessionSnapshot(ctx context.Context, ev domain.ParticipantJoined) SessionDto {
	s, err := d.repo.GetByID(ctx, ev.SessionID)
	if err == nil {
		return ToSessionDto(s)
	}
	observability.GetLogger(ctx).Warn("joined snapshot fell back to event content",
		zap.String("session_id", ev.SessionID.String()),
		zap.Error(err),
	)
	return SessionDto{
		ID:      ev.SessionID.String(),
		Content: ev.Content.Text(),
		Participants: []ParticipantDto{{
			ID:       ev.ParticipantID.String(),
			Name:     ev.ParticipantName,
			JoinedAt: ev.OccurredAt(),
			IsActive: true,
		}},
	}
}
