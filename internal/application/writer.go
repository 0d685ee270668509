package application

import (
	"context"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository"
	"go.uber.org/zap"
)

type Writer interface {
	Create(ctx context.Context, s *domain.EditSession) error
	Save(ctx context.Context, s *domain.EditSession) error
}

// SessionWriter persists an aggregate and then dispatches its pending events
// in order. Dispatch failures are logged and never undo the write.
type SessionWriter struct {
	repo       repository.Repository
	dispatcher EventDispatcher
}

func NewSessionWriter(repo repository.Repository, dispatcher EventDispatcher) *SessionWriter {
	return &SessionWriter{repo: repo, dispatcher: dispatcher}
}

func (w *SessionWriter) Create(ctx context.Context, s *domain.EditSession) error {
	if err := w.repo.Add(ctx, s); err != nil {
		return err
	}
	w.flush(ctx, s)
	return nil
}

func (w *SessionWriter) Save(ctx context.Context, s *domain.EditSession) error {
	if err := w.repo.Update(ctx, s); err != nil {
		return err
	}
	w.flush(ctx, s)
	return nil
}

func (w *SessionWriter) flush(ctx context.Context, s *domain.EditSession) {
	for _, e := range s.DomainEvents() {
		if err := w.dispatcher.Dispatch(ctx, e); err != nil {
			observability.GetLogger(ctx).Error("failed to dispatch domain event",
				zap.String("session_id", s.ID().String()),
				zap.String("event_kind", string(e.Kind())),
				zap.String("event_id", e.EventID()),
				zap.Error(err),
			)
		}
	}
	s.ClearDomainEvents()
}
