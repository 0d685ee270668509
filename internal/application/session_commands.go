package application

import (
	"context"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"go.uber.org/zap"
)

type CreateSessionCommand struct {
	InitialContent string
}

func (s *Service) CreateSession(ctx context.Context, cmd CreateSessionCommand) (domain.SessionID, error) {
	content, err := domain.ContentFrom(cmd.InitialContent)
	if err != nil {
		return domain.SessionID{}, err
	}

	session, err := domain.NewEditSession(domain.NewSessionID(), content)
	if err != nil {
		return domain.SessionID{}, err
	}
	if err := s.writer.Create(ctx, session); err != nil {
		return domain.SessionID{}, err
	}

	observability.GetLogger(ctx).Info("session created",
		zap.String("session_id", session.ID().String()),
		zap.Int("content_length", content.Len()),
	)
	return session.ID(), nil
}

type JoinSessionCommand struct {
	SessionID     domain.SessionID
	ParticipantID domain.ParticipantID
	Name          string
}

func (s *Service) JoinSession(ctx context.Context, cmd JoinSessionCommand) (SessionDto, error) {
	var dto SessionDto
	err := s.mutate(ctx, cmd.SessionID, func(session *domain.EditSession) error {
		if err := session.AddParticipant(cmd.ParticipantID, cmd.Name); err != nil {
			return err
		}
		dto = ToSessionDto(session)
		return nil
	})
	if err != nil {
		observability.GetLogger(ctx).Warn("join rejected",
			zap.String("session_id", cmd.SessionID.String()),
			zap.String("participant_id", cmd.ParticipantID.String()),
			zap.Error(err),
		)
		return SessionDto{}, err
	}

	observability.GetLogger(ctx).Info("participant joined",
		zap.String("session_id", cmd.SessionID.String()),
		zap.String("participant_id", cmd.ParticipantID.String()),
	)
	return dto, nil
}

type LeaveSessionCommand struct {
	SessionID     domain.SessionID
	ParticipantID domain.ParticipantID
}

// LeaveSession is idempotent: leaving a session one is not part of succeeds
// without writing anything.
func (s *Service) LeaveSession(ctx context.Context, cmd LeaveSessionCommand) error {
	err := s.mutate(ctx, cmd.SessionID, func(session *domain.EditSession) error {
		if !session.HasParticipant(cmd.ParticipantID) {
			return errSkipSave
		}
		session.RemoveParticipant(cmd.ParticipantID)
		return nil
	})
	if err != nil {
		return err
	}

	observability.GetLogger(ctx).Info("participant left",
		zap.String("session_id", cmd.SessionID.String()),
		zap.String("participant_id", cmd.ParticipantID.String()),
	)
	return nil
}

func (s *Service) CloseSession(ctx context.Context, id domain.SessionID) error {
	return s.mutate(ctx, id, func(session *domain.EditSession) error {
		session.Close()
		return nil
	})
}

func (s *Service) ReopenSession(ctx context.Context, id domain.SessionID) error {
	return s.mutate(ctx, id, func(session *domain.EditSession) error {
		session.Reopen()
		return nil
	})
}

type TouchParticipantCommand struct {
	SessionID     domain.SessionID
	ParticipantID domain.ParticipantID
}

func (s *Service) TouchParticipant(ctx context.Context, cmd TouchParticipantCommand) error {
	return s.mutate(ctx, cmd.SessionID, func(session *domain.EditSession) error {
		return session.UpdateParticipantActivity(cmd.ParticipantID)
	})
}
