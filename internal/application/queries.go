package application

import (
	"context"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/samber/lo"
)

func (s *Service) GetSession(ctx context.Context, id domain.SessionID) (SessionDto, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return SessionDto{}, err
	}
	return ToSessionDto(session), nil
}

func (s *Service) ListActiveSessions(ctx context.Context) ([]SessionDto, error) {
	sessions, err := s.repo.GetActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(sessions, func(session *domain.EditSession, _ int) SessionDto {
		return ToSessionDto(session)
	}), nil
}
