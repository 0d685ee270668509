package application

import (
	"context"
	"errors"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
)

// errSkipSave lets a mutation finish successfully without a write.
var errSkipSave = errors.New("skip save")

// mutate loads, changes and saves one session while holding its lock.
func (s *Service) mutate(ctx context.Context, id domain.SessionID, fn func(*domain.EditSession) error) error {
	return s.locks.Do(ctx, id.String(), func(ctx context.Context) error {
		session, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			if errors.Is(err, errSkipSave) {
				return nil
			}
			return err
		}
		return s.writer.Save(ctx, session)
	})
}
