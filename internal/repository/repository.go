package repository

import (
	"context"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
)

// Repository loads and saves whole EditSession aggregates. There is no partial
// update API: callers load, mutate and save the full aggregate.
type Repository interface {
	// GetByID returns domain.ErrSessionNotFound when the id is unknown.
	GetByID(ctx context.Context, id domain.SessionID) (*domain.EditSession, error)
	// Add returns domain.ErrSessionAlreadyExists when the id is taken.
	Add(ctx context.Context, s *domain.EditSession) error
	// Update returns domain.ErrSessionNotFound when the id is unknown.
	Update(ctx context.Context, s *domain.EditSession) error
	Delete(ctx context.Context, id domain.SessionID) error
	Exists(ctx context.Context, id domain.SessionID) (bool, error)
	GetActiveSessions(ctx context.Context) ([]*domain.EditSession, error)
}

// Pinger is implemented by repositories backed by a remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}
