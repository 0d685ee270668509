package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
)

// Repository keeps snapshots, never live aggregates, so a caller mutating a
// loaded session cannot change stored state without calling Update.
type Repository struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.Snapshot
}

func New() *Repository {
	return &Repository{sessions: make(map[domain.SessionID]domain.Snapshot)}
}

func (r *Repository) GetByID(ctx context.Context, id domain.SessionID) (*domain.EditSession, error) {
	r.mu.RLock()
	snap, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return domain.Restore(snap)
}

func (r *Repository) Add(ctx context.Context, s *domain.EditSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; ok {
		return fmt.Errorf("session %s: %w", s.ID(), domain.ErrSessionAlreadyExists)
	}
	r.sessions[s.ID()] = s.Snapshot()
	return nil
}

func (r *Repository) Update(ctx context.Context, s *domain.EditSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; !ok {
		return fmt.Errorf("session %s: %w", s.ID(), domain.ErrSessionNotFound)
	}
	r.sessions[s.ID()] = s.Snapshot()
	return nil
}

func (r *Repository) Delete(ctx context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *Repository) Exists(ctx context.Context, id domain.SessionID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[id]
	return ok, nil
}

// GetActiveSessions returns open sessions, oldest first.
func (r *Repository) GetActiveSessions(ctx context.Context) ([]*domain.EditSession, error) {
	r.mu.RLock()
	snaps := make([]domain.Snapshot, 0, len(r.sessions))
	for _, snap := range r.sessions {
		if !snap.IsClosed {
			snaps = append(snaps, snap)
		}
	}
	r.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})

	out := make([]*domain.EditSession, 0, len(snaps))
	for _, snap := range snaps {
		s, err := domain.Restore(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
