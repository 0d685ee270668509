// Package cache decorates a Repository with a Redis read-through cache of
// session snapshots.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = time.Hour

type Repository struct {
	next repository.Repository
	r    *redis.Client
	ttl  time.Duration
}

func New(next repository.Repository, client *redis.Client, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repository{next: next, r: client, ttl: ttl}
}

func key(id domain.SessionID) string { return "collab:session:" + id.String() }

// Cache failures never fail a request; the underlying repository is the
// source of truth.
func (c *Repository) GetByID(ctx context.Context, id domain.SessionID) (*domain.EditSession, error) {
	log := observability.GetLogger(ctx)

	b, err := c.r.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var rec record
		if err := json.Unmarshal(b, &rec); err == nil {
			if s, err := rec.toSession(); err == nil {
				observability.SnapshotCacheTotal.WithLabelValues("hit").Inc()
				return s, nil
			}
		}
		log.Warn("snapshot cache: dropping undecodable entry", zap.String("session_id", id.String()))
		_ = c.r.Del(ctx, key(id)).Err()
	case !errors.Is(err, redis.Nil):
		log.Warn("snapshot cache: get failed", zap.String("session_id", id.String()), zap.Error(err))
	}
	observability.SnapshotCacheTotal.WithLabelValues("miss").Inc()

	s, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, s)
	return s, nil
}

func (c *Repository) Add(ctx context.Context, s *domain.EditSession) error {
	if err := c.next.Add(ctx, s); err != nil {
		return err
	}
	c.set(ctx, s)
	return nil
}

func (c *Repository) Update(ctx context.Context, s *domain.EditSession) error {
	if err := c.next.Update(ctx, s); err != nil {
		c.invalidate(ctx, s.ID())
		return err
	}
	c.set(ctx, s)
	return nil
}

func (c *Repository) Delete(ctx context.Context, id domain.SessionID) error {
	c.invalidate(ctx, id)
	return c.next.Delete(ctx, id)
}

func (c *Repository) Exists(ctx context.Context, id domain.SessionID) (bool, error) {
	n, err := c.r.Exists(ctx, key(id)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	return c.next.Exists(ctx, id)
}

func (c *Repository) GetActiveSessions(ctx context.Context) ([]*domain.EditSession, error) {
	return c.next.GetActiveSessions(ctx)
}

func (c *Repository) Ping(ctx context.Context) error {
	if err := c.r.Ping(ctx).Err(); err != nil {
		return err
	}
	if p, ok := c.next.(repository.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *Repository) set(ctx context.Context, s *domain.EditSession) {
	b, err := json.Marshal(fromSession(s))
	if err != nil {
		return
	}
	if err := c.r.Set(ctx, key(s.ID()), b, c.ttl).Err(); err != nil {
		observability.GetLogger(ctx).Warn("snapshot cache: set failed", zap.String("session_id", s.ID().String()), zap.Error(err))
	}
}

func (c *Repository) invalidate(ctx context.Context, id domain.SessionID) {
	if err := c.r.Del(ctx, key(id)).Err(); err != nil {
		observability.GetLogger(ctx).Warn("snapshot cache: delete failed", zap.String("session_id", id.String()), zap.Error(err))
	}
}
