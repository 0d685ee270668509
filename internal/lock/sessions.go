// Package lock provides the per-session serialization point that keeps at most
// one mutation in flight for a given session id.
package lock

import (
	"context"

	"github.com/im7mortal/kmutex"
)

type Sessions struct {
	km *kmutex.Kmutex
}

func NewSessions() *Sessions {
	return &Sessions{km: kmutex.New()}
}

// Do runs fn while holding the lock for key. Different keys never block each other.
func (s *Sessions) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.km.Lock(key)
	defer s.km.Unlock(key)
	return fn(ctx)
}
