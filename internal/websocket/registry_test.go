package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isClosed(c *Connection) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func TestRegistry_ConnectionReplacement(t *testing.T) {
	r := NewRegistry()
	sid := domain.NewSessionID()
	pid := domain.NewParticipantID()

	c1 := NewConnection("c1", pid, nil)
	r.Add(c1, sid)

	got, gotSession, ok := r.Lookup(pid)
	require.True(t, ok)
	assert.Same(t, c1, got)
	assert.Equal(t, sid, gotSession)

	c2 := NewConnection("c2", pid, nil)
	r.Add(c2, sid)

	assert.True(t, isClosed(c1), "replaced connection should be closed")
	assert.False(t, isClosed(c2))
	assert.Equal(t, 1, r.ConnectionCount(sid))

	// Late cleanup from the replaced connection must not evict c2.
	r.Remove(c1)
	got, _, ok = r.Lookup(pid)
	require.True(t, ok)
	assert.Same(t, c2, got)

	r.Remove(c2)
	_, _, ok = r.Lookup(pid)
	assert.False(t, ok)
	assert.Equal(t, 0, r.ConnectionCount(sid))
}

func TestRegistry_SameConnectionMovesSession(t *testing.T) {
	r := NewRegistry()
	s1, s2 := domain.NewSessionID(), domain.NewSessionID()
	c := NewConnection("c1", domain.NewParticipantID(), nil)

	r.Add(c, s1)
	r.Add(c, s2)

	assert.False(t, isClosed(c))
	assert.Equal(t, 0, r.ConnectionCount(s1))
	assert.Equal(t, 1, r.ConnectionCount(s2))
}

func TestRegistry_RemoveFromSession(t *testing.T) {
	r := NewRegistry()
	s1, s2 := domain.NewSessionID(), domain.NewSessionID()
	c := NewConnection("c1", domain.NewParticipantID(), nil)
	r.Add(c, s2)

	// A leave for a session the participant already moved away from.
	assert.False(t, r.RemoveFromSession(c.ParticipantID, s1))
	_, got, ok := r.Lookup(c.ParticipantID)
	require.True(t, ok)
	assert.Equal(t, s2, got)

	assert.True(t, r.RemoveFromSession(c.ParticipantID, s2))
	assert.False(t, r.RemoveFromSession(c.ParticipantID, s2))
	assert.Equal(t, 0, r.ConnectionCount(s2))
	assert.False(t, isClosed(c), "the socket stays open")
}

func TestRegistry_ClaimCommitClosesDisplaced(t *testing.T) {
	r := NewRegistry()
	sid := domain.NewSessionID()
	pid := domain.NewParticipantID()
	c1 := NewConnection("c1", pid, nil)
	c2 := NewConnection("c2", pid, nil)
	r.Add(c1, sid)

	claim := r.Claim(c2, sid)
	assert.False(t, isClosed(c1), "the displaced connection waits for the outcome")
	got, _, _ := r.Lookup(pid)
	assert.Same(t, c2, got)

	claim.Commit()
	assert.True(t, isClosed(c1))
	assert.Equal(t, 1, r.ConnectionCount(sid))
}

func TestRegistry_ClaimRollback(t *testing.T) {
	s1, s2 := domain.NewSessionID(), domain.NewSessionID()

	t.Run("Restores displaced connection", func(t *testing.T) {
		r := NewRegistry()
		pid := domain.NewParticipantID()
		c1 := NewConnection("c1", pid, nil)
		c2 := NewConnection("c2", pid, nil)
		r.Add(c1, s1)

		r.Claim(c2, s2).Rollback()

		got, gotSession, ok := r.Lookup(pid)
		require.True(t, ok)
		assert.Same(t, c1, got)
		assert.Equal(t, s1, gotSession)
		assert.Equal(t, 1, r.ConnectionCount(s1))
		assert.Equal(t, 0, r.ConnectionCount(s2))
		assert.False(t, isClosed(c1))
	})

	t.Run("Same connection returns to its session", func(t *testing.T) {
		r := NewRegistry()
		c := NewConnection("c1", domain.NewParticipantID(), nil)
		r.Add(c, s1)

		r.Claim(c, s2).Rollback()

		_, gotSession, ok := r.Lookup(c.ParticipantID)
		require.True(t, ok)
		assert.Equal(t, s1, gotSession)
	})

	t.Run("Closed displaced connection is not restored", func(t *testing.T) {
		r := NewRegistry()
		pid := domain.NewParticipantID()
		c1 := NewConnection("c1", pid, nil)
		c2 := NewConnection("c2", pid, nil)
		r.Add(c1, s1)

		claim := r.Claim(c2, s2)
		c1.Close()
		claim.Rollback()

		_, _, ok := r.Lookup(pid)
		assert.False(t, ok)
		assert.Equal(t, 0, r.ConnectionCount(s1))
	})

	t.Run("Superseded claim is left alone", func(t *testing.T) {
		r := NewRegistry()
		pid := domain.NewParticipantID()
		c1 := NewConnection("c1", pid, nil)
		c2 := NewConnection("c2", pid, nil)

		claim := r.Claim(c1, s1)
		r.Add(c2, s2)
		claim.Rollback()

		got, _, ok := r.Lookup(pid)
		require.True(t, ok)
		assert.Same(t, c2, got)
	})
}

func TestRegistry_BroadcastToSession(t *testing.T) {
	r := NewRegistry()
	sid := domain.NewSessionID()

	conns := make([]*Connection, 4)
	for i := range conns {
		conns[i] = NewConnection("c", domain.NewParticipantID(), nil)
		r.Add(conns[i], sid)
	}
	other := NewConnection("other", domain.NewParticipantID(), nil)
	r.Add(other, domain.NewSessionID())

	// One member has already gone away.
	conns[3].Close()

	frame := PongFrame{Type: FramePong}
	n := r.BroadcastToSession(context.Background(), sid, frame, conns[0].ParticipantID)
	assert.Equal(t, 2, n)

	assert.Len(t, conns[0].SendQueue, 0, "excluded participant")
	for _, c := range conns[1:3] {
		require.Len(t, c.SendQueue, 1)
		var got PongFrame
		require.NoError(t, json.Unmarshal(<-c.SendQueue, &got))
		assert.Equal(t, frame, got)
	}
	assert.Len(t, other.SendQueue, 0, "other sessions are untouched")
}

func TestRegistry_BackpressureClosesConnection(t *testing.T) {
	r := NewRegistry()
	sid := domain.NewSessionID()
	c := NewConnection("c1", domain.NewParticipantID(), nil)
	r.Add(c, sid)

	for i := 0; i < SendQueueSize; i++ {
		require.Equal(t, 1, r.BroadcastToSession(context.Background(), sid, PongFrame{Type: FramePong}))
	}
	assert.Equal(t, 0, r.BroadcastToSession(context.Background(), sid, PongFrame{Type: FramePong}))
	assert.True(t, isClosed(c))
}

func TestRegistry_SendToParticipant(t *testing.T) {
	r := NewRegistry()
	c := NewConnection("c1", domain.NewParticipantID(), nil)
	r.Add(c, domain.NewSessionID())

	assert.True(t, r.SendToParticipant(context.Background(), c.ParticipantID, PongFrame{Type: FramePong}))
	assert.False(t, r.SendToParticipant(context.Background(), domain.NewParticipantID(), PongFrame{Type: FramePong}))
	assert.Len(t, c.SendQueue, 1)
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := NewRegistry()
	sid := domain.NewSessionID()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewConnection("c", domain.NewParticipantID(), nil)
			r.Add(c, sid)
			r.BroadcastToSession(context.Background(), sid, PongFrame{Type: FramePong})
			r.Remove(c)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.ConnectionCount(sid))
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	sid := domain.NewSessionID()
	c1 := NewConnection("c1", domain.NewParticipantID(), nil)
	c2 := NewConnection("c2", domain.NewParticipantID(), nil)
	r.Add(c1, sid)
	r.Add(c2, domain.NewSessionID())

	r.CloseAll()

	assert.True(t, isClosed(c1))
	assert.True(t, isClosed(c2))
	assert.Equal(t, 0, r.ConnectionCount(sid))
}
