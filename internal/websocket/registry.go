package websocket

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const shardCount = 32

type registration struct {
	conn      *Connection
	sessionID domain.SessionID
}

type participantShard struct {
	mu   sync.RWMutex
	regs map[domain.ParticipantID]registration
}

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]map[domain.ParticipantID]*Connection
}

// Registry maps participants to their live connection and sessions to their
// members' connections. State is split over fixed shards keyed by an FNV hash
// of the id. When both kinds of shard are needed the participant shard is
// locked first.
type Registry struct {
	participants [shardCount]participantShard
	sessions     [shardCount]sessionShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.participants {
		r.participants[i].regs = make(map[domain.ParticipantID]registration)
		r.sessions[i].sessions = make(map[domain.SessionID]map[domain.ParticipantID]*Connection)
	}
	return r
}

func shardOf(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32() % shardCount
}

func (r *Registry) participantShard(id domain.ParticipantID) *participantShard {
	return &r.participants[shardOf(id.String())]
}

func (r *Registry) sessionShard(id domain.SessionID) *sessionShard {
	return &r.sessions[shardOf(id.String())]
}

// Add registers conn as its participant's connection in sessionID. A
// different connection already registered for the participant is replaced
// and closed with CloseConnectionReplaced.
func (r *Registry) Add(conn *Connection, sessionID domain.SessionID) {
	r.Claim(conn, sessionID).Commit()
}

// Claim is a registration made ahead of a join whose outcome is not known
// yet. The caller settles it with exactly one of Commit or Rollback.
type Claim struct {
	r    *Registry
	reg  registration
	prev registration
	had  bool
}

// Claim registers conn in sessionID like Add, but the connection it displaces
// stays open until Commit.
func (r *Registry) Claim(conn *Connection, sessionID domain.SessionID) *Claim {
	ps := r.participantShard(conn.ParticipantID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	c := &Claim{r: r, reg: registration{conn: conn, sessionID: sessionID}}
	c.prev, c.had = ps.regs[conn.ParticipantID]
	if c.had {
		r.detach(c.prev)
	}
	r.attach(ps, c.reg)
	return c
}

// Commit keeps the claim and closes the displaced connection, if any.
func (c *Claim) Commit() {
	if !c.had || c.prev.conn == c.reg.conn {
		return
	}
	logger().Info("registry: replacing existing connection",
		zap.String("participant_id", c.reg.conn.ParticipantID.String()),
		zap.String("old_connection_id", c.prev.conn.ID),
		zap.String("new_connection_id", c.reg.conn.ID),
	)
	c.prev.conn.CloseWithReason(CloseConnectionReplaced, "connection_replaced")
}

// Rollback undoes the claim while it is still current. The displaced
// registration comes back unless its connection closed in the meantime.
func (c *Claim) Rollback() {
	id := c.reg.conn.ParticipantID
	ps := c.r.participantShard(id)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if cur, ok := ps.regs[id]; !ok || cur != c.reg {
		return
	}
	delete(ps.regs, id)
	c.r.detach(c.reg)
	if c.had && !c.prev.conn.IsClosed() {
		c.r.attach(ps, c.prev)
	}
}

// attach records reg in both indexes. Caller holds ps.
func (r *Registry) attach(ps *participantShard, reg registration) {
	ps.regs[reg.conn.ParticipantID] = reg
	ss := r.sessionShard(reg.sessionID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	members := ss.sessions[reg.sessionID]
	if members == nil {
		members = make(map[domain.ParticipantID]*Connection)
		ss.sessions[reg.sessionID] = members
	}
	members[reg.conn.ParticipantID] = reg.conn
}

// detach drops reg from its session set. Caller holds the participant shard.
func (r *Registry) detach(reg registration) {
	ss := r.sessionShard(reg.sessionID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	members := ss.sessions[reg.sessionID]
	if members[reg.conn.ParticipantID] == reg.conn {
		delete(members, reg.conn.ParticipantID)
	}
	if len(members) == 0 {
		delete(ss.sessions, reg.sessionID)
	}
}

// Remove unregisters conn. It is a no-op when conn has since been replaced.
func (r *Registry) Remove(conn *Connection) {
	ps := r.participantShard(conn.ParticipantID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	reg, ok := ps.regs[conn.ParticipantID]
	if !ok || reg.conn != conn {
		return
	}
	delete(ps.regs, conn.ParticipantID)
	r.detach(reg)
}

// RemoveFromSession unregisters the participant only while it is registered
// in sessionID. The connection stays open.
func (r *Registry) RemoveFromSession(id domain.ParticipantID, sessionID domain.SessionID) bool {
	ps := r.participantShard(id)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	reg, ok := ps.regs[id]
	if !ok || reg.sessionID != sessionID {
		return false
	}
	delete(ps.regs, id)
	r.detach(reg)
	return true
}

func (r *Registry) Lookup(id domain.ParticipantID) (*Connection, domain.SessionID, bool) {
	ps := r.participantShard(id)
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	reg, ok := ps.regs[id]
	return reg.conn, reg.sessionID, ok
}

func (r *Registry) ConnectionCount(sessionID domain.SessionID) int {
	ss := r.sessionShard(sessionID)
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions[sessionID])
}

// SendToParticipant delivers frame to the participant's connection, if any.
func (r *Registry) SendToParticipant(ctx context.Context, id domain.ParticipantID, frame any) bool {
	conn, _, ok := r.Lookup(id)
	if !ok {
		return false
	}
	b, err := json.Marshal(frame)
	if err != nil {
		observability.GetLogger(ctx).Error("registry: encode frame", zap.Error(err))
		return false
	}
	return deliver(ctx, conn, b)
}

// BroadcastToSession sends frame to every connection in the session except
// the excluded participants and returns how many accepted it. Per-connection
// failures are logged and counted, never returned.
func (r *Registry) BroadcastToSession(ctx context.Context, sessionID domain.SessionID, frame any, exclude ...domain.ParticipantID) int {
	b, err := json.Marshal(frame)
	if err != nil {
		observability.GetLogger(ctx).Error("registry: encode frame", zap.Error(err))
		return 0
	}

	ss := r.sessionShard(sessionID)
	ss.mu.RLock()
	targets := make([]*Connection, 0, len(ss.sessions[sessionID]))
	for pid, conn := range ss.sessions[sessionID] {
		if !lo.Contains(exclude, pid) {
			targets = append(targets, conn)
		}
	}
	ss.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if deliver(ctx, conn, b) {
			delivered++
		}
	}
	return delivered
}

func deliver(ctx context.Context, conn *Connection, b []byte) bool {
	if conn.TrySend(b) {
		observability.BroadcastDeliveriesTotal.WithLabelValues("delivered").Inc()
		return true
	}
	observability.BroadcastDeliveriesTotal.WithLabelValues("failed").Inc()
	observability.GetLogger(ctx).Warn("registry: delivery failed",
		zap.String("connection_id", conn.ID),
		zap.String("participant_id", conn.ParticipantID.String()),
	)
	return false
}

// CloseAll closes every registered connection and empties the registry.
func (r *Registry) CloseAll() {
	var conns []*Connection
	for i := range r.participants {
		ps := &r.participants[i]
		ps.mu.Lock()
		for id, reg := range ps.regs {
			conns = append(conns, reg.conn)
			delete(ps.regs, id)
			r.detach(reg)
		}
		ps.mu.Unlock()
	}
	for _, c := range conns {
		c.Close()
	}
}
