package domain

import (
	"fmt"
	"slices"
	"time"
)

// Clock is swapped in tests.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// EditSession Invariants:
// 1. Membership: participant ids are unique.
// 2. Versioning: version equals the number of operations applied since creation.
// 3. Authorship: every history entry was authored by a member at the time it was applied.
// 4. Lifecycle: Close marks participants inactive without removing them; removing
//    the last participant closes the session.
//
// EditSession is not safe for concurrent use. Callers serialize mutations per id.
type EditSession struct {
	id             SessionID
	content        DocumentContent
	createdAt      time.Time
	lastModifiedAt time.Time
	closed         bool
	version        int
	participants   map[ParticipantID]Participant
	order          []ParticipantID
	history        []TextOperation
	events         []Event
	now            Clock
}

type Option func(*EditSession)

func WithClock(c Clock) Option {
	return func(s *EditSession) { s.now = c }
}

func NewEditSession(id SessionID, initial DocumentContent, opts ...Option) (*EditSession, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: session id must not be empty", ErrValidation)
	}
	s := &EditSession{
		id:           id,
		content:      initial,
		participants: make(map[ParticipantID]Participant),
		now:          systemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.lastModifiedAt = s.createdAt
	return s, nil
}

// Snapshot is the persisted form of an EditSession.
type Snapshot struct {
	ID             SessionID
	Content        DocumentContent
	CreatedAt      time.Time
	LastModifiedAt time.Time
	IsClosed       bool
	Version        int
	Participants   []Participant
	History        []TextOperation
}

// Restore rebuilds a session from storage. No events are raised.
func Restore(snap Snapshot, opts ...Option) (*EditSession, error) {
	if snap.ID.IsZero() {
		return nil, fmt.Errorf("%w: session id must not be empty", ErrValidation)
	}
	if snap.Version < 0 {
		return nil, fmt.Errorf("%w: version must not be negative", ErrValidation)
	}
	s := &EditSession{
		id:             snap.ID,
		content:        snap.Content,
		createdAt:      snap.CreatedAt,
		lastModifiedAt: snap.LastModifiedAt,
		closed:         snap.IsClosed,
		version:        snap.Version,
		participants:   make(map[ParticipantID]Participant, len(snap.Participants)),
		history:        slices.Clone(snap.History),
		now:            systemClock,
	}
	for _, p := range snap.Participants {
		if _, dup := s.participants[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %s", ErrValidation, p.ID)
		}
		s.participants[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *EditSession) Snapshot() Snapshot {
	return Snapshot{
		ID:             s.id,
		Content:        s.content,
		CreatedAt:      s.createdAt,
		LastModifiedAt: s.lastModifiedAt,
		IsClosed:       s.closed,
		Version:        s.version,
		Participants:   s.Participants(),
		History:        s.History(),
	}
}

func (s *EditSession) ID() SessionID             { return s.id }
func (s *EditSession) Content() DocumentContent  { return s.content }
func (s *EditSession) CreatedAt() time.Time      { return s.createdAt }
func (s *EditSession) LastModifiedAt() time.Time { return s.lastModifiedAt }
func (s *EditSession) IsClosed() bool            { return s.closed }
func (s *EditSession) Version() int              { return s.version }

// Participants returns a copy in join order.
func (s *EditSession) Participants() []Participant {
	out := make([]Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.participants[id])
	}
	return out
}

func (s *EditSession) Participant(id ParticipantID) (Participant, bool) {
	p, ok := s.participants[id]
	return p, ok
}

func (s *EditSession) HasParticipant(id ParticipantID) bool {
	_, ok := s.participants[id]
	return ok
}

func (s *EditSession) History() []TextOperation {
	return slices.Clone(s.history)
}

// DomainEvents returns pending events in the order they were raised.
func (s *EditSession) DomainEvents() []Event {
	return slices.Clone(s.events)
}

func (s *EditSession) ClearDomainEvents() {
	s.events = nil
}

func (s *EditSession) AddParticipant(id ParticipantID, name string) error {
	if s.closed {
		return fmt.Errorf("session %s: %w", s.id, ErrSessionClosed)
	}
	if _, ok := s.participants[id]; ok {
		return fmt.Errorf("participant %s in session %s: %w", id, s.id, ErrParticipantAlreadyJoined)
	}

	now := s.now()
	p, err := newParticipant(id, name, now)
	if err != nil {
		return err
	}

	s.participants[id] = p
	s.order = append(s.order, id)
	s.lastModifiedAt = now
	s.raise(ParticipantJoined{
		eventMeta:       newMeta(now),
		SessionID:       s.id,
		ParticipantID:   id,
		ParticipantName: name,
		Content:         s.content,
	})
	return nil
}

// RemoveParticipant is a no-op for unknown ids.
func (s *EditSession) RemoveParticipant(id ParticipantID) {
	if _, ok := s.participants[id]; !ok {
		return
	}

	now := s.now()
	delete(s.participants, id)
	s.order = slices.DeleteFunc(s.order, func(p ParticipantID) bool { return p == id })
	s.lastModifiedAt = now

	remaining := len(s.participants)
	s.raise(ParticipantLeft{
		eventMeta:             newMeta(now),
		SessionID:             s.id,
		ParticipantID:         id,
		RemainingParticipants: remaining,
	})

	if remaining == 0 {
		s.Close()
	}
}

// ApplyOperation transforms op against every history entry applied at or after
// op's baseline version, applies it, and records it at the current version.
// On error the session is unchanged.
func (s *EditSession) ApplyOperation(op TextOperation, t Transformer) (TextOperation, error) {
	if s.closed {
		return TextOperation{}, fmt.Errorf("session %s: %w", s.id, ErrSessionClosed)
	}
	if _, ok := s.participants[op.AuthorID()]; !ok {
		return TextOperation{}, fmt.Errorf("participant %s in session %s: %w", op.AuthorID(), s.id, ErrParticipantNotInSession)
	}
	if op.Version() > s.version {
		return TextOperation{}, fmt.Errorf("%w: baseline version %d is ahead of session version %d", ErrInvalidOperation, op.Version(), s.version)
	}

	transformed := op
	if concurrent := s.concurrentWith(op.Version()); len(concurrent) > 0 {
		transformed = t.TransformAgainstMultiple(op, concurrent)
	}

	// A delete whose whole range was already removed leaves the content alone
	// but still takes a version.
	next := s.content
	if !transformed.IsNoop() {
		var err error
		if next, err = transformed.Apply(s.content); err != nil {
			return TextOperation{}, fmt.Errorf("%w: %w", ErrInvalidOperation, err)
		}
	}

	now := s.now()
	applied := transformed.WithVersion(s.version)
	s.content = next
	s.version++
	s.history = append(s.history, applied)
	s.lastModifiedAt = now
	s.participants[op.AuthorID()] = s.participants[op.AuthorID()].touched(now)

	s.raise(OperationApplied{
		eventMeta:        newMeta(now),
		SessionID:        s.id,
		Operation:        applied,
		ResultingContent: next,
		NewVersion:       s.version,
	})
	return applied, nil
}

// concurrentWith returns history entries recorded at version >= baseline,
// ascending. History is append-only so it is already ordered.
func (s *EditSession) concurrentWith(baseline int) []TextOperation {
	i, _ := slices.BinarySearchFunc(s.history, baseline, func(op TextOperation, v int) int {
		return op.Version() - v
	})
	return slices.Clone(s.history[i:])
}

func (s *EditSession) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.lastModifiedAt = s.now()
	for id, p := range s.participants {
		s.participants[id] = p.deactivated()
	}
}

// Reopen does not reactivate participants.
func (s *EditSession) Reopen() {
	s.closed = false
	s.lastModifiedAt = s.now()
}

func (s *EditSession) UpdateParticipantActivity(id ParticipantID) error {
	p, ok := s.participants[id]
	if !ok {
		return fmt.Errorf("participant %s in session %s: %w", id, s.id, ErrParticipantNotFound)
	}
	s.participants[id] = p.touched(s.now())
	return nil
}

func (s *EditSession) raise(e Event) {
	s.events = append(s.events, e)
}
