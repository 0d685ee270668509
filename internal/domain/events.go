package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventOperationApplied  EventKind = "operation_applied"
)

// Event is implemented only by the three variants below, so a type switch over
// them is exhaustive.
type Event interface {
	EventID() string
	OccurredAt() time.Time
	Kind() EventKind
	sealed()
}

type eventMeta struct {
	ID string
	At time.Time
}

func newMeta(now time.Time) eventMeta {
	return eventMeta{ID: uuid.NewString(), At: now}
}

func (m eventMeta) EventID() string       { return m.ID }
func (m eventMeta) OccurredAt() time.Time { return m.At }
func (eventMeta) sealed()                 {}

type ParticipantJoined struct {
	eventMeta
	SessionID       SessionID
	ParticipantID   ParticipantID
	ParticipantName string
	Content         DocumentContent
}

func (ParticipantJoined) Kind() EventKind { return EventParticipantJoined }

type ParticipantLeft struct {
	eventMeta
	SessionID             SessionID
	ParticipantID         ParticipantID
	RemainingParticipants int
}

func (ParticipantLeft) Kind() EventKind { return EventParticipantLeft }

type OperationApplied struct {
	eventMeta
	SessionID        SessionID
	Operation        TextOperation
	ResultingContent DocumentContent
	NewVersion       int
}

func (OperationApplied) Kind() EventKind { return EventOperationApplied }
