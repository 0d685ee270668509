package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type SessionID struct{ v uuid.UUID }

type ParticipantID struct{ v uuid.UUID }

func NewSessionID() SessionID { return SessionID{v: uuid.New()} }

func NewParticipantID() ParticipantID { return ParticipantID{v: uuid.New()} }

// SessionIDFrom wraps an existing value. The nil UUID is rejected.
func SessionIDFrom(u uuid.UUID) (SessionID, error) {
	if u == uuid.Nil {
		return SessionID{}, fmt.Errorf("%w: session id must not be empty", ErrValidation)
	}
	return SessionID{v: u}, nil
}

func ParticipantIDFrom(u uuid.UUID) (ParticipantID, error) {
	if u == uuid.Nil {
		return ParticipantID{}, fmt.Errorf("%w: participant id must not be empty", ErrValidation)
	}
	return ParticipantID{v: u}, nil
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("%w: malformed session id %q", ErrValidation, s)
	}
	return SessionIDFrom(u)
}

func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ParticipantID{}, fmt.Errorf("%w: malformed participant id %q", ErrValidation, s)
	}
	return ParticipantIDFrom(u)
}

func (id SessionID) UUID() uuid.UUID { return id.v }
func (id SessionID) String() string  { return id.v.String() }
func (id SessionID) IsZero() bool    { return id.v == uuid.Nil }

func (id ParticipantID) UUID() uuid.UUID { return id.v }
func (id ParticipantID) String() string  { return id.v.String() }
func (id ParticipantID) IsZero() bool    { return id.v == uuid.Nil }
