package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxParticipantNameLength = 100

// Participant is a value record owned by an EditSession. The session replaces
// the whole record on every change.
type Participant struct {
	ID           ParticipantID
	Name         string
	JoinedAt     time.Time
	LastActiveAt time.Time
	IsActive     bool
}

func newParticipant(id ParticipantID, name string, now time.Time) (Participant, error) {
	if id.IsZero() {
		return Participant{}, fmt.Errorf("%w: participant id must not be empty", ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return Participant{}, fmt.Errorf("%w: participant name must not be empty", ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxParticipantNameLength {
		return Participant{}, fmt.Errorf("%w: participant name exceeds %d characters", ErrValidation, MaxParticipantNameLength)
	}
	return Participant{
		ID:           id,
		Name:         name,
		JoinedAt:     now,
		LastActiveAt: now,
		IsActive:     true,
	}, nil
}

func (p Participant) touched(now time.Time) Participant {
	p.LastActiveAt = now
	p.IsActive = true
	return p
}

func (p Participant) deactivated() Participant {
	p.IsActive = false
	return p
}
