package application

import (
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/samber/lo"
)

type ParticipantDto struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	IsActive     bool      `json:"isActive"`
}

type SessionDto struct {
	ID             string           `json:"id"`
	Content        string           `json:"content"`
	Version        int              `json:"version"`
	IsClosed       bool             `json:"isClosed"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastModifiedAt time.Time        `json:"lastModifiedAt"`
	Participants   []ParticipantDto `json:"participants"`
}

// OperationDto carries Text only for inserts and Length only for deletes.
type OperationDto struct {
	Type      string    `json:"type"`
	Position  int       `json:"position"`
	Text      *string   `json:"text,omitempty"`
	Length    *int      `json:"length,omitempty"`
	Version   int       `json:"version"`
	AuthorID  string    `json:"authorId"`
	Timestamp time.Time `json:"timestamp"`
}

func ToParticipantDto(p domain.Participant) ParticipantDto {
	return ParticipantDto{
		ID:           p.ID.String(),
		Name:         p.Name,
		JoinedAt:     p.JoinedAt,
		LastActiveAt: p.LastActiveAt,
		IsActive:     p.IsActive,
	}
}

func ToSessionDto(s *domain.EditSession) SessionDto {
	return SessionDto{
		ID:             s.ID().String(),
		Content:        s.Content().Text(),
		Version:        s.Version(),
		IsClosed:       s.IsClosed(),
		CreatedAt:      s.CreatedAt(),
		LastModifiedAt: s.LastModifiedAt(),
		Participants: lo.Map(s.Participants(), func(p domain.Participant, _ int) ParticipantDto {
			return ToParticipantDto(p)
		}),
	}
}

func ToOperationDto(op domain.TextOperation) OperationDto {
	dto := OperationDto{
		Type:      string(op.Type()),
		Position:  op.Position(),
		Version:   op.Version(),
		AuthorID:  op.AuthorID().String(),
		Timestamp: op.Timestamp(),
	}
	if op.IsInsert() {
		dto.Text = lo.ToPtr(op.Text())
	} else {
		dto.Length = lo.ToPtr(op.Length())
	}
	return dto
}
