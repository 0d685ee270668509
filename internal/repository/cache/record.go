package cache

import (
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/google/uuid"
)

type record struct {
	ID             uuid.UUID           `json:"id"`
	Content        string              `json:"content"`
	Version        int                 `json:"version"`
	IsClosed       bool                `json:"isClosed"`
	CreatedAt      time.Time           `json:"createdAt"`
	LastModifiedAt time.Time           `json:"lastModifiedAt"`
	Participants   []participantRecord `json:"participants"`
	History        []operationRecord   `json:"history"`
}

type participantRecord struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	IsActive     bool      `json:"isActive"`
}

type operationRecord struct {
	Type      string    `json:"type"`
	Position  int       `json:"position"`
	Text      string    `json:"text,omitempty"`
	Length    int       `json:"length"`
	Version   int       `json:"version"`
	AuthorID  uuid.UUID `json:"authorId"`
	Timestamp time.Time `json:"timestamp"`
}

func fromSession(s *domain.EditSession) record {
	snap := s.Snapshot()
	rec := record{
		ID:             snap.ID.UUID(),
		Content:        snap.Content.Text(),
		Version:        snap.Version,
		IsClosed:       snap.IsClosed,
		CreatedAt:      snap.CreatedAt,
		LastModifiedAt: snap.LastModifiedAt,
	}
	for _, p := range snap.Participants {
		rec.Participants = append(rec.Participants, participantRecord{
			ID:           p.ID.UUID(),
			Name:         p.Name,
			JoinedAt:     p.JoinedAt,
			LastActiveAt: p.LastActiveAt,
			IsActive:     p.IsActive,
		})
	}
	for _, op := range snap.History {
		rec.History = append(rec.History, operationRecord{
			Type:      string(op.Type()),
			Position:  op.Position(),
			Text:      op.Text(),
			Length:    op.Length(),
			Version:   op.Version(),
			AuthorID:  op.AuthorID().UUID(),
			Timestamp: op.Timestamp(),
		})
	}
	return rec
}

func (r record) toSession() (*domain.EditSession, error) {
	id, err := domain.SessionIDFrom(r.ID)
	if err != nil {
		return nil, err
	}
	content, err := domain.ContentFrom(r.Content)
	if err != nil {
		return nil, err
	}
	snap := domain.Snapshot{
		ID:             id,
		Content:        content,
		CreatedAt:      r.CreatedAt,
		LastModifiedAt: r.LastModifiedAt,
		IsClosed:       r.IsClosed,
		Version:        r.Version,
	}
	for _, p := range r.Participants {
		pid, err := domain.ParticipantIDFrom(p.ID)
		if err != nil {
			return nil, err
		}
		snap.Participants = append(snap.Participants, domain.Participant{
			ID:           pid,
			Name:         p.Name,
			JoinedAt:     p.JoinedAt,
			LastActiveAt: p.LastActiveAt,
			IsActive:     p.IsActive,
		})
	}
	for _, o := range r.History {
		author, err := domain.ParticipantIDFrom(o.AuthorID)
		if err != nil {
			return nil, err
		}
		op, err := domain.RestoreOperation(domain.OperationType(o.Type), o.Position, o.Text, o.Length, o.Version, author, o.Timestamp)
		if err != nil {
			return nil, err
		}
		snap.History = append(snap.History, op)
	}
	return domain.Restore(snap)
}
