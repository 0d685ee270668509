package websocket

import (
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/application"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/samber/lo"
)

const (
	FrameJoin      = "join"
	FrameOperation = "operation"
	FrameLeave     = "leave"
	FramePing      = "ping"

	FrameJoined            = "joined"
	FrameParticipantJoined = "participant-joined"
	FrameParticipantLeft   = "participant-left"
	FrameOperationApplied  = "operation-applied"
	FrameError             = "error"
	FramePong              = "pong"
)

// ClientFrame is the union of every frame a client may send.
type ClientFrame struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"sessionId,omitempty"`
	ParticipantID string          `json:"participantId,omitempty"`
	Name          string          `json:"name,omitempty"`
	Operation     *OperationFrame `json:"operation,omitempty"`
}

type OperationFrame struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
	Text     string `json:"text,omitempty"`
	Length   int    `json:"length,omitempty"`
	Version  int    `json:"version"`
	AuthorID string `json:"authorId"`
}

type ParticipantSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type JoinedFrame struct {
	Type          string               `json:"type"`
	SessionID     string               `json:"sessionId"`
	ParticipantID string               `json:"participantId"`
	Content       string               `json:"content"`
	Version       int                  `json:"version"`
	Participants  []ParticipantSummary `json:"participants"`
}

type ParticipantJoinedFrame struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type ParticipantLeftFrame struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

type OperationAppliedFrame struct {
	Type      string                   `json:"type"`
	SessionID string                   `json:"sessionId"`
	Operation application.OperationDto `json:"operation"`
}

type ErrorFrame struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type PongFrame struct {
	Type string `json:"type"`
}

func NewJoinedFrame(participantID string, s application.SessionDto) JoinedFrame {
	return JoinedFrame{
		Type:          FrameJoined,
		SessionID:     s.ID,
		ParticipantID: participantID,
		Content:       s.Content,
		Version:       s.Version,
		Participants: lo.Map(s.Participants, func(p application.ParticipantDto, _ int) ParticipantSummary {
			return ParticipantSummary{ID: p.ID, Name: p.Name}
		}),
	}
}

func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{
		Type:      FrameError,
		Error:     domain.PublicMessage(err),
		ErrorCode: string(domain.CodeOf(err)),
	}
}
