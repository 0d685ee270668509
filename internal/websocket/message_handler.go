package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/application"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"go.uber.org/zap"
)

// SessionService is the part of the application the gateway drives.
type SessionService interface {
	JoinSession(ctx context.Context, cmd application.JoinSessionCommand) (application.SessionDto, error)
	LeaveSession(ctx context.Context, cmd application.LeaveSessionCommand) error
	ApplyOperation(ctx context.Context, cmd application.ApplyOperationCommand) (application.ApplyOperationResult, error)
	GetSession(ctx context.Context, id domain.SessionID) (application.SessionDto, error)
}

// MessageHandler decodes one client frame and runs the matching use case.
// Successful joins, leaves and operations are announced by the bus
// subscribers; only failures and pongs are answered here.
type MessageHandler struct {
	svc      SessionService
	registry *Registry
}

func NewMessageHandler(svc SessionService, registry *Registry) *MessageHandler {
	return &MessageHandler{svc: svc, registry: registry}
}

func (h *MessageHandler) Handle(ctx context.Context, conn *Connection, raw []byte) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.reject(ctx, conn, fmt.Errorf("%w: malformed frame", domain.ErrValidation))
		return
	}

	switch f.Type {
	case FrameJoin:
		h.join(ctx, conn, f)
	case FrameOperation:
		h.operation(ctx, conn, f)
	case FrameLeave:
		h.leave(ctx, conn, f)
	case FramePing:
		conn.TrySend(mustJSON(PongFrame{Type: FramePong}))
	default:
		h.reject(ctx, conn, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, f.Type))
	}
}

func (h *MessageHandler) join(ctx context.Context, conn *Connection, f ClientFrame) {
	sessionID, err := domain.ParseSessionID(f.SessionID)
	if err != nil {
		h.reject(ctx, conn, err)
		return
	}
	if err := checkParticipant(conn, f.ParticipantID); err != nil {
		h.reject(ctx, conn, err)
		return
	}

	// Register first so the joined frame published by the subscriber finds
	// this connection.
	claim := h.registry.Claim(conn, sessionID)

	_, err = h.svc.JoinSession(ctx, application.JoinSessionCommand{
		SessionID:     sessionID,
		ParticipantID: conn.ParticipantID,
		Name:          f.Name,
	})
	if errors.Is(err, domain.ErrParticipantAlreadyJoined) {
		// A reconnect: the participant is still a member, so this connection
		// takes over and gets the snapshot here since no join is published.
		var s application.SessionDto
		if s, err = h.svc.GetSession(ctx, sessionID); err == nil {
			claim.Commit()
			conn.TrySend(mustJSON(NewJoinedFrame(conn.ParticipantID.String(), s)))
			return
		}
	}
	if err != nil {
		claim.Rollback()
		h.reject(ctx, conn, err)
		return
	}
	claim.Commit()
}

func (h *MessageHandler) operation(ctx context.Context, conn *Connection, f ClientFrame) {
	sessionID, err := domain.ParseSessionID(f.SessionID)
	if err != nil {
		h.reject(ctx, conn, err)
		return
	}
	if f.Operation == nil {
		h.reject(ctx, conn, fmt.Errorf("%w: operation is required", domain.ErrValidation))
		return
	}
	if err := checkParticipant(conn, f.Operation.AuthorID); err != nil {
		h.reject(ctx, conn, err)
		return
	}

	_, err = h.svc.ApplyOperation(ctx, application.ApplyOperationCommand{
		SessionID: sessionID,
		Type:      f.Operation.Type,
		Position:  f.Operation.Position,
		Text:      f.Operation.Text,
		Length:    f.Operation.Length,
		Version:   f.Operation.Version,
		AuthorID:  conn.ParticipantID,
	})
	if err != nil {
		h.reject(ctx, conn, err)
	}
}

func (h *MessageHandler) leave(ctx context.Context, conn *Connection, f ClientFrame) {
	sessionID, err := domain.ParseSessionID(f.SessionID)
	if err != nil {
		h.reject(ctx, conn, err)
		return
	}
	if err := checkParticipant(conn, f.ParticipantID); err != nil {
		h.reject(ctx, conn, err)
		return
	}

	err = h.svc.LeaveSession(ctx, application.LeaveSessionCommand{
		SessionID:     sessionID,
		ParticipantID: conn.ParticipantID,
	})
	if err != nil {
		h.reject(ctx, conn, err)
	}
}

// checkParticipant accepts an omitted id; a present one must name the
// participant the connection was opened for.
func checkParticipant(conn *Connection, raw string) error {
	if raw == "" {
		return nil
	}
	id, err := domain.ParseParticipantID(raw)
	if err != nil {
		return err
	}
	if id != conn.ParticipantID {
		return fmt.Errorf("%w: participant id does not match the connection", domain.ErrValidation)
	}
	return nil
}

func (h *MessageHandler) reject(ctx context.Context, conn *Connection, err error) {
	observability.GetLogger(ctx).Info("frame rejected",
		zap.String("connection_id", conn.ID),
		zap.String("participant_id", conn.ParticipantID.String()),
		zap.String("error_code", string(domain.CodeOf(err))),
		zap.Error(err),
	)
	conn.TrySend(mustJSON(NewErrorFrame(err)))
}

// mustJSON encodes frame types that cannot fail to marshal.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
