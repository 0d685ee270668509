package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/application"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type SessionService interface {
	CreateSession(ctx context.Context, cmd application.CreateSessionCommand) (domain.SessionID, error)
	GetSession(ctx context.Context, id domain.SessionID) (application.SessionDto, error)
	ListActiveSessions(ctx context.Context) ([]application.SessionDto, error)
	JoinSession(ctx context.Context, cmd application.JoinSessionCommand) (application.SessionDto, error)
	LeaveSession(ctx context.Context, cmd application.LeaveSessionCommand) error
	ApplyOperation(ctx context.Context, cmd application.ApplyOperationCommand) (application.ApplyOperationResult, error)
	CloseSession(ctx context.Context, id domain.SessionID) error
	ReopenSession(ctx context.Context, id domain.SessionID) error
}

type createSessionRequest struct {
	InitialContent string `json:"initialContent"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type joinSessionRequest struct {
	ParticipantID string `json:"participantId" validate:"required,uuid"`
	Name          string `json:"name" validate:"required,min=1,max=100"`
}

type leaveSessionRequest struct {
	ParticipantID string `json:"participantId" validate:"required,uuid"`
}

type applyOperationRequest struct {
	Type     string `json:"type" validate:"required"`
	Position int    `json:"position" validate:"min=0"`
	Text     string `json:"text"`
	Length   int    `json:"length" validate:"min=0"`
	Version  int    `json:"version" validate:"min=0"`
	AuthorID string `json:"authorId" validate:"required,uuid"`
}

type applyOperationResponse struct {
	Version int    `json:"version"`
	Content string `json:"content"`
}

// SessionHandler exposes the session use cases over REST.
type SessionHandler struct {
	svc         SessionService
	validate    *validator.Validate
	development bool
}

func NewSessionHandler(svc SessionService, development bool) *SessionHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &SessionHandler{svc: svc, validate: v, development: development}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.decode(r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.svc.CreateSession(r.Context(), application.CreateSessionCommand{InitialContent: req.InitialContent})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, createSessionResponse{SessionID: id.String()})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dto, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, dto)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListActiveSessions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []application.SessionDto{}
	}
	WriteJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req joinSessionRequest
	if err := h.decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	participantID, err := domain.ParseParticipantID(req.ParticipantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dto, err := h.svc.JoinSession(r.Context(), application.JoinSessionCommand{
		SessionID:     id,
		ParticipantID: participantID,
		Name:          req.Name,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, dto)
}

func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req leaveSessionRequest
	if err := h.decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	participantID, err := domain.ParseParticipantID(req.ParticipantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.LeaveSession(r.Context(), application.LeaveSessionCommand{
		SessionID:     id,
		ParticipantID: participantID,
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req applyOperationRequest
	if err := h.decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	authorID, err := domain.ParseParticipantID(req.AuthorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.svc.ApplyOperation(r.Context(), application.ApplyOperationCommand{
		SessionID: id,
		Type:      req.Type,
		Position:  req.Position,
		Text:      req.Text,
		Length:    req.Length,
		Version:   req.Version,
		AuthorID:  authorID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, applyOperationResponse{Version: res.Version, Content: res.Content.Text()})
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.CloseSession)
}

func (h *SessionHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.ReopenSession)
}

func (h *SessionHandler) lifecycle(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.SessionID) error) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, err, h.development)
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted only when allowEmpty is set.
func (h *SessionHandler) decode(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: request body is required", domain.ErrValidation)
	case err != nil:
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}

	if err := h.validate.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			msgs := make([]string, 0, len(fields))
			for _, f := range fields {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", f.Field(), f.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

func sessionID(r *http.Request) (domain.SessionID, error) {
	return domain.ParseSessionID(chi.URLParam(r, "sessionId"))
}
