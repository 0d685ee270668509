package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	registry    *Registry
	messages    *MessageHandler
	serviceName string
}

func NewHandler(registry *Registry, messages *MessageHandler, serviceName string) *Handler {
	return &Handler{registry: registry, messages: messages, serviceName: serviceName}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	participantID, err := domain.ParseParticipantID(r.URL.Query().Get("participantId"))
	if err != nil {
		http.Error(w, "participantId query parameter is required", http.StatusBadRequest)
		return
	}

	log := observability.GetLogger(r.Context())
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade error", zap.Error(err))
		return
	}

	conn := NewConnection(uuid.NewString(), participantID, ws)
	conn.Start()
	log.Info("connected", zap.String("participant_id", participantID.String()), zap.String("connection_id", conn.ID))
	observability.WebSocketConnectionsTotal.WithLabelValues(h.serviceName).Inc()

	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.readLoop(context.WithoutCancel(r.Context()), conn)
}

// readLoop dispatches frames one at a time. On disconnect only the
// registration goes away; session membership ends with an explicit leave.
func (h *Handler) readLoop(ctx context.Context, c *Connection) {
	log := observability.GetLogger(ctx)
	defer func() {
		h.registry.Remove(c)
		c.Close()
		log.Info("disconnected", zap.String("participant_id", c.ParticipantID.String()), zap.String("connection_id", c.ID))
		observability.WebSocketConnectionsTotal.WithLabelValues(h.serviceName).Dec()
	}()

	for {
		msgType, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, CloseConnectionReplaced) {
				log.Warn("read loop error", zap.String("participant_id", c.ParticipantID.String()), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.messages.Handle(ctx, c, msg)
	}
}
