package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	SendQueueSize = 128
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameSize  = 1 << 20

	CloseConnectionReplaced = 4000
)

// Connection is one client socket. Writes go through SendQueue and a single
// writer goroutine; Conn may be nil in tests.
type Connection struct {
	ID            string
	ParticipantID domain.ParticipantID

	Conn      *websocket.Conn
	SendQueue chan []byte
	done      chan struct{}
	closed    atomic.Int32
}

func logger() *zap.Logger {
	return observability.GetLogger(context.Background())
}

func NewConnection(id string, participantID domain.ParticipantID, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:            id,
		ParticipantID: participantID,
		Conn:          conn,
		SendQueue:     make(chan []byte, SendQueueSize),
		done:          make(chan struct{}),
	}
}

func (c *Connection) Start() {
	go c.writeLoop()
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load() == 1
}

// TrySend never blocks. A full queue means the client cannot keep up, and the
// connection is closed rather than stalling the sender.
func (c *Connection) TrySend(msg []byte) bool {
	if c.closed.Load() == 1 {
		return false
	}
	select {
	case c.SendQueue <- msg:
		return true
	default:
		logger().Warn("connection: backpressure overflow, dropping connection",
			zap.String("connection_id", c.ID),
			zap.String("participant_id", c.ParticipantID.String()),
		)
		c.CloseWithReason(websocket.CloseInternalServerErr, "backpressure overflow")
		return false
	}
}

func (c *Connection) Close() {
	c.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

func (c *Connection) CloseWithReason(code int, reason string) {
	if !c.closed.CompareAndSwap(0, 1) {
		return
	}

	logger().Info("connection: closing",
		zap.String("connection_id", c.ID),
		zap.String("participant_id", c.ParticipantID.String()),
		zap.Int("code", code),
		zap.String("reason", reason),
	)
	close(c.done)

	if c.Conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.Conn.Close()
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.SendQueue:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger().Debug("connection: write error", zap.String("connection_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger().Debug("connection: ping error", zap.String("connection_id", c.ID), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}
