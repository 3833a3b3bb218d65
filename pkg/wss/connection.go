package wss

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one accepted websocket and the identity extracted from
// the upgrade request. UserID is set by whatever Authenticator the server
// was configured with; the room runtime never re-derives it.
type Connection struct {
	hub          *hub
	conn         *websocket.Conn
	send         chan []byte
	logger       *slog.Logger
	ConnectionID string
	UserID       string
}

func newConnection(h *hub, conn *websocket.Conn, r *http.Request, userID string, logger *slog.Logger) *Connection {
	return &Connection{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, 64),
		logger:       logger,
		ConnectionID: uuid.NewString(),
		UserID:       userID,
	}
}

// Send enqueues a frame for delivery. It never blocks: a slow reader gets
// dropped rather than stalling the whole hub.
func (c *Connection) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) readPump(cfg *Config) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "connectionId", c.ConnectionID, "error", err)
			}
			return
		}
		c.hub.dispatchMessage(c, data)
	}
}

func (c *Connection) writePump(cfg *Config) {
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
