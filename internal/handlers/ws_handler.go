package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxReadBytes = 1024
)

// wsClient is a realtime.Client over one websocket connection.
// The connection allows a single concurrent writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
	once sync.Once
	done chan struct{}
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, done: make(chan struct{})}
}

func (c *wsClient) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message) == nil
}

func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// heartbeat pings until the client closes or a ping fails
func (c *wsClient) heartbeat() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

// drain reads and discards client frames so pongs and close frames are
// processed. It returns when the connection fails.
func (c *wsClient) drain() {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled by the router
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebSocket upgrades the connection and subscribes it to the caller's events.
// Browsers pass the token as ?token= since they cannot set headers here.
// GET /api/ws
func (h *Handler) WebSocket(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newWSClient(conn)
	h.hub.Register(userID, client)
	h.logger.DebugContext(c.Request.Context(), "websocket connected",
		slog.String("user_id", userID),
		slog.Int("connections", h.hub.Connected(userID)),
	)
	defer func() {
		h.hub.Unregister(userID, client)
		client.Close()
		h.logger.DebugContext(c.Request.Context(), "websocket closed", slog.String("user_id", userID))
	}()

	go client.heartbeat()
	client.drain()
}
