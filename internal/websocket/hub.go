package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"poetica-backend/internal/events"
	"poetica-backend/internal/models"
)

const (
	// writeWait bounds a single write to a slow client.
	writeWait = 10 * time.Second
	// sendBuffer is how many updates a client may lag before new ones are dropped.
	sendBuffer = 16
)

// SessionParser is satisfied by *middleware.JWTAuth.
type SessionParser interface {
	ParseSession(token string) (string, error)
}

// client owns one socket. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub relays session updates to the session's websocket connections. With a
// Redis client it holds one pub/sub subscription per session while the
// session has at least one connection; without one it only delivers what is
// handed to Publish in this process.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	sessions    SessionParser
	logger      *zap.Logger
	cancelFuncs map[string]context.CancelFunc
	upgrader    websocket.Upgrader
}

func NewHub(redisClient *redis.Client, sessions SessionParser, allowedOrigin string, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		sessions:    sessions,
		logger:      logger,
		cancelFuncs: make(map[string]context.CancelFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on websocket requests, so the token rides
	// in the query string.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.sessions.ParseSession(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.registerConnection(sessionID, c)
	go h.writePump(sessionID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// writePump drains c.send until unregisterConnection closes it. A write that
// misses its deadline closes the socket, which ends the read loop.
func (h *Hub) writePump(sessionID string, c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", zap.String("session_id", sessionID), zap.Error(err))
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) registerConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	if len(h.connections[sessionID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	h.logger.Debug("websocket connected",
		zap.String("session_id", sessionID),
		zap.Int("connections", len(h.connections[sessionID])),
	)
}

func (h *Hub) unregisterConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, other := range conns {
		if other == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			close(c.send)
			break
		}
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	h.logger.Debug("websocket disconnected", zap.String("session_id", sessionID))
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID string) {
	pubsub := h.redisClient.Subscribe(ctx, events.Channel(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

// Publish delivers msg to sessionID's sockets in this process. The hub is
// the events.Publisher when no Redis broker is configured.
func (h *Hub) Publish(_ context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode session update", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.broadcast(sessionID, data)
}

// broadcast queues data on every client of sessionID without waiting for the
// sockets. A client whose buffer is full misses the update.
func (h *Hub) broadcast(sessionID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.connections[sessionID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("websocket client lagging, update dropped", zap.String("session_id", sessionID))
		}
	}
}

// Connections reports how many sockets sessionID has open.
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}
