package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mindmap-dev/mindmap/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client serializes writes; gorilla allows one concurrent writer per conn.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteJSON(v)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub tracks open websocket sessions per user.
type Hub struct {
	clients  map[uint]map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewHub accepts upgrades from the given origins. Requests without an Origin
// header come from non-browser clients and are let through.
func NewHub(allowedOrigins []string, log *logrus.Logger) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Hub{
		clients: make(map[uint]map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		log: log,
	}
}

// Count returns the number of open sessions for userID.
func (h *Hub) Count(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID])
}

func (h *Hub) register(userID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]bool)
	}
	h.clients[userID][c] = true
}

func (h *Hub) unregister(userID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[userID]; exists {
		delete(clients, c)

		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
}

// BroadcastRefresh tells every open session of userID to reload its
// constellations. Sessions that cannot be written to are dropped.
func (h *Hub) BroadcastRefresh(userID uint) {
	h.mu.RLock()
	clients, exists := h.clients[userID]
	if !exists || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	clientsCopy := make([]*client, 0, len(clients))
	for c := range clients {
		clientsCopy = append(clientsCopy, c)
	}
	h.mu.RUnlock()

	for _, c := range clientsCopy {
		err := c.writeJSON(gin.H{
			"type":    "refresh",
			"message": "Constellations updated",
			"user_id": userID,
		})

		if err != nil {
			h.log.WithError(err).WithField("user_id", userID).Warn("Failed to broadcast refresh to client")
			h.unregister(userID, c)
			c.conn.Close()
		}
	}
}

func (h *Handler) WebSocket(ctx *gin.Context) {
	userID, err := utils.CurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	h.Hub.serve(ctx, userID)
}

func (h *Hub) serve(ctx *gin.Context, userID uint) {
	log := h.log.WithField("user_id", userID)

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.WithError(err).Warn("Failed to set initial read deadline")
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.register(userID, c)

	defer func() {
		h.unregister(userID, c)
		conn.Close()
		log.Debug("WebSocket connection closed")
	}()

	err = c.writeJSON(gin.H{
		"type":    "connected",
		"message": "WebSocket connection established",
		"user_id": userID,
	})

	if err != nil {
		log.WithError(err).Warn("Failed to send welcome message")
		return
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					log.WithError(err).Debug("Ping failed")
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WebSocket error")
			}
			break
		}
	}
}
