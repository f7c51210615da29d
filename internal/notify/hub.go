// Package notify broadcasts per-record change events to connected
// clients over WebSocket so other terminals see ledger updates as
// they happen.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"feedmill/internal/store"
)

// ChangeEvent is the JSON payload pushed to clients.
type ChangeEvent struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Action     string `json:"action"`
}

type client struct {
	conn *ws.Conn
	mu   sync.Mutex
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

var upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func RegisterRoutes(router *gin.Engine, hub *Hub) {
	router.GET("/ws", func(c *gin.Context) {
		hub.handleWebSocket(c.Writer, c.Request)
	})
}

// Attach subscribes the hub to every store change event.
func (h *Hub) Attach(notifier *store.Notifier) {
	notifier.SubscribeAll(func(evt store.Event) {
		h.Broadcast(ChangeEvent{
			Collection: evt.Collection,
			ID:         evt.RecordID,
			Action:     string(evt.Type),
		})
	})
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *Hub) Broadcast(evt ChangeEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("failed to marshal change event", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := c.conn.WriteMessage(ws.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.unregister(c)
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.register(c)

	go func() {
		defer h.unregister(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
