// Package notify stores in-app notifications and pushes them to connected websockets.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/logging"
	"github.com/webnest/webnest-api/models"
)

func logger() *zap.SugaredLogger { return logging.New("notify") }

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Key identifies the websocket audience of one principal
func Key(kind models.PrincipalKind, id primitive.ObjectID) string {
	return string(kind) + ":" + id.Hex()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans notifications out to every open socket of a principal
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[string]map[*client]struct{}
}

// NewHub returns a hub accepting upgrades from allowedOrigins. An empty list accepts
// any origin.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the request and keeps the socket registered under key until the
// peer goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, key string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger().Warnw("websocket upgrade error", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(key, c)
	logger().Debugw("websocket connected", "key", key)

	go h.writePump(c)
	h.readPump(key, c)
}

func (h *Hub) register(key string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[key] == nil {
		h.clients[key] = make(map[*client]struct{})
	}
	h.clients[key][c] = struct{}{}
}

func (h *Hub) unregister(key string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[key]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, key)
		}
	}
}

func (h *Hub) readPump(key string, c *client) {
	defer func() {
		h.unregister(key, c)
		c.conn.Close()
		logger().Debugw("websocket disconnected", "key", key)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish queues event for every socket of key and returns how many received it.
// A socket whose buffer is full is skipped.
func (h *Hub) Publish(key, event string, data interface{}) int {
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		logger().Errorw("failed to encode websocket event", "event", event, "error", err)
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for c := range h.clients[key] {
		select {
		case c.send <- msg:
			delivered++
		default:
			logger().Warnw("websocket client too slow, dropping event", "key", key, "event", event)
		}
	}
	return delivered
}

// Connected returns the number of open sockets for key
func (h *Hub) Connected(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[key])
}
