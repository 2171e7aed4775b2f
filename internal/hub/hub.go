// Package hub fans relay events out to live dashboard subscribers over
// websockets. Delivery is best-effort: a subscriber that cannot keep up is
// disconnected rather than allowed to stall the broadcast path.
package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/evswap/bss-relay/internal/model"
	"github.com/evswap/bss-relay/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	logger     *log.Logger
	sendBuffer int
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

func NewHub(sendBuffer int, logger *log.Logger) *Hub {
	return &Hub{
		logger:     logger,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard origins are not authenticated at this layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: map[string]*client{},
	}
}

// ServeHTTP upgrades a dashboard connection and registers it for broadcasts.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade error: %v", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	observability.SetSubscribers(n)
	h.logger.Printf("ws subscriber connected: id=%s remote=%s total=%d", c.id, r.RemoteAddr, n)

	go h.writePump(c)
	go h.readPump(c)
}

// Subscribers reports the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast delivers an event to every connected subscriber. Subscribers
// with a full send buffer are dropped.
func (h *Hub) Broadcast(event model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("ws marshal error: event=%s err=%v", event.Name, err)
		return
	}

	var slow []*client
	h.mu.Lock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Printf("ws subscriber too slow — dropping: id=%s", c.id)
		h.remove(c)
	}
}

// Close disconnects every subscriber and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		observability.SetSubscribers(n)
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
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Printf("ws write error: id=%s err=%v", c.id, err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards inbound frames; subscribers are listen-only. It exists
// to process control frames and to detect the peer going away.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
