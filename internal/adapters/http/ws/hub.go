// Package ws fans render operations and notices out to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	defaultClientBuffer    = 256
	defaultBroadcastBuffer = 1024
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	TS   time.Time `json:"ts"`
}

// Notice is the payload of a "notice" message.
type Notice struct {
	Message string `json:"message"`
}

// Hub manages WebSocket clients and broadcasting.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	doneOnce   sync.Once

	upgrader     websocket.Upgrader
	clientBuffer int
	now          func() time.Time
	logger       logger.Logger
}

// Client is one connected WebSocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan []byte, defaultBroadcastBuffer),
		done:         make(chan struct{}),
		clientBuffer: defaultClientBuffer,
		now:          time.Now,
		logger:       logger.Get().Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateWSClients(n)
			h.logger.Info(ctx, "client connected", logger.Int("clients", n))
		case c := <-h.unregister:
			h.drop(c)
			h.logger.Info(ctx, "client disconnected", logger.Int("clients", h.Clients()))
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			metrics.RecordWSMessage()
		default:
			// slow client
			close(c.send)
			delete(h.clients, c)
			metrics.RecordWSDropped()
		}
	}
	metrics.UpdateWSClients(len(h.clients))
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.UpdateWSClients(len(h.clients))
}

func (h *Hub) stop() {
	h.doneOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		metrics.UpdateWSClients(0)
	})
}

// Broadcast queues a message of the given type for every client.
// It never blocks; messages are dropped when the hub is saturated.
func (h *Hub) Broadcast(kind string, data any) {
	raw, err := json.Marshal(Message{Type: kind, Data: data, TS: h.now()})
	if err != nil {
		h.logger.Error(context.Background(), "failed to marshal broadcast", logger.String("type", kind), logger.Error(err))
		return
	}
	select {
	case h.broadcast <- raw:
	default:
		metrics.RecordWSDropped()
	}
}

// Notify broadcasts a user-facing notice.
func (h *Hub) Notify(_ context.Context, msg string) {
	h.Broadcast("notice", Notice{Message: msg})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, h.clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(context.Background(), "websocket read error", logger.Error(err))
			}
			return
		}
	}
}

// writePump sends queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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
