package events

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second // must be < pongWait
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The event stream is read-only telemetry; origin policy is enforced
	// by the fronting proxy in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler upgrades HTTP connections to WebSocket and streams bus
// events to them. All writes go through a per-client send channel and a
// single writer goroutine, so ping and event writes never race.
type StreamHandler struct {
	bus    *Bus
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewStreamHandler creates a handler streaming all events from bus.
func NewStreamHandler(bus *Bus, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		bus:     bus,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP implements the /ws/events endpoint.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	sub := h.bus.Subscribe()

	go h.writePump(client)
	go h.forward(client, sub)
	go h.readPump(client, sub)
}

// forward moves bus events onto the client's send channel.
func (h *StreamHandler) forward(c *wsClient, sub chan *Event) {
	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			payload, err := event.JSON()
			if err != nil {
				continue
			}
			select {
			case c.send <- payload:
			default: // slow client, drop
			}
		case <-c.done:
			return
		}
	}
}

func (h *StreamHandler) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer h.drop(c)

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// process pongs and detect disconnects.
func (h *StreamHandler) readPump(c *wsClient, sub chan *Event) {
	defer func() {
		h.bus.Unsubscribe(sub)
		h.drop(c)
	}()

	c.conn.SetReadLimit(1024)
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

func (h *StreamHandler) drop(c *wsClient) {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	})
}

// ClientCount returns the number of connected stream clients.
func (h *StreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
