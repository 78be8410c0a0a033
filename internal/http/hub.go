package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientSendSize = 16
)

// Hub fans transcript events out to websocket clients. A client that falls
// behind is disconnected rather than slowing the others.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan models.TranscriptEvent
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan models.TranscriptEvent
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan models.TranscriptEvent, 100),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
	}
}

// Run dispatches events until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Str("component", "ws").Int("clients", n).Msg("Client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Str("component", "ws").Int("clients", n).Msg("Client disconnected")

		case event := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					delete(h.clients, c)
					close(c.send)
					log.Warn().Str("component", "ws").Msg("Dropping slow websocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for every client. It never blocks; events are
// dropped when the hub is saturated.
func (h *Hub) Broadcast(event models.TranscriptEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Warn().Str("component", "ws").Str("eventType", event.EventType).Msg("Websocket hub saturated, event dropped")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open for the whole API
	},
}

// ServeWS upgrades the request and streams events to the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("component", "ws").Msg("WebSocket upgrade error")
		return
	}
	c := &client{conn: conn, send: make(chan models.TranscriptEvent, clientSendSize)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// readPump discards client messages and detects disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
