package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-journal/internal/observability/logging"
)

// Hub fans messages out to every connected WebSocket client.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan any
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewHub creates a hub that buffers up to size pending broadcasts.
func NewHub(size int) *Hub {
	if size <= 0 {
		size = 100
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan any, size),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		log:        logging.WithComponent("hub"),
	}
}

// Run serves registrations and broadcasts until ctx ends, then closes every
// client connection.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", n).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", n).Msg("Client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := writeWS(conn, msg); err != nil {
					h.log.Debug().Err(err).Msg("Write error, dropping client")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every client. It reports false when the queue is
// full or the hub has stopped.
func (h *Hub) Broadcast(msg any) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.log.Warn().Msg("Broadcast queue full, dropping message")
		return false
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Keep connection alive, handle disconnects
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
