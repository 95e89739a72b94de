package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"fleetguard/internal/inspection"
)

// Hub fans inspection events out to connected websocket clients.
// Admins receive every event; other workers only receive events of their own sessions.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan inspection.Event
	done       chan struct{}

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan inspection.Event, 256),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "events").Logger(),
	}
}

// Publish never blocks the caller. Events are dropped when the hub is saturated.
func (h *Hub) Publish(e inspection.Event) {
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn().Str("type", string(e.Type)).Str("session", e.Handle).Msg("event dropped, hub saturated")
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.conn.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Str("worker_id", c.workerID).Bool("admin", c.admin).Int("total", total).Msg("client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.log.Info().Str("worker_id", c.workerID).Msg("client disconnected")
	}
}

func (h *Hub) deliver(e inspection.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(e.Type)).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		if !c.wants(e) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("worker_id", c.workerID).Msg("client too slow, disconnecting")
		h.remove(c)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
