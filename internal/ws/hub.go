package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tudbom/counter-api/internal/events"
)

// Audiences a board client can subscribe as.
const (
	AudienceStaff  = "staff"
	AudiencePublic = "public"
)

// Message is what a board client receives.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// audienceMessage routes a message to one audience.
type audienceMessage struct {
	Audience string
	Message  Message
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by audience
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *audienceMessage

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *audienceMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for audience, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, audience)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.audience] == nil {
				h.rooms[client.audience] = make(map[*Client]bool)
			}
			h.rooms[client.audience][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.audience]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.audience)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[msg.Audience]

			// Marshal once per audience
			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Slow client: drop it rather than stall the board
					close(client.send)
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, msg.Audience)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every client of one audience.
func (h *Hub) Broadcast(ctx context.Context, audience string, msg Message) error {
	select {
	case h.broadcast <- &audienceMessage{Audience: audience, Message: msg}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends the staff projection to staff clients and the public
// projection to kiosks.
func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	if err := h.Broadcast(ctx, AudienceStaff, Message{Type: e.Type, Payload: e.Staff}); err != nil {
		return err
	}
	return h.Broadcast(ctx, AudiencePublic, Message{Type: e.Type, Payload: e.Public})
}

func (h *Hub) add(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Count returns the number of connected clients per audience.
func (h *Hub) Count() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for audience, clients := range h.rooms {
		out[audience] = len(clients)
	}
	return out
}
