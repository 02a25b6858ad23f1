package host

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/model"
)

// Hub fans directives out to every subscribed host connection
type Hub struct {
	clients map[*Subscriber]bool
	mu      sync.RWMutex
	clock   clock.Clock
	logger  *slog.Logger

	// Channels for managing subscribers
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

var _ Host = (*Hub)(nil)

// NewHub creates a new Hub. Call Run to start delivering.
func NewHub(clk clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Subscriber]bool),
		clock:      clk,
		logger:     logger.With(slog.String("component", "host_hub")),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("host hub started")
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.clients[sub] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("host subscribed",
				slog.String("subscriber_id", sub.id),
				slog.Int("total_subscribers", count))

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[sub]; ok {
				delete(h.clients, sub)
				close(sub.send)
				count := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("host unsubscribed",
					slog.String("subscriber_id", sub.id),
					slog.Duration("connection_duration", h.clock.Now().Sub(sub.connectedAt)),
					slog.Int("total_subscribers", count))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			if len(h.clients) == 0 {
				h.logger.Warn("directive dropped - no host subscribed")
			}
			for sub := range h.clients {
				select {
				case sub.send <- message:
				default:
					h.logger.Warn("directive dropped - subscriber buffer full",
						slog.String("subscriber_id", sub.id))
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			count := len(h.clients)
			for sub := range h.clients {
				close(sub.send)
				delete(h.clients, sub)
			}
			h.mu.Unlock()
			h.logger.Info("host hub stopped", slog.Int("disconnected_subscribers", count))
			return
		}
	}
}

// Subscribe registers a new subscriber. The caller must Unsubscribe it.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:          uuid.NewString(),
		send:        make(chan []byte, sendBufferSize),
		connectedAt: h.clock.Now(),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.send)
	}
	return sub
}

// Unsubscribe removes a subscriber from the hub
func (h *Hub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Disconnect tells the host to remove the actor
func (h *Hub) Disconnect(actorID model.ActorID, reason, text string) {
	h.send(model.Directive{Type: model.DirectiveDisconnect, ActorID: actorID, Reason: reason, Text: text})
}

// Message tells the host to show text to the actor
func (h *Hub) Message(actorID model.ActorID, text string) {
	h.send(model.Directive{Type: model.DirectiveMessage, ActorID: actorID, Text: text})
}

func (h *Hub) send(d model.Directive) {
	d.Timestamp = h.clock.Now()
	data, err := json.Marshal(d)
	if err != nil {
		h.logger.Error("failed to encode directive", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- formatEvent(string(d.Type), string(data)):
	default:
		h.logger.Warn("directive dropped - hub buffer full",
			slog.String("actor_id", string(d.ActorID)),
			slog.String("type", string(d.Type)))
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatEvent formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatEvent(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	data = strings.ReplaceAll(data, "\r", "")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}
