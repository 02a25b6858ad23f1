package host

import (
	"net/http"
	"time"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing directives
	sendBufferSize = 256
)

// Subscriber is one host connection receiving directives
type Subscriber struct {
	id          string
	send        chan []byte
	connectedAt time.Time
}

// ID returns the subscriber's connection id
func (s *Subscriber) ID() string {
	return s.id
}

// Messages returns the channel of formatted SSE messages. It is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// ServeSSE streams directives to a host over server-sent events
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	_, _ = w.Write([]byte("event: connected\ndata: {\"subscriber_id\":\"" + sub.id + "\"}\n\n"))
	flusher.Flush()

	ticker := h.clock.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-sub.send:
			if !ok {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C():
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
