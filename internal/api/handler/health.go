package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/accessgate/internal/api/response"
)

const pingTimeout = 3 * time.Second

// Pinger checks that the identity service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SubscriberCounter reports how many hosts are listening for directives
type SubscriberCounter interface {
	SubscriberCount() int
}

// HealthHandler reports sidecar health
type HealthHandler struct {
	remote Pinger
	hub    SubscriberCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(remote Pinger, hub SubscriberCounter) *HealthHandler {
	return &HealthHandler{
		remote: remote,
		hub:    hub,
	}
}

// Health handles GET /api/v1/health. The sidecar is healthy even when the
// identity service is not; the host can decide what to do about it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	remote := "ok"
	if err := h.remote.Ping(ctx); err != nil {
		remote = "unreachable"
	}

	response.JSON(w, http.StatusOK, response.Health{
		Status:      "ok",
		Remote:      remote,
		Subscribers: h.hub.SubscriberCount(),
	})
}
