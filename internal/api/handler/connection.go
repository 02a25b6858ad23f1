package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcoot/accessgate/internal/api/request"
	"github.com/mcoot/accessgate/internal/api/response"
	"github.com/mcoot/accessgate/internal/services/session"
)

// ConnectionHandler handles pre-login connection checks
type ConnectionHandler struct {
	controller session.ControllerInterface
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(controller session.ControllerInterface) *ConnectionHandler {
	return &ConnectionHandler{
		controller: controller,
	}
}

// Check handles POST /api/v1/connections/check
func (h *ConnectionHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req request.CheckConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	decision := h.controller.Prelogin(r.Context(), name)
	response.JSON(w, http.StatusOK, response.ConnectionDecisionFromAccess(decision))
}
