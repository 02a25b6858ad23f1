package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mcoot/accessgate/internal/api/middleware"
	"github.com/mcoot/accessgate/internal/api/request"
	"github.com/mcoot/accessgate/internal/api/response"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/services/session"
)

// AdminHandler handles moderation and operator endpoints
type AdminHandler struct {
	controller session.ControllerInterface
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(controller session.ControllerInterface) *AdminHandler {
	return &AdminHandler{
		controller: controller,
	}
}

// Ban handles POST /api/v1/admin/ban
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	var req request.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}
	if req.Days < 0 {
		WriteError(w, NewInvalidRequestError("days must not be negative"))
		return
	}
	by, err := parseActingActor(req.By)
	if err != nil {
		WriteError(w, err)
		return
	}

	ident, err := h.controller.Ban(r.Context(), by, req.Name, req.Reason, req.Days)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, ident)
}

// Unban handles POST /api/v1/admin/unban
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	var req request.UnbanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}
	by, err := parseActingActor(req.By)
	if err != nil {
		WriteError(w, err)
		return
	}

	ident, err := h.controller.Unban(r.Context(), by, req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, ident)
}

// Trust handles POST /api/v1/admin/trust
func (h *AdminHandler) Trust(w http.ResponseWriter, r *http.Request) {
	var req request.TrustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}
	if req.Level == nil {
		WriteError(w, NewInvalidRequestError("level is required"))
		return
	}
	by, err := parseActingActor(req.By)
	if err != nil {
		WriteError(w, err)
		return
	}

	ident, err := h.controller.SetTrustLevel(r.Context(), by, req.Name, *req.Level)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, ident)
}

// Sync handles POST /api/v1/admin/sync/{id}
func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	// Body is optional
	var req request.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	by, err := parseActingActor(req.By)
	if err != nil {
		WriteError(w, err)
		return
	}

	ident, err := h.controller.Sync(r.Context(), by, actorID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, ident)
}

// ServerData handles POST /api/v1/server
func (h *AdminHandler) ServerData(w http.ResponseWriter, r *http.Request) {
	var req request.ServerDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	submitted := h.controller.ReportServer(r.Context(), req)
	response.JSON(w, http.StatusOK, response.Submitted{Submitted: submitted})
}

// parseActingActor validates the optional acting actor. Empty means the operator.
func parseActingActor(by string) (model.ActorID, error) {
	if by == "" {
		return "", nil
	}
	id, err := uuid.Parse(by)
	if err != nil {
		return "", model.ErrInvalidActorID
	}
	return model.ActorID(id.String()), nil
}
