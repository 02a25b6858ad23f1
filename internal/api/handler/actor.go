package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcoot/accessgate/internal/api/middleware"
	"github.com/mcoot/accessgate/internal/api/request"
	"github.com/mcoot/accessgate/internal/api/response"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/services/session"
)

// ActorHandler handles endpoints about a single connected actor
type ActorHandler struct {
	controller session.ControllerInterface
}

// NewActorHandler creates a new actor handler
func NewActorHandler(controller session.ControllerInterface) *ActorHandler {
	return &ActorHandler{
		controller: controller,
	}
}

// Join handles POST /api/v1/actors/{id}/join
func (h *ActorHandler) Join(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	var req request.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	h.controller.Join(actorID, req.Name, model.Origin{Address: req.Address, UserAgent: req.UserAgent})
	w.WriteHeader(http.StatusAccepted)
}

// Quit handles POST /api/v1/actors/{id}/quit
func (h *ActorHandler) Quit(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	// The final flush should finish even if the host hangs up
	h.controller.Quit(context.WithoutCancel(r.Context()), actorID)
	response.NoContent(w)
}

// Gate handles GET /api/v1/actors/{id}/gate?action=
func (h *ActorHandler) Gate(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	action, ok := model.ParseActionKind(r.URL.Query().Get("action"))
	if !ok {
		WriteError(w, NewInvalidRequestError("unknown action"))
		return
	}

	decision := h.controller.Allow(actorID, action)
	response.JSON(w, http.StatusOK, response.GateDecisionFromModel(decision))
}

// Login handles POST /api/v1/actors/{id}/login
func (h *ActorHandler) Login(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		WriteError(w, NewInvalidRequestError("token is required"))
		return
	}

	result, err := h.controller.Login(r.Context(), actorID, strings.TrimSpace(req.Token))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LoginResultFromModel(result))
}

// Status handles GET /api/v1/actors/{id}
func (h *ActorHandler) Status(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	status, err := h.controller.Status(r.Context(), actorID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, status)
}

// Grant handles POST /api/v1/actors/{id}/reputation
func (h *ActorHandler) Grant(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	var req request.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		WriteError(w, NewInvalidRequestError("target is required"))
		return
	}

	result, err := h.controller.Grant(r.Context(), actorID, req.Target)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// AdjustReputation handles POST /api/v1/actors/{id}/reputation/adjust
func (h *ActorHandler) AdjustReputation(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	var req request.AdjustReputationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		WriteError(w, NewInvalidRequestError("target is required"))
		return
	}
	if req.Delta == 0 {
		WriteError(w, NewInvalidRequestError("delta must not be zero"))
		return
	}

	result, err := h.controller.AdjustReputation(r.Context(), actorID, req.Target, req.Delta, req.Reason)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// Stats handles POST /api/v1/actors/{id}/stats
func (h *ActorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.MustGetActor(r.Context())

	var req request.StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if len(req.Stats) == 0 {
		WriteError(w, NewInvalidRequestError("stats are required"))
		return
	}

	submitted := h.controller.ReportStats(r.Context(), actorID, req.Stats)
	response.JSON(w, http.StatusOK, response.Submitted{Submitted: submitted})
}
