package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/accessgate/internal/api/handler"
	"github.com/mcoot/accessgate/internal/api/middleware"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/services/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Auth       middleware.Authenticator
	Controller session.ControllerInterface
	Remote     handler.Pinger
	Hub        *host.Hub
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	connectionHandler := handler.NewConnectionHandler(cfg.Controller)
	actorHandler := handler.NewActorHandler(cfg.Controller)
	adminHandler := handler.NewAdminHandler(cfg.Controller)
	healthHandler := handler.NewHealthHandler(cfg.Remote, cfg.Hub)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Auth)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	// Everything else requires the bridge key
	bridge := api.NewRoute().Subrouter()
	bridge.Use(authMiddleware)

	bridge.HandleFunc("/connections/check", connectionHandler.Check).Methods(http.MethodPost)
	bridge.HandleFunc("/events", cfg.Hub.ServeSSE).Methods(http.MethodGet)
	bridge.HandleFunc("/server", adminHandler.ServerData).Methods(http.MethodPost)

	// Actor routes
	actors := bridge.PathPrefix("/actors/{id}").Subrouter()
	actors.Use(middleware.Actor)
	actors.HandleFunc("", actorHandler.Status).Methods(http.MethodGet)
	actors.HandleFunc("/join", actorHandler.Join).Methods(http.MethodPost)
	actors.HandleFunc("/quit", actorHandler.Quit).Methods(http.MethodPost)
	actors.HandleFunc("/gate", actorHandler.Gate).Methods(http.MethodGet)
	actors.HandleFunc("/login", actorHandler.Login).Methods(http.MethodPost)
	actors.HandleFunc("/reputation", actorHandler.Grant).Methods(http.MethodPost)
	actors.HandleFunc("/reputation/adjust", actorHandler.AdjustReputation).Methods(http.MethodPost)
	actors.HandleFunc("/stats", actorHandler.Stats).Methods(http.MethodPost)

	// Admin routes
	admin := bridge.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/ban", adminHandler.Ban).Methods(http.MethodPost)
	admin.HandleFunc("/unban", adminHandler.Unban).Methods(http.MethodPost)
	admin.HandleFunc("/trust", adminHandler.Trust).Methods(http.MethodPost)
	admin.Handle("/sync/{id}", middleware.Actor(http.HandlerFunc(adminHandler.Sync))).Methods(http.MethodPost)

	return r
}
