package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mcoot/accessgate/internal/api"
	"github.com/mcoot/accessgate/internal/config"
	"github.com/mcoot/accessgate/internal/factory"
)

// bridgeKeyCleanupInterval is how often expired verified bridge keys are forgotten
const bridgeKeyCleanupInterval = 10 * time.Minute

func main() {
	// Load configuration from an optional file and the environment
	settings, err := config.Load(os.Getenv("ACCESSGATE_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := settings.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level, _ := settings.LogLevel()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Create application factory
	app, err := factory.New(factory.Config{
		Settings: settings,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Auth:       app.AuthService,
		Controller: app.SessionController,
		Remote:     app.Remote,
		Hub:        app.Hub,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", router)

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = settings.Server.Port
	serverConfig.ShutdownTimeout = settings.Server.ShutdownTimeout
	server := api.NewServer(mux, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Remote.Ping(ctx); err != nil {
		logger.Warn("identity service not reachable at startup", slog.String("error", err.Error()))
	}

	// Background workers
	var wg sync.WaitGroup
	wg.Go(app.Hub.Run)
	wg.Go(func() { app.SessionController.Run(ctx) })
	wg.Go(func() {
		ticker := app.Clock.NewTicker(bridgeKeyCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				app.AuthService.CleanExpired()
			case <-ctx.Done():
				return
			}
		}
	})

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
		stop()
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Ends open directive streams so the server can drain
		app.Hub.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	// Flush playtime and telemetry for everyone still connected
	flushCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	app.SessionController.Shutdown(flushCtx)
	cancel()

	if err := app.Close(); err != nil {
		logger.Error("failed to close application", slog.String("error", err.Error()))
	}
	wg.Wait()

	logger.Info("server stopped")
	os.Exit(exitCode)
}
