package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/accessgate/internal/config"
	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/remote"
	"github.com/mcoot/accessgate/internal/services/access"
	"github.com/mcoot/accessgate/internal/services/auth"
	"github.com/mcoot/accessgate/internal/services/authgate"
	"github.com/mcoot/accessgate/internal/services/identity"
	"github.com/mcoot/accessgate/internal/services/playtime"
	"github.com/mcoot/accessgate/internal/services/reputation"
	"github.com/mcoot/accessgate/internal/services/session"
	"github.com/mcoot/accessgate/internal/services/telemetry"
	"github.com/mcoot/accessgate/internal/storage"
	"github.com/mcoot/accessgate/internal/storage/memory"
	redisstorage "github.com/mcoot/accessgate/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Remote *remote.Client
	Hub    *host.Hub

	// Services
	AuthService       *auth.Service
	AccessService     *access.Service
	AuthGate          *authgate.Service
	IdentityService   *identity.Service
	PlaytimeTracker   *playtime.Tracker
	ReputationService *reputation.Service
	TelemetryService  *telemetry.Service
	SessionController *session.Controller
}

// Config holds configuration for the application factory
type Config struct {
	// Settings is the loaded sidecar configuration.
	// If nil, config.Default() is used.
	Settings *config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	store, err := newStorage(settings.Storage)
	if err != nil {
		return nil, err
	}

	clk := clock.New()

	authService, err := auth.New(clk, auth.Config{
		Key:     settings.Server.BridgeKey,
		KeyHash: settings.Server.BridgeKeyHash,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge key: %w", err)
	}

	client := remote.New(remote.Config{
		BaseURL:        settings.Remote.URL,
		APIKey:         settings.Remote.APIKey,
		MaxAttempts:    settings.Remote.MaxAttempts,
		BaseDelay:      settings.Remote.BaseDelay,
		RequestTimeout: settings.Remote.RequestTimeout,
	}, clk, logger)

	return newWithDependencies(settings, store, client, host.NewHub(clk, logger), authService, clk, logger), nil
}

func newStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "", config.StorageMemory:
		return memory.New(), nil
	case config.StorageRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis_url required when storage type is redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		return redisstorage.New(redisCfg)
	default:
		return nil, errors.New("invalid storage type: must be 'memory' or 'redis'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	settings *config.Config,
	store storage.Storage,
	client *remote.Client,
	hub *host.Hub,
	authService *auth.Service,
	clk clock.Clock,
	logger *slog.Logger,
) *App {
	accessService := access.New(client, access.Config{
		WhitelistEnabled: settings.Features.Whitelist,
		Timeout:          settings.Auth.HandshakeTimeout,
	}, logger)

	identityService := identity.New(client, clk, logger)

	gateCfg := authgate.DefaultConfig()
	gateCfg.AuthTimeout = settings.Auth.Timeout
	gateCfg.ReminderInterval = settings.Auth.ReminderInterval
	gate := authgate.New(client, identityService, hub, clk, gateCfg, logger)

	playtimeCfg := playtime.DefaultConfig()
	playtimeCfg.TickInterval = settings.Playtime.TickInterval
	playtimeCfg.FlushThreshold = settings.Playtime.FlushThreshold
	playtimeCfg.EnforceQuota = settings.Features.TimeLimit
	tracker := playtime.New(identityService, store, hub, clk, playtimeCfg, logger)

	reputationCfg := reputation.DefaultConfig()
	reputationCfg.Enabled = settings.Features.Reputation
	reputationCfg.Cooldown = settings.Reputation.Cooldown
	reputationService := reputation.New(identityService, store, hub, clk, reputationCfg, logger)

	telemetryService := telemetry.New(client, identityService, clk, telemetry.DefaultConfig(), logger)

	controller := session.NewController(
		accessService,
		gate,
		identityService,
		tracker,
		reputationService,
		telemetryService,
		hub,
		logger,
	)

	return &App{
		Storage:           store,
		Clock:             clk,
		Remote:            client,
		Hub:               hub,
		AuthService:       authService,
		AccessService:     accessService,
		AuthGate:          gate,
		IdentityService:   identityService,
		PlaytimeTracker:   tracker,
		ReputationService: reputationService,
		TelemetryService:  telemetryService,
		SessionController: controller,
	}
}

// Close releases the hub and any storage connection
func (a *App) Close() error {
	a.Hub.Close()
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
