package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/accessgate/internal/model"
)

// Remote is the subset of the identity service client used at connection time
type Remote interface {
	Ping(ctx context.Context) error
	CheckAccess(ctx context.Context, name string) (bool, error)
}

// Decision is the outcome of a connection check. Reason is nil when allowed
// and otherwise matches model.ErrAccessDenied.
type Decision struct {
	Allowed bool
	Reason  error
}

// Config holds configuration for the access gateway
type Config struct {
	// WhitelistEnabled turns on the remote access-list query
	WhitelistEnabled bool
	// Timeout bounds the whole check so the handshake never hangs
	Timeout time.Duration
}

// DefaultConfig returns default access gateway configuration
func DefaultConfig() Config {
	return Config{
		WhitelistEnabled: true,
		Timeout:          15 * time.Second,
	}
}

// Service decides whether a connecting display name may enter the world.
// Any doubt results in a denial.
type Service struct {
	remote Remote
	cfg    Config
	logger *slog.Logger
}

// New creates a new access gateway
func New(remote Remote, cfg Config, logger *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Service{
		remote: remote,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "access")),
	}
}

// CheckAccess runs the pre-connection check for a display name
func (s *Service) CheckAccess(ctx context.Context, name string) Decision {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.remote.Ping(ctx); err != nil {
		s.logger.Error("denying connection, identity service unreachable",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return Decision{Reason: model.ErrServiceUnavailable}
	}

	if s.cfg.WhitelistEnabled {
		ok, err := s.remote.CheckAccess(ctx, name)
		if err != nil {
			s.logger.Error("denying connection, access list query failed",
				slog.String("name", name),
				slog.String("error", err.Error()))
			return Decision{Reason: model.ErrServiceUnavailable}
		}
		if !ok {
			s.logger.Info("denying connection, not on access list", slog.String("name", name))
			return Decision{Reason: model.ErrNotWhitelisted}
		}
	}

	s.logger.Info("connection allowed",
		slog.String("name", name),
		slog.Bool("whitelist_enabled", s.cfg.WhitelistEnabled))
	return Decision{Allowed: true}
}
