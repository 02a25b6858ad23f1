package telemetry

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/remote"
)

// Remote is the subset of the identity service client used for telemetry
type Remote interface {
	SubmitTelemetry(ctx context.Context, name string, stats map[string]int) bool
	SubmitServerData(ctx context.Context, data remote.ServerData) bool
}

// Cache is the subset of the identity cache used for telemetry
type Cache interface {
	Get(actorID model.ActorID) (*model.Identity, bool)
}

// Config holds configuration for statistics forwarding
type Config struct {
	// MinInterval is the minimum time between two submissions for one actor
	MinInterval time.Duration
	// Threshold is how much a significant counter must move before a submission
	Threshold int
	// Significant lists the counters compared against Threshold
	Significant []string
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() Config {
	return Config{
		MinInterval: 30 * time.Second,
		Threshold:   10,
		Significant: []string{"blocks_broken", "blocks_placed", "distance_walked", "deaths_count", "mobs_killed", "total_logins"},
	}
}

// Service forwards per-actor statistics to the identity service, skipping
// reports that come too soon or change too little
type Service struct {
	remote Remote
	cache  Cache
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	actors map[model.ActorID]*tracked
}

type tracked struct {
	mu       sync.Mutex
	lastSent map[string]int
	latest   map[string]int
	lastAt   time.Time
}

// New creates a new telemetry service
func New(r Remote, cache Cache, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaults.MinInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaults.Threshold
	}
	if len(cfg.Significant) == 0 {
		cfg.Significant = defaults.Significant
	}
	return &Service{
		remote: r,
		cache:  cache,
		clock:  clk,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "telemetry")),
		actors: make(map[model.ActorID]*tracked),
	}
}

// Track starts accepting reports for an authenticated actor. The minimum
// interval counts from this call.
func (s *Service) Track(actorID model.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[actorID] = &tracked{lastAt: s.clock.Now()}
}

// Tracked reports whether reports are accepted for an actor
func (s *Service) Tracked(actorID model.ActorID) bool {
	return s.tracked(actorID) != nil
}

// Report records a statistics snapshot and submits it when due. It reports
// whether a submission was made and accepted.
func (s *Service) Report(ctx context.Context, actorID model.ActorID, stats map[string]int) bool {
	t := s.tracked(actorID)
	if t == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = maps.Clone(stats)

	if s.clock.Now().Sub(t.lastAt) < s.cfg.MinInterval {
		return false
	}
	if t.lastSent != nil && !s.significant(t.lastSent, stats) {
		return false
	}
	return s.submit(ctx, actorID, t)
}

// Finish submits the last snapshot unconditionally and stops tracking
func (s *Service) Finish(ctx context.Context, actorID model.ActorID) bool {
	s.mu.Lock()
	t := s.actors[actorID]
	delete(s.actors, actorID)
	s.mu.Unlock()
	if t == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return false
	}
	return s.submit(ctx, actorID, t)
}

// ReportServer forwards a host status snapshot
func (s *Service) ReportServer(ctx context.Context, data remote.ServerData) bool {
	ok := s.remote.SubmitServerData(ctx, data)
	if !ok {
		s.logger.Warn("server data not accepted")
	}
	return ok
}

// submit must be called with t.mu held
func (s *Service) submit(ctx context.Context, actorID model.ActorID, t *tracked) bool {
	ident, ok := s.cache.Get(actorID)
	if !ok {
		return false
	}
	if !s.remote.SubmitTelemetry(ctx, ident.Name, t.latest) {
		return false
	}
	t.lastSent = maps.Clone(t.latest)
	t.lastAt = s.clock.Now()
	s.logger.Debug("statistics submitted", slog.String("actor_id", string(actorID)))
	return true
}

func (s *Service) significant(last, current map[string]int) bool {
	for _, key := range s.cfg.Significant {
		diff := current[key] - last[key]
		if diff > s.cfg.Threshold || -diff > s.cfg.Threshold {
			return true
		}
	}
	return false
}

func (s *Service) tracked(actorID model.ActorID) *tracked {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actors[actorID]
}
