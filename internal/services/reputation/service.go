package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/storage"
)

// Cache is the subset of the identity cache used for reputation
type Cache interface {
	Get(actorID model.ActorID) (*model.Identity, bool)
	Lookup(ctx context.Context, name string) (*model.Identity, error)
	ActorByName(name string) (model.ActorID, bool)
	MutateByName(ctx context.Context, name string, op model.Mutation) (*model.Identity, error)
	RecordActivity(ctx context.Context, actorID model.ActorID, activity model.ActivityType, description string, metadata map[string]any) bool
}

// Result describes a completed reputation change
type Result struct {
	Target  string `json:"target"`
	Delta   int    `json:"delta"`
	Message string `json:"message"`
}

// Service handles player reputation grants and moderator adjustments
type Service struct {
	cache   Cache
	storage storage.Storage
	host    host.Host
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	granters map[model.RemoteID]*sync.Mutex
}

// New creates a new reputation service
func New(cache Cache, store storage.Storage, h host.Host, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Service{
		cache:    cache,
		storage:  store,
		host:     h,
		clock:    clk,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "reputation")),
		granters: make(map[model.RemoteID]*sync.Mutex),
	}
}

// Grant gives +1 reputation from a connected actor to the named account.
// Preconditions are checked in order: cooldown, self-grant, target known,
// granter trust. The cooldown starts only once the identity service has
// confirmed the change.
func (s *Service) Grant(ctx context.Context, from model.ActorID, toName string) (Result, error) {
	if !s.cfg.Enabled {
		return Result{}, fmt.Errorf("%w: reputation is disabled", model.ErrNotPermitted)
	}

	granter, ok := s.cache.Get(from)
	if !ok {
		return Result{}, model.ErrNotAuthenticated
	}

	lock := s.granterLock(granter.RemoteID)
	lock.Lock()
	defer lock.Unlock()

	remaining, err := s.remaining(ctx, granter.RemoteID)
	if err != nil {
		return Result{}, err
	}
	if remaining > 0 {
		return Result{}, fmt.Errorf("%w: try again in %s", model.ErrOnCooldown, FormatCooldown(remaining))
	}

	if model.NameKey(toName) == model.NameKey(granter.Name) {
		return Result{}, model.ErrSelfGrant
	}

	target, err := s.cache.Lookup(ctx, toName)
	if err != nil {
		return Result{}, fmt.Errorf("looking up %s: %w", toName, err)
	}
	if target == nil {
		return Result{}, fmt.Errorf("%w: %s", model.ErrTargetUnknown, toName)
	}

	if granter.TrustLevel < s.cfg.MinTrustLevel {
		return Result{}, fmt.Errorf("%w: level %d or higher is required", model.ErrInsufficientTrust, s.cfg.MinTrustLevel)
	}

	op := model.AdjustReputation{Delta: 1, Reason: "Reputation from player " + granter.Name}
	if _, err := s.cache.MutateByName(ctx, target.Name, op); err != nil {
		s.logger.Warn("reputation grant failed",
			slog.String("from", granter.Name),
			slog.String("to", target.Name),
			slog.String("error", err.Error()))
		return Result{}, s.writeError(err, toName)
	}

	now := s.clock.Now()
	if err := s.storage.SetLastGrant(ctx, granter.RemoteID, now, s.cfg.Cooldown); err != nil {
		s.logger.Error("could not record reputation cooldown",
			slog.Int64("remote_id", int64(granter.RemoteID)),
			slog.String("error", err.Error()))
	}

	s.cache.RecordActivity(ctx, from, model.ActivityReputationGiven, "Gave reputation to "+target.Name, map[string]any{
		"target_id":         int64(target.RemoteID),
		"target_nickname":   target.Name,
		"reputation_change": 1,
	})
	s.notify(target.Name, granter.Name+" gave you +1 reputation")

	s.logger.Info("reputation granted",
		slog.String("from", granter.Name),
		slog.String("to", target.Name))
	return Result{Target: target.Name, Delta: 1, Message: "You gave +1 reputation to " + target.Name}, nil
}

// Adjust changes an account's reputation by an arbitrary delta. It is not
// subject to the cooldown and requires a moderator or admin.
func (s *Service) Adjust(ctx context.Context, admin model.ActorID, toName string, delta int, reason string) (Result, error) {
	moderator, ok := s.cache.Get(admin)
	if !ok {
		return Result{}, model.ErrNotAuthenticated
	}
	if !moderator.Role.Can(model.CapModerate) {
		return Result{}, model.ErrNotPermitted
	}
	if reason == "" {
		reason = "Adjusted by " + moderator.Name
	}

	target, err := s.cache.MutateByName(ctx, toName, model.AdjustReputation{Delta: delta, Reason: reason})
	if err != nil {
		return Result{}, s.writeError(err, toName)
	}

	s.cache.RecordActivity(ctx, admin, model.ActivityReputationModified, fmt.Sprintf("Changed reputation of %s by %d", target.Name, delta), map[string]any{
		"target_id":         int64(target.RemoteID),
		"target_nickname":   target.Name,
		"reputation_change": delta,
		"reason":            reason,
	})

	s.logger.Info("reputation adjusted",
		slog.String("by", moderator.Name),
		slog.String("to", target.Name),
		slog.Int("delta", delta),
		slog.String("reason", reason))
	return Result{
		Target:  target.Name,
		Delta:   delta,
		Message: fmt.Sprintf("Reputation of %s changed by %s", target.Name, signed(delta)),
	}, nil
}

// CanGrant reports whether the actor is off cooldown. Storage errors count as
// on cooldown.
func (s *Service) CanGrant(ctx context.Context, actorID model.ActorID) bool {
	ident, ok := s.cache.Get(actorID)
	if !ok {
		return false
	}
	remaining, err := s.remaining(ctx, ident.RemoteID)
	return err == nil && remaining == 0
}

// RemainingCooldown returns how long until the actor may grant again
func (s *Service) RemainingCooldown(ctx context.Context, actorID model.ActorID) time.Duration {
	ident, ok := s.cache.Get(actorID)
	if !ok {
		return 0
	}
	remaining, err := s.remaining(ctx, ident.RemoteID)
	if err != nil {
		return s.cfg.Cooldown
	}
	return remaining
}

func (s *Service) remaining(ctx context.Context, id model.RemoteID) (time.Duration, error) {
	last, ok, err := s.storage.GetLastGrant(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("reading reputation cooldown: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return max(0, s.cfg.Cooldown-s.clock.Now().Sub(last)), nil
}

func (s *Service) granterLock(id model.RemoteID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.granters[id]
	if !ok {
		lock = &sync.Mutex{}
		s.granters[id] = lock
	}
	return lock
}

func (s *Service) notify(name, text string) {
	if actorID, ok := s.cache.ActorByName(name); ok {
		s.host.Message(actorID, text)
	}
}

func (s *Service) writeError(err error, name string) error {
	if errors.Is(err, model.ErrActorNotFound) {
		return fmt.Errorf("%w: %s", model.ErrTargetUnknown, name)
	}
	return err
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// FormatCooldown renders a remaining cooldown, e.g. "1h 5m", "4m 30s" or "12s"
func FormatCooldown(d time.Duration) string {
	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
