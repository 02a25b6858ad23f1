package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/remote"
	"github.com/mcoot/accessgate/internal/services/access"
	"github.com/mcoot/accessgate/internal/services/authgate"
	"github.com/mcoot/accessgate/internal/services/identity"
	"github.com/mcoot/accessgate/internal/services/playtime"
	"github.com/mcoot/accessgate/internal/services/reputation"
	"github.com/mcoot/accessgate/internal/services/telemetry"
)

// ActorStatus is everything known locally about a connected actor
type ActorStatus struct {
	ActorID            model.ActorID   `json:"actor_id"`
	State              model.GateState `json:"state"`
	Identity           *model.Identity `json:"identity,omitempty"`
	Stats              *model.Stats    `json:"stats,omitempty"`
	SessionMinutes     int             `json:"session_minutes"`
	TotalMinutes       int             `json:"total_minutes"`
	TotalPlaytime      string          `json:"total_playtime"`
	RemainingQuota     int             `json:"remaining_quota"`
	CanGrant           bool            `json:"can_grant"`
	ReputationCooldown time.Duration   `json:"reputation_cooldown"`
}

// Controller drives an actor through connection, authentication, play and
// disconnection across the individual services
type Controller struct {
	access     *access.Service
	gate       *authgate.Service
	identity   *identity.Service
	playtime   *playtime.Tracker
	reputation *reputation.Service
	telemetry  *telemetry.Service
	host       host.Host
	logger     *slog.Logger
}

// NewController creates a new session controller and subscribes it to
// authentication events
func NewController(
	accessService *access.Service,
	gate *authgate.Service,
	identityService *identity.Service,
	tracker *playtime.Tracker,
	reputationService *reputation.Service,
	telemetryService *telemetry.Service,
	h host.Host,
	logger *slog.Logger,
) *Controller {
	c := &Controller{
		access:     accessService,
		gate:       gate,
		identity:   identityService,
		playtime:   tracker,
		reputation: reputationService,
		telemetry:  telemetryService,
		host:       h,
		logger:     logger.With(slog.String("component", "session")),
	}
	gate.OnAuthenticated(c.onAuthenticated)
	return c
}

// Prelogin decides whether a name may connect at all
func (c *Controller) Prelogin(ctx context.Context, name string) access.Decision {
	d := c.access.CheckAccess(ctx, name)
	if !d.Allowed {
		c.logger.Info("connection denied", slog.String("name", name), slog.String("reason", d.Reason.Error()))
	}
	return d
}

// Join starts gating a connected actor
func (c *Controller) Join(actorID model.ActorID, name string, origin model.Origin) {
	c.gate.Join(actorID, name, origin)
}

// Login redeems a login token for the actor
func (c *Controller) Login(ctx context.Context, actorID model.ActorID, token string) (authgate.RedeemResult, error) {
	return c.gate.RedeemToken(ctx, actorID, token)
}

// Allow answers a per-event gate check from local state only
func (c *Controller) Allow(actorID model.ActorID, action model.ActionKind) authgate.Decision {
	return c.gate.Allow(actorID, action)
}

// Quit releases everything held for the actor. Playtime gets a final flush
// and telemetry a final report before the cached identity is dropped.
// Reputation cooldowns are kept.
func (c *Controller) Quit(ctx context.Context, actorID model.ActorID) {
	wasAuthenticated := c.gate.IsAuthenticated(actorID)
	c.gate.Quit(actorID)

	if wasAuthenticated {
		c.telemetry.Finish(ctx, actorID)
		played := c.playtime.Stop(ctx, actorID)
		c.identity.RecordActivity(ctx, actorID, model.ActivityLeaveServer, "Left the server", map[string]any{
			"session_minutes": played,
		})
	}
	c.identity.Evict(actorID)

	c.logger.Info("actor left", slog.String("actor_id", string(actorID)), slog.Bool("authenticated", wasAuthenticated))
}

// Status reports the actor's locally known state
func (c *Controller) Status(ctx context.Context, actorID model.ActorID) (*ActorStatus, error) {
	state, ok := c.gate.State(actorID)
	if !ok {
		return nil, model.ErrActorNotFound
	}

	status := &ActorStatus{
		ActorID:        actorID,
		State:          state,
		RemainingQuota: -1,
	}
	if ident, ok := c.identity.Get(actorID); ok {
		status.Identity = ident
	}
	if stats, ok := c.identity.GetStats(actorID); ok {
		status.Stats = stats
	}
	if state == model.GateAuthenticated {
		status.SessionMinutes = c.playtime.SessionPlaytime(actorID)
		status.TotalMinutes = c.playtime.TotalPlaytime(actorID)
		status.TotalPlaytime = playtime.FormatDuration(status.TotalMinutes)
		status.RemainingQuota = c.playtime.RemainingQuota(actorID)
		status.CanGrant = c.reputation.CanGrant(ctx, actorID)
		status.ReputationCooldown = c.reputation.RemainingCooldown(ctx, actorID)
	}
	return status, nil
}

// Grant gives reputation from an authenticated actor
func (c *Controller) Grant(ctx context.Context, from model.ActorID, toName string) (reputation.Result, error) {
	if !c.gate.IsAuthenticated(from) {
		return reputation.Result{}, model.ErrNotAuthenticated
	}
	return c.reputation.Grant(ctx, from, toName)
}

// AdjustReputation applies a moderator reputation change
func (c *Controller) AdjustReputation(ctx context.Context, by model.ActorID, toName string, delta int, reason string) (reputation.Result, error) {
	if !c.gate.IsAuthenticated(by) {
		return reputation.Result{}, model.ErrNotAuthenticated
	}
	return c.reputation.Adjust(ctx, by, toName, delta, reason)
}

// ReportStats forwards an actor's statistics snapshot
func (c *Controller) ReportStats(ctx context.Context, actorID model.ActorID, stats map[string]int) bool {
	return c.telemetry.Report(ctx, actorID, stats)
}

// ReportServer forwards a host status snapshot
func (c *Controller) ReportServer(ctx context.Context, data remote.ServerData) bool {
	return c.telemetry.ReportServer(ctx, data)
}

// Ban bans an account by name. A connected actor holding the name is
// disconnected. by is the acting actor, or empty for operator requests.
func (c *Controller) Ban(ctx context.Context, by model.ActorID, name, reason string, days int) (*model.Identity, error) {
	if err := c.authorize(by, model.CapAdminister); err != nil {
		return nil, err
	}
	ident, err := c.identity.MutateByName(ctx, name, model.SetBanned{Banned: true, Reason: reason, DurationDays: days})
	if err != nil {
		return nil, err
	}

	if actorID, ok := c.identity.ActorByName(name); ok {
		text := "You have been banned"
		if reason != "" {
			text += ": " + reason
		}
		c.host.Disconnect(actorID, model.ReasonBanned, text)
	}
	c.logger.Info("account banned",
		slog.String("name", ident.Name),
		slog.String("by", string(by)),
		slog.Int("days", days))
	return ident, nil
}

// Unban lifts a ban by name
func (c *Controller) Unban(ctx context.Context, by model.ActorID, name string) (*model.Identity, error) {
	if err := c.authorize(by, model.CapAdminister); err != nil {
		return nil, err
	}
	ident, err := c.identity.MutateByName(ctx, name, model.SetBanned{Banned: false})
	if err != nil {
		return nil, err
	}
	c.logger.Info("account unbanned", slog.String("name", ident.Name), slog.String("by", string(by)))
	return ident, nil
}

// SetTrustLevel changes an account's trust level by name
func (c *Controller) SetTrustLevel(ctx context.Context, by model.ActorID, name string, level int) (*model.Identity, error) {
	if err := c.authorize(by, model.CapAdminister); err != nil {
		return nil, err
	}
	if level < model.TrustNewcomer || level > model.TrustVeteran {
		return nil, fmt.Errorf("%w: got %d", model.ErrInvalidTrustLevel, level)
	}
	ident, err := c.identity.MutateByName(ctx, name, model.SetTrustLevel{Level: level})
	if err != nil {
		return nil, err
	}
	if actorID, ok := c.identity.ActorByName(name); ok {
		c.host.Message(actorID, fmt.Sprintf("Your trust level is now %d", level))
	}
	return ident, nil
}

// Sync refreshes a connected actor's identity and stats from the identity service
func (c *Controller) Sync(ctx context.Context, by model.ActorID, actorID model.ActorID) (*model.Identity, error) {
	if err := c.authorize(by, model.CapAdminister); err != nil {
		return nil, err
	}
	if err := c.identity.Sync(ctx, actorID); err != nil {
		return nil, err
	}
	ident, _ := c.identity.Get(actorID)
	return ident, nil
}

// Run drives periodic playtime accounting until ctx is cancelled
func (c *Controller) Run(ctx context.Context) {
	c.playtime.Run(ctx)
}

// Shutdown flushes every authenticated actor and stops background work
func (c *Controller) Shutdown(ctx context.Context) {
	for actorID := range c.identity.Snapshot() {
		if c.telemetry.Tracked(actorID) {
			c.telemetry.Finish(ctx, actorID)
		}
		if c.playtime.Tracked(actorID) {
			c.playtime.Stop(ctx, actorID)
		}
	}
	c.gate.Close()
}

func (c *Controller) onAuthenticated(ctx context.Context, actorID model.ActorID) {
	// The actor may have left while the session was being verified
	if ctx.Err() != nil {
		return
	}
	c.telemetry.Track(actorID)
	c.identity.RecordActivity(ctx, actorID, model.ActivityJoinServer, "Joined the server", nil)
	if remaining := c.playtime.RemainingQuota(actorID); remaining >= 0 {
		c.host.Message(actorID, "Playtime left before email verification is required: "+playtime.FormatDuration(remaining))
	}

	if err := c.playtime.Start(ctx, actorID); err != nil {
		c.logger.Error("could not start playtime tracking",
			slog.String("actor_id", string(actorID)),
			slog.String("error", err.Error()))
		return
	}
	if ctx.Err() != nil {
		c.telemetry.Finish(context.Background(), actorID)
		c.playtime.Stop(context.Background(), actorID)
	}
}

// authorize checks an acting actor's role. Operator requests carry no actor.
func (c *Controller) authorize(by model.ActorID, capability model.Capability) error {
	if by == "" {
		return nil
	}
	ident, ok := c.identity.Get(by)
	if !ok || !c.gate.IsAuthenticated(by) {
		return model.ErrNotAuthenticated
	}
	if !ident.Role.Can(capability) {
		return model.ErrNotPermitted
	}
	return nil
}

// Interface for dependency injection
type ControllerInterface interface {
	Prelogin(ctx context.Context, name string) access.Decision
	Join(actorID model.ActorID, name string, origin model.Origin)
	Login(ctx context.Context, actorID model.ActorID, token string) (authgate.RedeemResult, error)
	Allow(actorID model.ActorID, action model.ActionKind) authgate.Decision
	Quit(ctx context.Context, actorID model.ActorID)
	Status(ctx context.Context, actorID model.ActorID) (*ActorStatus, error)
	Grant(ctx context.Context, from model.ActorID, toName string) (reputation.Result, error)
	AdjustReputation(ctx context.Context, by model.ActorID, toName string, delta int, reason string) (reputation.Result, error)
	ReportStats(ctx context.Context, actorID model.ActorID, stats map[string]int) bool
	ReportServer(ctx context.Context, data remote.ServerData) bool
	Ban(ctx context.Context, by model.ActorID, name, reason string, days int) (*model.Identity, error)
	Unban(ctx context.Context, by model.ActorID, name string) (*model.Identity, error)
	SetTrustLevel(ctx context.Context, by model.ActorID, name string, level int) (*model.Identity, error)
	Sync(ctx context.Context, by model.ActorID, actorID model.ActorID) (*model.Identity, error)
}

var _ ControllerInterface = (*Controller)(nil)
