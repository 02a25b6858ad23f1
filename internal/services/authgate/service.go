package authgate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/model"
)

// Remote is the subset of the identity service client used by the gate
type Remote interface {
	CheckSession(ctx context.Context, name string, actorID model.ActorID, origin model.Origin) (model.SessionClaims, error)
	VerifyToken(ctx context.Context, token, name string) model.SessionClaims
	CreateSession(ctx context.Context, name string, actorID model.ActorID, origin model.Origin) bool
}

// Cache is the subset of the identity cache used by the gate
type Cache interface {
	Populate(ctx context.Context, actorID model.ActorID, claims model.SessionClaims)
	Get(actorID model.ActorID) (*model.Identity, bool)
	Evict(actorID model.ActorID)
}

// AuthenticatedFunc is called once per actor when it reaches the authenticated state
type AuthenticatedFunc func(ctx context.Context, actorID model.ActorID)

// Decision is the gate's answer for one in-session action
type Decision struct {
	Allowed bool
	State   model.GateState
}

// RedeemResult describes the outcome of a token redemption
type RedeemResult struct {
	Authenticated bool
	Message       string
}

// Service runs the per-actor authentication state machine.
//
// Allow and IsAuthenticated only read local state; all identity service
// calls happen on background goroutines or in RedeemToken.
type Service struct {
	remote Remote
	cache  Cache
	host   host.Host
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	entries map[model.ActorID]*entry
	onAuth  []AuthenticatedFunc
}

type entry struct {
	actorID model.ActorID
	name    string
	origin  model.Origin

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    model.GateState
	inFlight int
	closed   bool
	timer    clock.Timer
	reminder *rate.Limiter
}

// New creates a new authentication gate
func New(remote Remote, cache Cache, h host.Host, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaults.AuthTimeout
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = defaults.ReminderInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaults.CheckTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		remote:     remote,
		cache:      cache,
		host:       h,
		clock:      clk,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "authgate")),
		baseCtx:    ctx,
		cancelBase: cancel,
		entries:    make(map[model.ActorID]*entry),
	}
}

// OnAuthenticated registers a callback for the authenticated transition
func (s *Service) OnAuthenticated(fn AuthenticatedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAuth = append(s.onAuth, fn)
}

// Join starts gating a newly joined actor. The actor begins unverified, the
// expiry timer starts, and an existing-session check runs in the background.
func (s *Service) Join(actorID model.ActorID, name string, origin model.Origin) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	e := &entry{
		actorID:  actorID,
		name:     name,
		origin:   origin,
		ctx:      ctx,
		cancel:   cancel,
		state:    model.GateUnverified,
		reminder: rate.NewLimiter(rate.Every(s.cfg.ReminderInterval), 1),
	}

	s.mu.Lock()
	old := s.entries[actorID]
	s.entries[actorID] = e
	s.mu.Unlock()
	if old != nil {
		s.close(old)
	}

	e.mu.Lock()
	e.timer = s.clock.AfterFunc(s.cfg.AuthTimeout, func() { s.expire(e) })
	e.inFlight++
	e.state = model.GateVerifying
	e.mu.Unlock()

	s.logger.Info("actor joined", slog.String("actor_id", string(actorID)), slog.String("name", name))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.checkSession(e)
	}()
}

// Quit stops gating an actor and cancels any verification still in flight
func (s *Service) Quit(actorID model.ActorID) {
	s.mu.Lock()
	e := s.entries[actorID]
	delete(s.entries, actorID)
	s.mu.Unlock()

	if e != nil {
		s.close(e)
	}
}

// IsAuthenticated reports whether the actor has a verified session
func (s *Service) IsAuthenticated(actorID model.ActorID) bool {
	state, _ := s.State(actorID)
	return state == model.GateAuthenticated
}

// State returns the actor's current gate state
func (s *Service) State(actorID model.ActorID) (model.GateState, bool) {
	e := s.entry(actorID)
	if e == nil {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Allow decides whether an in-session action may proceed. Unknown actors are
// treated as unauthenticated. Suppressed actions may trigger a throttled
// login reminder.
func (s *Service) Allow(actorID model.ActorID, action model.ActionKind) Decision {
	e := s.entry(actorID)
	if e == nil {
		return Decision{State: model.GateUnverified}
	}

	e.mu.Lock()
	state := e.state
	if state == model.GateAuthenticated {
		e.mu.Unlock()
		return Decision{Allowed: true, State: state}
	}

	switch action {
	case model.ActionLook, model.ActionLoginCommand, model.ActionHostTeleport:
		e.mu.Unlock()
		return Decision{Allowed: true, State: state}
	case model.ActionDamageTaken, model.ActionHunger, model.ActionPickupItem, model.ActionTeleport:
		e.mu.Unlock()
		return Decision{State: state}
	}

	remind := !e.closed && e.reminder.AllowN(s.clock.Now(), 1)
	e.mu.Unlock()

	if remind {
		s.host.Message(actorID, msgReminder)
	}
	return Decision{State: state}
}

// RedeemToken verifies a login token for the actor. On success the actor is
// authenticated and a new remote session is created in the background.
func (s *Service) RedeemToken(ctx context.Context, actorID model.ActorID, token string) (RedeemResult, error) {
	e := s.entry(actorID)
	if e == nil {
		return RedeemResult{}, model.ErrActorNotFound
	}

	e.mu.Lock()
	if e.state == model.GateAuthenticated {
		e.mu.Unlock()
		return RedeemResult{Authenticated: true, Message: "already authenticated"}, nil
	}
	e.inFlight++
	e.state = model.GateVerifying
	e.mu.Unlock()

	s.host.Message(actorID, msgVerifying)

	// Cancel the call if the actor disconnects
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()
	defer cancel()

	claims := s.remote.VerifyToken(ctx, token, e.name)
	if !claims.Valid {
		s.verificationFailed(e)
		s.logger.Info("token rejected",
			slog.String("actor_id", string(actorID)),
			slog.String("reason", claims.Message))
		return RedeemResult{Message: claims.Message}, fmt.Errorf("%w: %s", model.ErrInvalidToken, claims.Message)
	}

	if err := s.authenticate(e, claims, false); err != nil {
		return RedeemResult{Message: err.Error()}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, s.cfg.CheckTimeout)
		defer cancel()
		if !s.remote.CreateSession(ctx, e.name, e.actorID, e.origin) {
			s.logger.Warn("could not create remote session", slog.String("actor_id", string(e.actorID)))
		}
	}()

	return RedeemResult{Authenticated: true, Message: claims.Message}, nil
}

// Close cancels all background work and waits for it to finish
func (s *Service) Close() {
	s.cancelBase()

	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for id, e := range s.entries {
		entries = append(entries, e)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.close(e)
	}
	s.wg.Wait()
}

func (s *Service) checkSession(e *entry) {
	ctx, cancel := context.WithTimeout(e.ctx, s.cfg.CheckTimeout)
	defer cancel()

	claims, err := s.remote.CheckSession(ctx, e.name, e.actorID, e.origin)
	if err == nil && claims.Valid {
		_ = s.authenticate(e, claims, true)
		return
	}

	if err != nil && e.ctx.Err() == nil {
		s.logger.Warn("session check failed, token login required",
			slog.String("actor_id", string(e.actorID)),
			slog.String("error", err.Error()))
	}
	if s.verificationFailed(e) {
		s.host.Message(e.actorID, fmt.Sprintf(msgLoginRequired, s.cfg.AuthTimeout))
	}
}

// authenticate installs the identity and then moves the actor to the
// authenticated state. It fails if the actor left or is not allowed on the
// server.
func (s *Service) authenticate(e *entry, claims model.SessionClaims, viaSession bool) error {
	s.cache.Populate(e.ctx, e.actorID, claims)

	ident, ok := s.cache.Get(e.actorID)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		s.evictIfGone(e)
		return model.ErrNotAuthenticated
	}
	if e.state == model.GateAuthenticated {
		e.mu.Unlock()
		return nil
	}
	if !ok || !ident.HasServerAccess() {
		e.inFlight--
		if e.inFlight <= 0 {
			e.inFlight = 0
			e.state = model.GateUnverified
		}
		e.mu.Unlock()
		s.logger.Warn("denying authenticated actor without server access", slog.String("actor_id", string(e.actorID)))
		text := msgBanned
		if ok {
			text = bannedMessage(ident)
		}
		s.host.Disconnect(e.actorID, model.ReasonBanned, text)
		return model.ErrBanned
	}
	e.state = model.GateAuthenticated
	e.inFlight = 0
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	s.logger.Info("actor authenticated",
		slog.String("actor_id", string(e.actorID)),
		slog.Int64("remote_id", int64(claims.RemoteID)),
		slog.Bool("via_session", viaSession))
	s.host.Message(e.actorID, welcomeMessage(claims, viaSession))

	s.mu.RLock()
	callbacks := append([]AuthenticatedFunc(nil), s.onAuth...)
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn(e.ctx, e.actorID)
	}
	return nil
}

// verificationFailed ends one in-flight verification. It reports whether the
// actor is back in the unverified state.
func (s *Service) verificationFailed(e *entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.state == model.GateAuthenticated {
		return false
	}
	e.inFlight--
	if e.inFlight <= 0 {
		e.inFlight = 0
		e.state = model.GateUnverified
		return true
	}
	return false
}

func (s *Service) expire(e *entry) {
	e.mu.Lock()
	if e.closed || e.state == model.GateAuthenticated {
		e.mu.Unlock()
		return
	}
	e.state = model.GateExpired
	e.mu.Unlock()

	s.mu.Lock()
	if s.entries[e.actorID] == e {
		delete(s.entries, e.actorID)
	}
	s.mu.Unlock()
	s.close(e)

	s.logger.Info("actor expired without authenticating", slog.String("actor_id", string(e.actorID)))
	s.host.Disconnect(e.actorID, model.ReasonExpired, msgExpired)
}

func (s *Service) close(e *entry) {
	e.mu.Lock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()
	e.cancel()
}

// evictIfGone drops a cache entry installed by a verification that finished
// after the actor left
func (s *Service) evictIfGone(e *entry) {
	s.mu.RLock()
	_, live := s.entries[e.actorID]
	s.mu.RUnlock()
	if !live {
		s.cache.Evict(e.actorID)
	}
}

func (s *Service) entry(actorID model.ActorID) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[actorID]
}
