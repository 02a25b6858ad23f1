package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/model"
)

// fetchTimeout bounds a shared lookup once no single caller owns it
const fetchTimeout = 30 * time.Second

// Remote is the subset of the identity service client used by the cache
type Remote interface {
	FetchIdentity(ctx context.Context, name string) (*model.Identity, error)
	FetchStats(ctx context.Context, id model.RemoteID) (*model.Stats, bool)
	SetTrustLevel(ctx context.Context, id model.RemoteID, level int) bool
	SetBan(ctx context.Context, id model.RemoteID, reason string, durationDays int) bool
	ClearBan(ctx context.Context, id model.RemoteID) bool
	UpdateReputation(ctx context.Context, id model.RemoteID, delta int, reason string) bool
	UpdatePlaytime(ctx context.Context, id model.RemoteID, minutes int) bool
	SubmitActivity(ctx context.Context, id model.RemoteID, activity model.ActivityType, description string, metadata map[string]any) bool
}

// Service caches identities and stats for connected actors.
//
// Each actor owns one entry. Mutations on an entry are serialized by the
// entry's write lock, which is held across the remote write-through and the
// local update; reads take the entry's data lock only and never wait on I/O.
type Service struct {
	remote Remote
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[model.ActorID]*entry
	byName  map[string]model.ActorID

	fetches singleflight.Group
}

type entry struct {
	actorID model.ActorID

	writeMu sync.Mutex

	dataMu   sync.RWMutex
	identity model.Identity
	stats    *model.Stats
}

// New creates a new identity cache
func New(remote Remote, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		remote:  remote,
		clock:   clk,
		logger:  logger.With(slog.String("component", "identity")),
		entries: make(map[model.ActorID]*entry),
		byName:  make(map[string]model.ActorID),
	}
}

// Get returns a copy of the cached identity for an actor
func (s *Service) Get(actorID model.ActorID) (*model.Identity, bool) {
	e := s.entry(actorID)
	if e == nil {
		return nil, false
	}
	e.dataMu.RLock()
	defer e.dataMu.RUnlock()
	ident := e.identity
	return &ident, true
}

// GetStats returns a copy of the cached stats for an actor. Stats may be
// absent even when the identity is cached if the stats fetch failed.
func (s *Service) GetStats(actorID model.ActorID) (*model.Stats, bool) {
	e := s.entry(actorID)
	if e == nil {
		return nil, false
	}
	e.dataMu.RLock()
	defer e.dataMu.RUnlock()
	if e.stats == nil {
		return nil, false
	}
	stats := *e.stats
	return &stats, true
}

// GetByName returns the cached identity for a connected display name
func (s *Service) GetByName(name string) (*model.Identity, bool) {
	actorID, ok := s.ActorByName(name)
	if !ok {
		return nil, false
	}
	return s.Get(actorID)
}

// ActorByName resolves a display name to the connected actor holding it
func (s *Service) ActorByName(name string) (model.ActorID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actorID, ok := s.byName[model.NameKey(name)]
	return actorID, ok
}

// Lookup resolves a display name to an identity, using the cache when the
// name belongs to a connected actor and the identity service otherwise.
// An unknown name yields (nil, nil). Nothing is installed in the cache.
func (s *Service) Lookup(ctx context.Context, name string) (*model.Identity, error) {
	if ident, ok := s.GetByName(name); ok {
		return ident, nil
	}
	res, err := s.fetch(ctx, name)
	if err != nil || res == nil {
		return nil, err
	}
	ident := res.identity
	return &ident, nil
}

// LoadOrFetch returns the actor's identity, fetching it and its stats from the
// identity service on a miss. Concurrent callers for the same name share one
// remote fetch. An unknown name yields (nil, nil).
func (s *Service) LoadOrFetch(ctx context.Context, actorID model.ActorID, name string) (*model.Identity, error) {
	if ident, ok := s.Get(actorID); ok {
		return ident, nil
	}
	res, err := s.fetch(ctx, name)
	if err != nil || res == nil {
		return nil, err
	}
	s.install(actorID, res.identity, res.stats)
	ident := res.identity
	return &ident, nil
}

// Populate installs an identity from verified session claims, then refreshes
// the full record from the identity service. The claims-based identity stays
// in place if the refresh fails.
func (s *Service) Populate(ctx context.Context, actorID model.ActorID, claims model.SessionClaims) {
	s.install(actorID, model.Identity{
		RemoteID:   claims.RemoteID,
		Name:       claims.Name,
		Role:       claims.Role,
		TrustLevel: claims.TrustLevel,
		Active:     true,
	}, nil)

	if err := s.Sync(ctx, actorID); err != nil {
		s.logger.Warn("using session claims after failed refresh",
			slog.String("actor_id", string(actorID)),
			slog.String("error", err.Error()),
		)
	}
}

// Sync replaces the actor's cached identity and stats with fresh remote copies
func (s *Service) Sync(ctx context.Context, actorID model.ActorID) error {
	e := s.entry(actorID)
	if e == nil {
		return model.ErrActorNotFound
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.dataMu.RLock()
	name := e.identity.Name
	e.dataMu.RUnlock()

	s.fetches.Forget(model.NameKey(name))
	res, err := s.fetch(ctx, name)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("%w: %s is unknown to the identity service", model.ErrActorNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[actorID] == e {
		s.replaceLocked(e, res.identity, res.stats)
	}
	return nil
}

// RefreshStats reloads the actor's stats from the identity service, leaving
// the cached identity as is
func (s *Service) RefreshStats(ctx context.Context, actorID model.ActorID) error {
	e := s.entry(actorID)
	if e == nil {
		return model.ErrActorNotFound
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.dataMu.RLock()
	ident := e.identity
	e.dataMu.RUnlock()

	stats, ok := s.remote.FetchStats(ctx, ident.RemoteID)
	if !ok {
		return fmt.Errorf("%w: no stats for %s", model.ErrRemoteServer, ident.Name)
	}
	stats.QuotaLimited = ident.QuotaLimited()

	e.dataMu.Lock()
	e.stats = stats
	e.dataMu.Unlock()
	return nil
}

// Mutate writes a change through to the identity service and applies it to the
// cached copy only once the service confirms it. On failure the cached copy is
// untouched and ErrWriteThroughFailed is returned.
func (s *Service) Mutate(ctx context.Context, actorID model.ActorID, op model.Mutation) error {
	e := s.entry(actorID)
	if e == nil {
		return model.ErrActorNotFound
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.dataMu.RLock()
	remoteID := e.identity.RemoteID
	e.dataMu.RUnlock()

	if !s.writeThrough(ctx, remoteID, op) {
		return model.ErrWriteThroughFailed
	}

	e.dataMu.Lock()
	s.apply(&e.identity, e.stats, op)
	e.dataMu.Unlock()
	return nil
}

// MutateByName applies a mutation to any known user. Connected actors go
// through Mutate; offline users are resolved remotely and written by id.
func (s *Service) MutateByName(ctx context.Context, name string, op model.Mutation) (*model.Identity, error) {
	if actorID, ok := s.ActorByName(name); ok {
		if err := s.Mutate(ctx, actorID, op); err != nil {
			return nil, err
		}
		ident, _ := s.Get(actorID)
		return ident, nil
	}

	ident, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, model.ErrActorNotFound
	}
	if !s.writeThrough(ctx, ident.RemoteID, op) {
		return nil, model.ErrWriteThroughFailed
	}
	s.apply(ident, nil, op)
	return ident, nil
}

// Evict drops the actor's entry and its name index
func (s *Service) Evict(actorID model.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[actorID]
	if !ok {
		return
	}
	delete(s.entries, actorID)

	e.dataMu.RLock()
	key := model.NameKey(e.identity.Name)
	e.dataMu.RUnlock()
	if s.byName[key] == actorID {
		delete(s.byName, key)
	}
}

// Snapshot returns copies of every cached identity keyed by actor
func (s *Service) Snapshot() map[model.ActorID]model.Identity {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make(map[model.ActorID]model.Identity, len(entries))
	for _, e := range entries {
		e.dataMu.RLock()
		out[e.actorID] = e.identity
		e.dataMu.RUnlock()
	}
	return out
}

// RecordActivity appends to the actor's remote activity log. Actors without a
// cached identity are skipped.
func (s *Service) RecordActivity(ctx context.Context, actorID model.ActorID, activity model.ActivityType, description string, metadata map[string]any) bool {
	ident, ok := s.Get(actorID)
	if !ok {
		return false
	}
	return s.remote.SubmitActivity(ctx, ident.RemoteID, activity, description, metadata)
}

type fetchResult struct {
	identity model.Identity
	stats    *model.Stats
}

// fetch shares one remote lookup between concurrent callers for a name. The
// lookup runs detached from any one caller, so a caller that gives up does
// not fail the others.
func (s *Service) fetch(ctx context.Context, name string) (*fetchResult, error) {
	key := model.NameKey(name)
	ch := s.fetches.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		ident, err := s.remote.FetchIdentity(ctx, name)
		if err != nil {
			return nil, err
		}
		if ident == nil {
			return (*fetchResult)(nil), nil
		}
		res := &fetchResult{identity: *ident}
		if stats, ok := s.remote.FetchStats(ctx, ident.RemoteID); ok {
			stats.QuotaLimited = ident.QuotaLimited()
			res.stats = stats
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*fetchResult), nil
	}
}

func (s *Service) entry(actorID model.ActorID) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[actorID]
}

func (s *Service) install(actorID model.ActorID, ident model.Identity, stats *model.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[actorID]; ok {
		s.replaceLocked(e, ident, stats)
		return
	}
	s.entries[actorID] = &entry{actorID: actorID, identity: ident, stats: stats}
	s.byName[model.NameKey(ident.Name)] = actorID
}

// replaceLocked must be called with s.mu held
func (s *Service) replaceLocked(e *entry, ident model.Identity, stats *model.Stats) {
	e.dataMu.Lock()
	oldKey := model.NameKey(e.identity.Name)
	e.identity = ident
	if stats != nil {
		e.stats = stats
	}
	e.dataMu.Unlock()

	if s.byName[oldKey] == e.actorID {
		delete(s.byName, oldKey)
	}
	s.byName[model.NameKey(ident.Name)] = e.actorID
}

func (s *Service) writeThrough(ctx context.Context, id model.RemoteID, op model.Mutation) bool {
	switch op := op.(type) {
	case model.SetTrustLevel:
		return s.remote.SetTrustLevel(ctx, id, op.Level)
	case model.SetBanned:
		if op.Banned {
			return s.remote.SetBan(ctx, id, op.Reason, op.DurationDays)
		}
		return s.remote.ClearBan(ctx, id)
	case model.AdjustReputation:
		return s.remote.UpdateReputation(ctx, id, op.Delta, op.Reason)
	case model.SetMinutesPlayed:
		return s.remote.UpdatePlaytime(ctx, id, op.Minutes)
	default:
		s.logger.Error("unsupported mutation", slog.String("type", fmt.Sprintf("%T", op)))
		return false
	}
}

func (s *Service) apply(ident *model.Identity, stats *model.Stats, op model.Mutation) {
	switch op := op.(type) {
	case model.SetTrustLevel:
		ident.TrustLevel = op.Level
		if stats != nil {
			stats.QuotaLimited = ident.QuotaLimited()
		}
	case model.SetBanned:
		ident.Banned = op.Banned
		ident.BanReason = ""
		ident.BanUntil = nil
		if op.Banned {
			ident.BanReason = op.Reason
			if op.DurationDays > 0 {
				until := s.clock.Now().Add(time.Duration(op.DurationDays) * 24 * time.Hour)
				ident.BanUntil = &until
			}
		}
	case model.AdjustReputation:
		if stats != nil {
			stats.Reputation += op.Delta
		}
	case model.SetMinutesPlayed:
		if stats != nil {
			stats.MinutesPlayed = op.Minutes
		}
	}
}
