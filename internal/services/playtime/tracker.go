package playtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/storage"
)

// Cache is the subset of the identity cache used by the tracker
type Cache interface {
	Get(actorID model.ActorID) (*model.Identity, bool)
	GetStats(actorID model.ActorID) (*model.Stats, bool)
	RefreshStats(ctx context.Context, actorID model.ActorID) error
	Mutate(ctx context.Context, actorID model.ActorID, op model.Mutation) error
	RecordActivity(ctx context.Context, actorID model.ActorID, activity model.ActivityType, description string, metadata map[string]any) bool
}

const msgQuotaExceeded = "You have reached the %s playtime limit for unverified accounts. Verify your email on the website to keep playing."

// Tracker accumulates playtime per authenticated actor and flushes it to the
// identity service
type Tracker struct {
	cache   Cache
	storage storage.Storage
	host    host.Host
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[model.ActorID]*session
}

// session is one actor's accumulator. mu guards every field and is held
// across a flush so that the quota check and the flush see the same value.
type session struct {
	mu       sync.Mutex
	actorID  model.ActorID
	remoteID model.RemoteID
	joinedAt time.Time
	mark     time.Time // time up to which elapsed minutes have been accumulated
	pending  int       // accumulated minutes not yet confirmed remotely
	played   int       // minutes accumulated this session, flushed or not
	exceeded bool
	stopped  bool
}

// New creates a new playtime tracker
func New(cache Cache, store storage.Storage, h host.Host, clk clock.Clock, cfg Config, logger *slog.Logger) *Tracker {
	defaults := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = defaults.FlushThreshold
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaults.FlushTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	return &Tracker{
		cache:    cache,
		storage:  store,
		host:     h,
		clock:    clk,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "playtime")),
		sessions: make(map[model.ActorID]*session),
	}
}

// Start begins tracking an authenticated actor. Minutes left unconfirmed by
// an earlier session are folded back into the accumulator.
func (t *Tracker) Start(ctx context.Context, actorID model.ActorID) error {
	ident, ok := t.cache.Get(actorID)
	if !ok {
		return model.ErrActorNotFound
	}

	now := t.clock.Now()
	s := &session{
		actorID:  actorID,
		remoteID: ident.RemoteID,
		joinedAt: now,
		mark:     now,
	}

	carried, err := t.storage.GetPendingMinutes(ctx, ident.RemoteID)
	if err != nil {
		t.logger.Warn("could not load pending playtime",
			slog.String("actor_id", string(actorID)),
			slog.String("error", err.Error()))
	}
	s.pending = carried

	t.mu.Lock()
	t.sessions[actorID] = s
	t.mu.Unlock()

	t.logger.Info("tracking playtime",
		slog.String("actor_id", string(actorID)),
		slog.Int("carried_minutes", carried))
	return nil
}

// Tracked reports whether an actor is being tracked
func (t *Tracker) Tracked(actorID model.ActorID) bool {
	return t.session(actorID) != nil
}

// Run ticks on the configured interval until ctx is cancelled
func (t *Tracker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			t.Tick(ctx)
		}
	}
}

// Tick processes every tracked actor once: quota check, accumulation, and a
// flush when the threshold is reached. Actors are processed in parallel.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.RLock()
	sessions := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for _, s := range sessions {
		g.Go(func() error {
			t.tick(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
}

// Stop ends tracking for an actor and makes a final flush bounded by the
// flush timeout. Minutes that could not be flushed stay in storage for the
// next session.
func (t *Tracker) Stop(ctx context.Context, actorID model.ActorID) int {
	t.mu.Lock()
	s := t.sessions[actorID]
	delete(t.sessions, actorID)
	t.mu.Unlock()
	if s == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.FlushTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	t.ensureStats(ctx, s)
	t.accumulate(ctx, s)
	if s.pending > 0 {
		t.flush(ctx, s)
	}

	t.logger.Info("stopped tracking playtime",
		slog.String("actor_id", string(actorID)),
		slog.Int("session_minutes", s.played),
		slog.Int("unflushed_minutes", s.pending))
	return s.played
}

// TotalPlaytime returns the remote total plus everything played locally but
// not yet confirmed, including the current partial interval
func (t *Tracker) TotalPlaytime(actorID model.ActorID) int {
	remote := 0
	if stats, ok := t.cache.GetStats(actorID); ok {
		remote = stats.MinutesPlayed
	}

	s := t.session(actorID)
	if s == nil {
		return remote
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return remote + s.pending + wholeMinutes(t.clock.Now().Sub(s.mark))
}

// SessionPlaytime returns the minutes played since the actor started this session
func (t *Tracker) SessionPlaytime(actorID model.ActorID) int {
	s := t.session(actorID)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return wholeMinutes(t.clock.Now().Sub(s.joinedAt))
}

// RemainingQuota returns the minutes left before a quota-limited actor is
// disconnected, or -1 when no quota applies
func (t *Tracker) RemainingQuota(actorID model.ActorID) int {
	if !t.cfg.EnforceQuota || !t.quotaLimited(actorID) {
		return -1
	}
	return max(0, model.QuotaMinutes-t.TotalPlaytime(actorID))
}

func (t *Tracker) tick(ctx context.Context, s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.exceeded {
		t.disconnect(ctx, s)
		return
	}

	t.ensureStats(ctx, s)
	if t.overQuota(s) {
		t.disconnect(ctx, s)
		return
	}

	t.accumulate(ctx, s)
	if s.pending >= t.cfg.FlushThreshold {
		t.flush(ctx, s)
	}

	if t.overQuota(s) {
		t.disconnect(ctx, s)
	}
}

// ensureStats reloads stats the cache is missing, so that the quota check and
// the flush work from a known remote total. Caller holds s.mu.
func (t *Tracker) ensureStats(ctx context.Context, s *session) {
	if _, ok := t.cache.GetStats(s.actorID); ok {
		return
	}
	if err := t.cache.RefreshStats(ctx, s.actorID); err != nil {
		t.logger.Warn("stats still unavailable, counting local playtime only",
			slog.String("actor_id", string(s.actorID)),
			slog.String("error", err.Error()))
	}
}

// accumulate moves whole elapsed minutes into the accumulator, keeping the
// partial minute for the next pass. Caller holds s.mu.
func (t *Tracker) accumulate(ctx context.Context, s *session) {
	elapsed := wholeMinutes(t.clock.Now().Sub(s.mark))
	if elapsed <= 0 {
		return
	}
	s.mark = s.mark.Add(time.Duration(elapsed) * time.Minute)
	s.pending += elapsed
	s.played += elapsed

	if err := t.storage.SavePendingMinutes(ctx, s.remoteID, s.pending); err != nil {
		t.logger.Warn("could not persist pending playtime",
			slog.String("actor_id", string(s.actorID)),
			slog.String("error", err.Error()))
	}
}

// flush writes the new cumulative total through the identity cache. On
// failure the accumulator is left as is and retried on the next tick.
// Caller holds s.mu.
func (t *Tracker) flush(ctx context.Context, s *session) {
	stats, ok := t.cache.GetStats(s.actorID)
	if !ok {
		t.logger.Warn("no stats cached, deferring playtime flush", slog.String("actor_id", string(s.actorID)))
		return
	}

	flushed := s.pending
	total := stats.MinutesPlayed + flushed
	if err := t.cache.Mutate(ctx, s.actorID, model.SetMinutesPlayed{Minutes: total}); err != nil {
		t.logger.Warn("playtime flush failed, will retry",
			slog.String("actor_id", string(s.actorID)),
			slog.Int("pending_minutes", flushed),
			slog.String("error", err.Error()))
		return
	}

	s.pending = 0
	if err := t.storage.ClearPendingMinutes(ctx, s.remoteID); err != nil {
		t.logger.Warn("could not clear pending playtime",
			slog.String("actor_id", string(s.actorID)),
			slog.String("error", err.Error()))
	}

	t.cache.RecordActivity(ctx, s.actorID, model.ActivityPlaytimeUpdate, "Playtime updated", map[string]any{
		"session_minutes": flushed,
		"total_minutes":   total,
	})
	t.logger.Debug("flushed playtime",
		slog.String("actor_id", string(s.actorID)),
		slog.Int("total_minutes", total))
}

// overQuota uses the same accumulator as flush, so a stale remote total
// never lets an actor play past the ceiling. Without a remote total only
// local minutes count. Caller holds s.mu.
func (t *Tracker) overQuota(s *session) bool {
	if !t.cfg.EnforceQuota || !t.quotaLimited(s.actorID) {
		return false
	}
	return t.knownTotal(s) >= model.QuotaMinutes
}

// disconnect asks the host to drop an actor over quota. The directive is
// repeated on every tick until the actor stops being tracked.
func (t *Tracker) disconnect(ctx context.Context, s *session) {
	total := t.knownTotal(s)
	t.host.Disconnect(s.actorID, model.ReasonQuotaExceeded, fmt.Sprintf(msgQuotaExceeded, FormatDuration(model.QuotaMinutes)))
	if s.exceeded {
		t.logger.Debug("repeating quota disconnect", slog.String("actor_id", string(s.actorID)))
		return
	}
	s.exceeded = true

	t.logger.Info("disconnecting actor over playtime quota",
		slog.String("actor_id", string(s.actorID)),
		slog.Int("total_minutes", total))
	t.cache.RecordActivity(ctx, s.actorID, model.ActivityTimeLimitExceeded, "Disconnected for exceeding the playtime limit", map[string]any{
		"total_minutes": total,
		"limit_minutes": model.QuotaMinutes,
	})
}

// knownTotal is the remote total, when cached, plus unflushed minutes.
// Caller holds s.mu.
func (t *Tracker) knownTotal(s *session) int {
	total := s.pending
	if stats, ok := t.cache.GetStats(s.actorID); ok {
		total += stats.MinutesPlayed
	}
	return total
}

func (t *Tracker) quotaLimited(actorID model.ActorID) bool {
	if stats, ok := t.cache.GetStats(actorID); ok {
		return stats.QuotaLimited
	}
	if ident, ok := t.cache.Get(actorID); ok {
		return ident.QuotaLimited()
	}
	return false
}

func (t *Tracker) session(actorID model.ActorID) *session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessions[actorID]
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
