package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	lastGrants map[model.RemoteID]time.Time
	pending    map[model.RemoteID]int
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		lastGrants: make(map[model.RemoteID]time.Time),
		pending:    make(map[model.RemoteID]int),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Cooldown operations

func (s *Storage) GetLastGrant(ctx context.Context, id model.RemoteID) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.lastGrants[id]
	return at, ok, nil
}

// SetLastGrant records a grant time. The ttl is not enforced in memory; callers
// compare timestamps themselves.
func (s *Storage) SetLastGrant(ctx context.Context, id model.RemoteID, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.lastGrants[id]; ok && !at.After(prev) {
		return nil
	}
	s.lastGrants[id] = at
	return nil
}

// Pending playtime operations

func (s *Storage) GetPendingMinutes(ctx context.Context, id model.RemoteID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[id], nil
}

func (s *Storage) SavePendingMinutes(ctx context.Context, id model.RemoteID, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if minutes <= 0 {
		delete(s.pending, id)
		return nil
	}
	s.pending[id] = minutes
	return nil
}

func (s *Storage) ClearPendingMinutes(ctx context.Context, id model.RemoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	return nil
}
