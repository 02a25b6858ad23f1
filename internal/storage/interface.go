package storage

import (
	"context"
	"time"

	"github.com/mcoot/accessgate/internal/model"
)

// Storage defines the interface for state that must outlive a single connection
type Storage interface {
	// Reputation cooldown operations. Timestamps only ever move forward; an
	// older timestamp passed to SetLastGrant is ignored.
	GetLastGrant(ctx context.Context, id model.RemoteID) (time.Time, bool, error)
	SetLastGrant(ctx context.Context, id model.RemoteID, at time.Time, ttl time.Duration) error

	// Pending playtime operations, for minutes not yet confirmed by the identity service
	GetPendingMinutes(ctx context.Context, id model.RemoteID) (int, error)
	SavePendingMinutes(ctx context.Context, id model.RemoteID, minutes int) error
	ClearPendingMinutes(ctx context.Context, id model.RemoteID) error
}
