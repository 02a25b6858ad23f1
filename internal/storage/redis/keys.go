package redis

import (
	"fmt"

	"github.com/mcoot/accessgate/internal/model"
)

// Key prefix for all access gate data
const keyPrefix = "accessgate"

// lastGrantKey returns the Redis key holding a user's last reputation grant (unix millis)
func lastGrantKey(id model.RemoteID) string {
	return fmt.Sprintf("%s:reputation:last_grant:%d", keyPrefix, id)
}

// pendingMinutesKey returns the Redis key for a user's unflushed playtime
func pendingMinutesKey(id model.RemoteID) string {
	return fmt.Sprintf("%s:playtime:pending:%d", keyPrefix, id)
}
