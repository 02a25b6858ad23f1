package playtime

import "time"

// Config holds configuration for the playtime tracker
type Config struct {
	// TickInterval is how often accumulated time is recomputed
	TickInterval time.Duration
	// FlushThreshold is the unflushed minute count that triggers a remote update
	FlushThreshold int
	// FlushTimeout bounds the final flush when an actor leaves
	FlushTimeout time.Duration
	// EnforceQuota disconnects quota-limited actors at model.QuotaMinutes
	EnforceQuota bool
	// Workers caps how many actors a tick processes concurrently
	Workers int
}

// DefaultConfig returns default playtime configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:   5 * time.Minute,
		FlushThreshold: 5,
		FlushTimeout:   10 * time.Second,
		EnforceQuota:   true,
		Workers:        8,
	}
}
