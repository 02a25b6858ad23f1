package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// PendingPlaytimeTTL bounds how long unflushed minutes are kept for an
	// actor who never reconnects
	PendingPlaytimeTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:                "redis://localhost:6379",
		PoolSize:           10,
		MinIdleConns:       2,
		PendingPlaytimeTTL: 7 * 24 * time.Hour,
	}
}
