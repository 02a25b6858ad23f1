package authgate

import "time"

// Config holds configuration for the authentication gate
type Config struct {
	// AuthTimeout is how long an actor may stay unauthenticated before being disconnected
	AuthTimeout time.Duration
	// ReminderInterval is the minimum gap between two login reminders to one actor
	ReminderInterval time.Duration
	// CheckTimeout bounds the background session check and session creation
	CheckTimeout time.Duration
}

// DefaultConfig returns default authentication gate configuration
func DefaultConfig() Config {
	return Config{
		AuthTimeout:      5 * time.Minute,
		ReminderInterval: 5 * time.Second,
		CheckTimeout:     30 * time.Second,
	}
}
