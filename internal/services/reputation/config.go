package reputation

import "time"

// Config holds configuration for reputation exchange
type Config struct {
	// Enabled turns player-to-player grants on or off. Moderator adjustments are unaffected.
	Enabled bool
	// Cooldown is the minimum time between two grants by the same account
	Cooldown time.Duration
	// MinTrustLevel is the lowest trust level allowed to grant
	MinTrustLevel int
}

// DefaultConfig returns default reputation configuration
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Cooldown:      time.Hour,
		MinTrustLevel: 1,
	}
}
