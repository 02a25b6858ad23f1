package remote

import "time"

// Config holds identity service connection and retry settings
type Config struct {
	// BaseURL is the identity service API root (e.g., https://id.example.com/api)
	BaseURL string
	// APIKey is sent as a bearer credential on every request
	APIKey string

	// MaxAttempts bounds the total number of tries for one request
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number to get the wait before the next try
	BaseDelay time.Duration
	// RequestTimeout bounds a single attempt
	RequestTimeout time.Duration

	UserAgent string
}

// DefaultConfig returns sensible defaults for the remote client
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		RequestTimeout: 10 * time.Second,
		UserAgent:      "accessgate/1.0",
	}
}
