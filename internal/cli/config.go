package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Key       string
	KeyFile   string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("GATECTL_SERVER", "http://localhost:8080"),
		Key:       os.Getenv("ACCESSGATE_BRIDGE_KEY"),
		KeyFile:   getEnvOrDefault("GATECTL_KEY_FILE", defaultKeyFile()),
		Output:    "text",
		Verbose:   false,
	}
}

// LoadKey loads the bridge key from file if not already set
func (c *Config) LoadKey() error {
	if c.Key != "" {
		return nil
	}

	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No key file is fine
		}
		return err
	}

	c.Key = strings.TrimSpace(string(data))
	return nil
}

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".accessgate/bridge_key"
	}
	return filepath.Join(home, ".accessgate", "bridge_key")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
