// Package config loads sidecar configuration.
//
// Configuration comes from an optional YAML file, then environment variables
// override individual values. ${VAR} and ${VAR:-default} references inside
// string values are expanded from the environment so secrets need not be
// written into the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config is the complete sidecar configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Remote     RemoteConfig     `yaml:"remote"`
	Storage    StorageConfig    `yaml:"storage"`
	Features   FeaturesConfig   `yaml:"features"`
	Auth       AuthConfig       `yaml:"auth"`
	Playtime   PlaytimeConfig   `yaml:"playtime"`
	Reputation ReputationConfig `yaml:"reputation"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP bridge
type ServerConfig struct {
	Port int `yaml:"port"`

	// BridgeKey is the shared secret the host presents. BridgeKeyHash may hold
	// a bcrypt hash of it instead; when both are set the hash wins.
	BridgeKey     string `yaml:"bridge_key"`
	BridgeKeyHash string `yaml:"bridge_key_hash"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RemoteConfig configures the identity service client
type RemoteConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig selects where cooldowns and pending playtime live
type StorageConfig struct {
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
}

// FeaturesConfig toggles optional behavior
type FeaturesConfig struct {
	Whitelist  bool `yaml:"enable_whitelist"`
	TimeLimit  bool `yaml:"enable_time_limit"`
	Reputation bool `yaml:"enable_reputation"`
}

// AuthConfig configures the authentication gate
type AuthConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// PlaytimeConfig configures playtime accounting
type PlaytimeConfig struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	FlushThreshold int           `yaml:"flush_threshold"`
}

// ReputationConfig configures reputation grants
type ReputationConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Remote: RemoteConfig{
			MaxAttempts:    3,
			BaseDelay:      time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageMemory,
		},
		Features: FeaturesConfig{
			Whitelist:  true,
			TimeLimit:  true,
			Reputation: true,
		},
		Auth: AuthConfig{
			Timeout:          5 * time.Minute,
			ReminderInterval: 5 * time.Second,
			HandshakeTimeout: 15 * time.Second,
		},
		Playtime: PlaytimeConfig{
			TickInterval:   5 * time.Minute,
			FlushThreshold: 5,
		},
		Reputation: ReputationConfig{
			Cooldown: time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, if any, and applies environment
// overrides. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.expandVariables()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ACCESSGATE_API_URL":         &c.Remote.URL,
		"ACCESSGATE_API_KEY":         &c.Remote.APIKey,
		"ACCESSGATE_BRIDGE_KEY":      &c.Server.BridgeKey,
		"ACCESSGATE_BRIDGE_KEY_HASH": &c.Server.BridgeKeyHash,
		"ACCESSGATE_STORAGE":         &c.Storage.Type,
		"REDIS_URL":                  &c.Storage.RedisURL,
		"ACCESSGATE_LOG_LEVEL":       &c.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("ACCESSGATE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESSGATE_PORT: %w", err)
		}
		c.Server.Port = port
	}

	bools := map[string]*bool{
		"ACCESSGATE_ENABLE_WHITELIST":  &c.Features.Whitelist,
		"ACCESSGATE_ENABLE_TIME_LIMIT": &c.Features.TimeLimit,
		"ACCESSGATE_ENABLE_REPUTATION": &c.Features.Reputation,
	}
	for name, dst := range bools {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	for _, s := range []*string{
		&c.Remote.URL,
		&c.Remote.APIKey,
		&c.Server.BridgeKey,
		&c.Server.BridgeKeyHash,
		&c.Storage.RedisURL,
	} {
		*s = expandVars(*s)
	}
}

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if c.Remote.URL == "" {
		errs = append(errs, errors.New("remote.url is required"))
	} else if !strings.HasPrefix(c.Remote.URL, "http://") && !strings.HasPrefix(c.Remote.URL, "https://") {
		errs = append(errs, fmt.Errorf("remote.url must be an http(s) URL: %q", c.Remote.URL))
	}
	if c.Remote.APIKey == "" {
		errs = append(errs, errors.New("remote.api_key is required"))
	}
	if c.Remote.MaxAttempts < 1 {
		errs = append(errs, errors.New("remote.max_attempts must be at least 1"))
	}
	if c.Server.BridgeKey == "" && c.Server.BridgeKeyHash == "" {
		errs = append(errs, errors.New("server.bridge_key or server.bridge_key_hash is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for redis storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %q", c.Storage.Type))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
