package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoCredentials      = errors.New("no bridge key configured")
)

// Service verifies the shared key the game host presents to the bridge.
// The key is only held as a bcrypt hash. Keys that verified recently are
// remembered by digest so that not every request pays for a bcrypt compare.
type Service struct {
	hash  []byte
	clock clock.Clock

	mu       sync.RWMutex
	verified map[string]time.Time // key digest -> expiry

	verifiedFor time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	// Key is the plaintext bridge key. It is hashed on startup.
	Key string
	// KeyHash is a bcrypt hash of the bridge key and takes precedence over Key
	KeyHash string
	// VerifiedFor is how long a verified key skips the bcrypt compare
	VerifiedFor time.Duration
	// Cost is the bcrypt cost used when hashing Key
	Cost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		VerifiedFor: 10 * time.Minute,
		Cost:        bcrypt.DefaultCost,
	}
}

// New creates a new auth service
func New(clock clock.Clock, cfg Config) (*Service, error) {
	if cfg.VerifiedFor == 0 {
		cfg.VerifiedFor = DefaultConfig().VerifiedFor
	}

	var hash []byte
	switch {
	case cfg.KeyHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.KeyHash)); err != nil {
			return nil, err
		}
		hash = []byte(cfg.KeyHash)
	case cfg.Key != "":
		h, err := HashKey(cfg.Key, cfg.Cost)
		if err != nil {
			return nil, err
		}
		hash = []byte(h)
	default:
		return nil, ErrNoCredentials
	}

	return &Service{
		hash:        hash,
		clock:       clock,
		verified:    make(map[string]time.Time),
		verifiedFor: cfg.VerifiedFor,
	}, nil
}

// HashKey returns a bcrypt hash suitable for the bridge_key_hash setting.
// A zero cost uses bcrypt.DefaultCost.
func HashKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks a presented bridge key
func (s *Service) Authenticate(key string) error {
	if key == "" {
		return ErrInvalidCredentials
	}

	digest := digestKey(key)
	now := s.clock.Now()

	s.mu.RLock()
	expiry, ok := s.verified[digest]
	s.mu.RUnlock()
	if ok && now.Before(expiry) {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(key)); err != nil {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	s.verified[digest] = now.Add(s.verifiedFor)
	s.mu.Unlock()
	return nil
}

// CleanExpired forgets verified keys whose window has passed (call periodically)
func (s *Service) CleanExpired() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for digest, expiry := range s.verified {
		if !now.Before(expiry) {
			delete(s.verified, digest)
		}
	}
}

func digestKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
