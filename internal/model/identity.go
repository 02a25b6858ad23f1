package model

import (
	"strings"
	"time"
)

// ActorID identifies a connected actor on the host. It is the host's stable
// client identity (a UUID) and is independent of the display name.
type ActorID string

// RemoteID is the identity service's numeric user id
type RemoteID int64

// Trust levels assigned by the identity service
const (
	TrustNewcomer = 0
	TrustMember   = 1
	TrustTrusted  = 2
	TrustVeteran  = 3
)

// QuotaMinutes is the playtime ceiling for quota-limited actors
const QuotaMinutes = 600

// Identity is the locally cached view of a remote user
type Identity struct {
	RemoteID      RemoteID   `json:"remote_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Role          Role       `json:"role"`
	TrustLevel    int        `json:"trust_level"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"email_verified"`
	Banned        bool       `json:"banned"`
	BanReason     string     `json:"ban_reason,omitempty"`
	BanUntil      *time.Time `json:"ban_until,omitempty"` // nil for permanent bans or when not banned
}

// HasServerAccess reports whether the account may be on the server at all
func (i *Identity) HasServerAccess() bool {
	return i.Active && !i.Banned
}

// QuotaLimited reports whether playtime is capped at QuotaMinutes
func (i *Identity) QuotaLimited() bool {
	return i.TrustLevel == TrustNewcomer && !i.EmailVerified
}

// NameKey normalises a display name for case-insensitive lookups
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Stats holds the remote profile counters for an identity
type Stats struct {
	RemoteID      RemoteID `json:"remote_id"`
	MinutesPlayed int      `json:"minutes_played"`
	QuotaLimited  bool     `json:"quota_limited"`
	Reputation    int      `json:"reputation"`
	LoginCount    int      `json:"login_count"`
	WarningCount  int      `json:"warning_count"`
}

// SessionClaims is what the identity service returns for a verified token or session
type SessionClaims struct {
	Valid      bool
	RemoteID   RemoteID
	Name       string
	Role       Role
	TrustLevel int
	Message    string
}

// Origin describes where a connection came from
type Origin struct {
	Address   string
	UserAgent string
}
