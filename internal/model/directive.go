package model

import "time"

// DirectiveType identifies an instruction sent to the host
type DirectiveType string

const (
	DirectiveDisconnect DirectiveType = "disconnect"
	DirectiveMessage    DirectiveType = "message"
)

// Directive is an asynchronous instruction for the host about one actor
type Directive struct {
	Type      DirectiveType `json:"type"`
	ActorID   ActorID       `json:"actor_id"`
	Text      string        `json:"text"`
	Reason    string        `json:"reason,omitempty"` // machine-readable, disconnects only
	Timestamp time.Time     `json:"timestamp"`
}

// Disconnect reasons
const (
	ReasonExpired       = "auth_expired"
	ReasonQuotaExceeded = "quota_exceeded"
	ReasonBanned        = "banned"
)
