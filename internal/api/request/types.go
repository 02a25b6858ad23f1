package request

import "github.com/mcoot/accessgate/internal/remote"

// CheckConnectionRequest is the request body for a pre-login check
type CheckConnectionRequest struct {
	Name string `json:"name"`
}

// JoinRequest is the request body for an actor joining the world
type JoinRequest struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// LoginRequest is the request body for redeeming a login token
type LoginRequest struct {
	Token string `json:"token"`
}

// GrantRequest is the request body for giving reputation
type GrantRequest struct {
	Target string `json:"target"`
}

// AdjustReputationRequest is the request body for a moderator reputation change
type AdjustReputationRequest struct {
	Target string `json:"target"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// StatsRequest is the request body for a statistics report
type StatsRequest struct {
	Stats map[string]int `json:"stats"`
}

// BanRequest is the request body for banning an actor by name.
// By is the acting actor; empty means the operator.
type BanRequest struct {
	By     string `json:"by,omitempty"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Days   int    `json:"days,omitempty"`
}

// UnbanRequest is the request body for lifting a ban
type UnbanRequest struct {
	By   string `json:"by,omitempty"`
	Name string `json:"name"`
}

// TrustRequest is the request body for setting a trust level
type TrustRequest struct {
	By    string `json:"by,omitempty"`
	Name  string `json:"name"`
	Level *int   `json:"level"`
}

// SyncRequest is the optional request body for a forced refresh
type SyncRequest struct {
	By string `json:"by,omitempty"`
}

// ServerDataRequest is a host status snapshot
type ServerDataRequest = remote.ServerData
