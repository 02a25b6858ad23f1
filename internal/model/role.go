package model

import "strings"

// Role is the account role held by the identity service
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Capability is a permission granted by one or more roles
type Capability int

const (
	// CapModerate covers reputation adjustment and other moderator tools
	CapModerate Capability = iota
	// CapAdminister covers bans, trust changes and resyncs
	CapAdminister
)

var roleCapabilities = map[Role][]Capability{
	RoleUser:      nil,
	RoleModerator: {CapModerate},
	RoleAdmin:     {CapModerate, CapAdminister},
}

// ParseRole maps a remote role string onto a Role. The second return value is
// false when the string was not recognised, in which case RoleUser is returned.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleModerator, RoleAdmin:
		return r, true
	default:
		return RoleUser, false
	}
}

// Can reports whether the role grants the capability
func (r Role) Can(c Capability) bool {
	for _, have := range roleCapabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}
