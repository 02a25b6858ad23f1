package response

import (
	"errors"

	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/services/access"
	"github.com/mcoot/accessgate/internal/services/authgate"
)

// ConnectionDecision is the response for a pre-login check
type ConnectionDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ConnectionDecisionFromAccess converts an access decision
func ConnectionDecisionFromAccess(d access.Decision) ConnectionDecision {
	if d.Allowed || d.Reason == nil {
		return ConnectionDecision{Allowed: d.Allowed}
	}
	return ConnectionDecision{
		Allowed: false,
		Reason:  d.Reason.Error(),
		Code:    denialCode(d.Reason),
	}
}

func denialCode(err error) string {
	switch {
	case errors.Is(err, model.ErrBanned):
		return "banned"
	case errors.Is(err, model.ErrNotWhitelisted):
		return "not_whitelisted"
	case errors.Is(err, model.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "denied"
	}
}

// GateDecision is the response for an action check
type GateDecision struct {
	Allowed bool            `json:"allowed"`
	State   model.GateState `json:"state"`
}

// GateDecisionFromModel converts a gate decision
func GateDecisionFromModel(d authgate.Decision) GateDecision {
	return GateDecision{Allowed: d.Allowed, State: d.State}
}

// LoginResult is the response for a token redemption
type LoginResult struct {
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
}

// LoginResultFromModel converts a redemption result
func LoginResultFromModel(r authgate.RedeemResult) LoginResult {
	return LoginResult{Authenticated: r.Authenticated, Message: r.Message}
}

// Submitted is the response for fire-and-forget reports
type Submitted struct {
	Submitted bool `json:"submitted"`
}

// Health is the response for the health endpoint
type Health struct {
	Status      string `json:"status"`
	Remote      string `json:"remote"`
	Subscribers int    `json:"subscribers"`
}
