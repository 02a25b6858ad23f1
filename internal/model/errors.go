package model

import "errors"

// Common errors used across the application
var (
	// Remote errors
	ErrNetwork      = errors.New("identity service unreachable")
	ErrRemoteServer = errors.New("identity service error")
	ErrRemoteClient = errors.New("identity service rejected request")

	// Cache errors
	ErrActorNotFound      = errors.New("actor not found")
	ErrWriteThroughFailed = errors.New("remote update failed")

	// Precondition errors
	ErrPrecondition      = errors.New("precondition failed")
	ErrOnCooldown        = preconditionError("reputation cooldown active")
	ErrSelfGrant         = preconditionError("cannot give reputation to yourself")
	ErrTargetUnknown     = preconditionError("target not found")
	ErrInsufficientTrust = preconditionError("trust level too low")
	ErrNotPermitted      = preconditionError("insufficient role")

	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("invalid or expired token")

	// Input errors
	ErrInvalidTrustLevel = errors.New("trust level must be between 0 and 3")
	ErrInvalidActorID    = errors.New("invalid actor id")

	// Access errors
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = accessError("identity service unavailable")
	ErrNotWhitelisted     = accessError("not on the access list")
	ErrBanned             = accessError("account banned")
)

// domainError lets a specific error also match its category via errors.Is
type domainError struct {
	msg      string
	category error
}

func (e *domainError) Error() string        { return e.msg }
func (e *domainError) Is(target error) bool { return target == e.category }

func preconditionError(msg string) error {
	return &domainError{msg: msg, category: ErrPrecondition}
}

func accessError(msg string) error {
	return &domainError{msg: msg, category: ErrAccessDenied}
}
