package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidActorID     = "INVALID_ACTOR_ID"
	CodeInvalidTrustLevel  = "INVALID_TRUST_LEVEL"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeActorNotFound      = "ACTOR_NOT_FOUND"
	CodeTargetUnknown      = "TARGET_UNKNOWN"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeOnCooldown         = "ON_COOLDOWN"
	CodeSelfGrant          = "SELF_GRANT"
	CodeInsufficientTrust  = "INSUFFICIENT_TRUST"
	CodeNotPermitted       = "NOT_PERMITTED"
	CodeBanned             = "BANNED"
	CodeRemoteUnavailable  = "REMOTE_UNAVAILABLE"
	CodeRemoteRejected     = "REMOTE_REJECTED"
	CodeWriteThroughFailed = "WRITE_THROUGH_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors. Specific errors come before their categories.
	switch {
	case errors.Is(err, model.ErrInvalidActorID):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidActorID, "Actor id must be a UUID"}}
	case errors.Is(err, model.ErrInvalidTrustLevel):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidTrustLevel, err.Error()}}
	case errors.Is(err, model.ErrActorNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeActorNotFound, "Actor not found"}}
	case errors.Is(err, model.ErrTargetUnknown):
		return &httpError{http.StatusNotFound, APIError{CodeTargetUnknown, err.Error()}}
	case errors.Is(err, model.ErrNotAuthenticated):
		return &httpError{http.StatusForbidden, APIError{CodeNotAuthenticated, "Actor is not authenticated"}}
	case errors.Is(err, model.ErrInvalidToken):
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeInvalidToken, err.Error()}}
	case errors.Is(err, model.ErrOnCooldown):
		return &httpError{http.StatusTooManyRequests, APIError{CodeOnCooldown, err.Error()}}
	case errors.Is(err, model.ErrSelfGrant):
		return &httpError{http.StatusConflict, APIError{CodeSelfGrant, err.Error()}}
	case errors.Is(err, model.ErrInsufficientTrust):
		return &httpError{http.StatusForbidden, APIError{CodeInsufficientTrust, err.Error()}}
	case errors.Is(err, model.ErrNotPermitted):
		return &httpError{http.StatusForbidden, APIError{CodeNotPermitted, err.Error()}}
	case errors.Is(err, model.ErrBanned):
		return &httpError{http.StatusForbidden, APIError{CodeBanned, "Account is banned"}}
	case errors.Is(err, model.ErrWriteThroughFailed):
		return &httpError{http.StatusBadGateway, APIError{CodeWriteThroughFailed, "Identity service did not accept the update"}}
	case errors.Is(err, model.ErrNetwork), errors.Is(err, model.ErrRemoteServer):
		return &httpError{http.StatusBadGateway, APIError{CodeRemoteUnavailable, "Identity service unavailable"}}
	case errors.Is(err, model.ErrRemoteClient):
		return &httpError{http.StatusBadGateway, APIError{CodeRemoteRejected, "Identity service rejected the request"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid bridge key"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
