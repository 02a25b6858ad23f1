package remote

import (
	"fmt"

	"github.com/mcoot/accessgate/internal/model"
)

// StatusError is returned when the identity service answers with a non-2xx status.
// It matches model.ErrRemoteServer for 5xx and model.ErrRemoteClient otherwise.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("identity service returned HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 500 {
		return model.ErrRemoteServer
	}
	return model.ErrRemoteClient
}

// Retryable reports whether the status falls under the retry policy
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}
