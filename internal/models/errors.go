// internal/models/errors.go
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGameType is returned when a game type is not one of the enumerated GameTypes.
	ErrInvalidGameType = errors.New("invalid game type")
	// ErrInvalidStatus is returned when a lobby status is neither open nor closed.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrDuplicatePlayer is returned when a roster lists the same player twice.
	ErrDuplicatePlayer = errors.New("player appears more than once")
	// ErrMissingField is returned when a required identifier is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidMinPlayers is returned for a negative player threshold.
	ErrInvalidMinPlayers = errors.New("min players must not be negative")
)

// ValidationError reports malformed input detected before any write happens.
// Field names the offending attribute, Err is one of the sentinel errors above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// UpstreamError wraps a failure from an external service (chat API, island
// directory). It is never retried inside the core; the caller decides.
type UpstreamError struct {
	Service    string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
