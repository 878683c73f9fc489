package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a SessionStore for a key with no value.
	ErrNotFound = errors.New("session not found")

	// ErrSessionCorrupt marks a stored session blob that cannot be used.
	ErrSessionCorrupt = errors.New("session corrupt")
)

// Collaborator names the external dependency behind a failed call.
type Collaborator string

const (
	CollaboratorCompletion Collaborator = "completion"
	CollaboratorStoreGet   Collaborator = "store_get"
	CollaboratorStoreSet   Collaborator = "store_set"
	CollaboratorSend       Collaborator = "send"
	CollaboratorOrderLog   Collaborator = "order_log"
)

// CallError wraps the failure of a call to an external collaborator.
type CallError struct {
	Collaborator Collaborator
	Err          error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Collaborator, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// NewCallError wraps err, returning nil when err is nil.
func NewCallError(c Collaborator, err error) error {
	if err == nil {
		return nil
	}
	return &CallError{Collaborator: c, Err: err}
}

// IsCallFailure reports whether err is a CallError for the collaborator.
func IsCallFailure(err error, c Collaborator) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Collaborator == c
}
