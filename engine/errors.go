package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMutationInFlight is returned when a pessimistic mutation is
	// requested while another one is still awaiting its remote response.
	ErrMutationInFlight = errors.New("another submission is already in progress")

	// ErrDeleteAborted is returned when the delete confirmation gate
	// declines. No remote call is made.
	ErrDeleteAborted = errors.New("delete aborted")

	// ErrNotFound is returned for operations that reference an id the
	// local store does not know about.
	ErrNotFound = errors.New("post not found")
)

// ValidationError reports local rejection of user input. It never reaches
// the remote store; the failed input stays as the user left it so it can be
// corrected and resubmitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MutationFailed reports a remote rejection or network-level failure of a
// user-initiated change. By the time it is returned, the local store has
// been left (or restored to) its last consistent state.
type MutationFailed struct {
	Op  string
	Err error
}

func (e *MutationFailed) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
}

func (e *MutationFailed) Unwrap() error { return e.Err }

// LoadFailed reports a failure of the wholesale initial load. The store is
// left untouched; retry is a fresh user action.
type LoadFailed struct {
	Err error
}

func (e *LoadFailed) Error() string {
	return fmt.Sprintf("failed to load posts: %s", e.Err)
}

func (e *LoadFailed) Unwrap() error { return e.Err }
