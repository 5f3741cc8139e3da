package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateInstance is returned when an id is live or being created.
	ErrDuplicateInstance = errors.New("instance already exists")

	// ErrInstanceNotFound is returned for ids absent from the registry.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrCreationExhausted is wrapped by CreationError once every attempt failed.
	ErrCreationExhausted = errors.New("instance creation attempts exhausted")

	// ErrNavigationRejected is returned when the navigation guard refuses a URL.
	ErrNavigationRejected = errors.New("navigation rejected")

	// ErrCapacityReached is returned when the instance limit is reached.
	ErrCapacityReached = errors.New("maximum number of instances reached")

	// ErrInvalidID is returned for empty instance ids.
	ErrInvalidID = errors.New("invalid instance id")
)

// CreationError reports a creation that failed after every attempt.
type CreationError struct {
	ID       string
	Attempts int
	Last     error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create instance %s: %d attempts failed: %v", e.ID, e.Attempts, e.Last)
}

// Unwrap exposes both ErrCreationExhausted and the last attempt's error.
func (e *CreationError) Unwrap() []error {
	return []error{ErrCreationExhausted, e.Last}
}
