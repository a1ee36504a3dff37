package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when another action is still in flight. Callers
	// drop the request silently.
	ErrBusy = errors.New("another action is in progress")

	ErrImageTooLarge = errors.New("image too large")
	ErrNotAnImage    = errors.New("not an image")
	ErrEmptyText     = errors.New("empty message")
)

// ValidationError rejects user input before any state is touched.
type ValidationError struct {
	Err    error
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("validation: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the notification shown to the user.
func (e *ValidationError) UserMessage() string {
	return e.Reason
}

func newValidationError(err error, reason string) *ValidationError {
	return &ValidationError{Err: err, Reason: reason}
}

// UserMessage extracts the user-facing text of a validation error, or returns
// false for any other error.
func UserMessage(err error) (string, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.UserMessage(), true
	}
	return "", false
}
