package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy means a service call is already in flight for this session.
	ErrBusy = errors.New("a request is already in progress")

	// ErrEmptyAnswer means the submitted answer was empty or whitespace.
	ErrEmptyAnswer = errors.New("answer must not be empty")

	// ErrNotInProgress means the operation needs an in-progress session.
	ErrNotInProgress = errors.New("assessment is not in progress")

	// ErrAlreadyStarted means start was called on a session that is
	// already past NotStarted. Retake is the only way back.
	ErrAlreadyStarted = errors.New("assessment already started")
)

// RetryableError wraps an upstream failure that left the session state
// untouched. The caller may safely retry the same operation.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s failed (retryable): %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable upstream failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
