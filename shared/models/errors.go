package models

import "fmt"

// NotFoundError indicates that a named user does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// InvalidRequestError indicates a request that cannot be applied, such as
// sharing an account the grantor does not own.
type InvalidRequestError struct {
	Message string
}

func (e *InvalidRequestError) Error() string { return e.Message }

// ConflictError indicates that concurrent writers kept winning the race for a
// record.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidRequest creates an InvalidRequestError with a formatted message.
func ErrInvalidRequest(format string, args ...any) *InvalidRequestError {
	return &InvalidRequestError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
