package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Task lifecycle errors. ErrNotOwner is returned for any mutation attempted
	// by a non-owner, before state preconditions are inspected, so callers
	// cannot probe task state through differentiated errors.
	ErrNotOwner        = New("NOT_OWNER", http.StatusForbidden, "only the task owner may perform this operation")
	ErrTaskNotFound    = New("TASK_NOT_FOUND", http.StatusNotFound, "task not found")
	ErrAlreadyArchived = New("ALREADY_ARCHIVED", http.StatusConflict, "task is already archived")
	ErrTaskDeleted     = New("TASK_DELETED", http.StatusConflict, "task is deleted")
	ErrNotArchived     = New("NOT_ARCHIVED", http.StatusConflict, "task is not archived")
	ErrAlreadyDeleted  = New("ALREADY_DELETED", http.StatusConflict, "task is already deleted")
	ErrNotDeleted      = New("NOT_DELETED", http.StatusConflict, "task is not deleted")
	ErrStudentRemoved  = New("STUDENT_REMOVED", http.StatusConflict, "student is already removed from the roster")
	ErrStudentActive   = New("STUDENT_ACTIVE", http.StatusConflict, "student is not removed from the roster")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
