package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Grove error code.
type ErrorCode string

const (
	ErrInvalidRequest        ErrorCode = "INVALID_REQUEST"        // 400
	ErrNotFound              ErrorCode = "NOT_FOUND"              // 404
	ErrConflict              ErrorCode = "CONFLICT"               // 409
	ErrStaleVersion          ErrorCode = "STALE_VERSION"          // 409 (lost compare-and-set)
	ErrConsistency           ErrorCode = "CONSISTENCY"            // 500
	ErrInternal              ErrorCode = "INTERNAL"               // 500
	ErrDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE" // 503
)

// GroveError represents a structured error with code, status, and details.
type GroveError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *GroveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *GroveError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GroveError {
	return &GroveError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record of the given kind.
func NewNotFound(kind, id string) *GroveError {
	return &GroveError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *GroveError {
	return &GroveError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewStaleVersion creates a 409 error when a versioned write lost a race.
func NewStaleVersion(id string, expected int64) *GroveError {
	return &GroveError{
		Code:    ErrStaleVersion,
		Status:  409,
		Message: fmt.Sprintf("relationship %s changed concurrently (expected version %d)", id, expected),
		Details: map[string]any{"id": id, "expected_version": expected},
	}
}

// NewConsistency creates a 500 error for stored state that violates a derived invariant.
func NewConsistency(msg string, details map[string]any) *GroveError {
	return &GroveError{
		Code:    ErrConsistency,
		Status:  500,
		Message: msg,
		Details: details,
	}
}

// NewDependency creates a 503 error when a collaborator (store, model) fails
// or returns something unusable.
func NewDependency(dependency string, err error) *GroveError {
	msg := dependency + " unavailable"
	if err != nil {
		msg = fmt.Sprintf("%s unavailable: %v", dependency, err)
	}
	return &GroveError{
		Code:    ErrDependencyUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"dependency": dependency},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GroveError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GroveError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// WithDetail returns a copy of e with Details[key] set. e is not modified.
func (e *GroveError) WithDetail(key string, value any) *GroveError {
	c := *e
	c.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		c.Details[k] = v
	}
	c.Details[key] = value
	return &c
}

// As returns the GroveError in err's chain, if any.
func As(err error) (*GroveError, bool) {
	var gErr *GroveError
	if stderrors.As(err, &gErr) {
		return gErr, true
	}
	return nil, false
}

// Is checks if an error is (or wraps) a GroveError with the given code.
func Is(err error, code ErrorCode) bool {
	if gErr, ok := As(err); ok {
		return gErr.Code == code
	}
	return false
}
