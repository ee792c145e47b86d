// Package shared holds the error vocabulary common to every domain
// package. It depends on nothing outside the standard library so the
// domain layer stays import-free.
package shared

import (
	"errors"
	"fmt"
)

// Sentinel categories. Handlers branch on these with errors.Is to pick
// a status code, so every error the application layer returns should
// carry exactly one of them as its kind.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError carries a sentinel category together with where the
// failure happened. The category drives errors.Is matching; the rest is
// for logs.
type DomainError struct {
	Domain  string // owning domain, e.g. "student", "analysis"
	Op      string // failing operation, e.g. "Import", "Aggregate"
	Kind    error  // one of the sentinel categories above
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap exposes the cause when there is one, the category otherwise,
// so errors.Is always reaches the sentinel.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the category and the wrapped cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError builds an error with a category but no cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches domain context and a category to an existing error.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Well-known instances returned directly by the application layer.
var (
	// ErrInvalidStudentCode - the student code failed format validation.
	ErrInvalidStudentCode = NewDomainError("student", "Validate", ErrValidation, "invalid student code")

	// ErrRosterUnavailable - the roster source could not be reached.
	ErrRosterUnavailable = NewDomainError("roster", "Request", ErrServiceUnavailable, "roster source is unavailable")
)

// IsNotFound reports whether err is categorised as a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is categorised as rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
