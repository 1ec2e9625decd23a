package shared

import (
	"errors"
	"fmt"
)

// DomainError is the base error type for all domain errors
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// Validation error

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Lookup errors

type NotFoundError struct {
	*DomainError
	Kind string
	Key  string
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{
		DomainError: NewDomainError(fmt.Sprintf("%s not found: %s", kind, key)),
		Kind:        kind,
		Key:         key,
	}
}

// DegradedError is implemented by errors that mean "temporarily unavailable, try later"
// as opposed to a permanent failure.
type DegradedError interface {
	error
	Degraded() bool
}

// IsDegraded reports whether any error in err's chain declares itself degraded
func IsDegraded(err error) bool {
	var d DegradedError
	return errors.As(err, &d) && d.Degraded()
}
