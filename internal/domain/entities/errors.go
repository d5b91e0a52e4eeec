package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType is the category of a domain error.
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeValidation         ErrorType = "validation_rejected"
	ErrorTypePartialApplication ErrorType = "partial_application"
	ErrorTypeStorage            ErrorType = "storage_io"
)

// BaseError is the common shape of domain errors.
type BaseError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a person record is absent from storage.
type NotFoundError struct {
	*BaseError
	PersonID string
}

// NewNotFound creates a NotFoundError for personID.
func NewNotFound(personID string) *NotFoundError {
	return &NotFoundError{
		BaseError: &BaseError{Type: ErrorTypeNotFound, Message: "person not found: " + personID},
		PersonID:  personID,
	}
}

// ValidationError is returned when an edit is rejected before any mutation.
type ValidationError struct {
	*BaseError
	Reason string
}

// NewValidation creates a ValidationError.
func NewValidation(format string, args ...any) *ValidationError {
	reason := fmt.Sprintf(format, args...)
	return &ValidationError{
		BaseError: &BaseError{Type: ErrorTypeValidation, Message: reason},
		Reason:    reason,
	}
}

// StorageError wraps a failure of the storage collaborator.
type StorageError struct {
	*BaseError
	Operation string
}

// NewStorage wraps err as a StorageError for the named operation.
func NewStorage(operation string, err error) *StorageError {
	return &StorageError{
		BaseError: &BaseError{Type: ErrorTypeStorage, Message: operation, Err: err},
		Operation: operation,
	}
}

// PartialApplicationError reports a multi-call edit where some calls were
// applied before a later one failed. The store may violate the mirror
// invariant until repaired.
type PartialApplicationError struct {
	*BaseError
	Operation string
	Applied   []string
	Failed    string
}

// NewPartialApplication creates a PartialApplicationError.
func NewPartialApplication(operation string, applied []string, failed string, err error) *PartialApplicationError {
	msg := fmt.Sprintf("%s applied %d step(s) [%s] before %s failed",
		operation, len(applied), strings.Join(applied, ", "), failed)
	return &PartialApplicationError{
		BaseError: &BaseError{Type: ErrorTypePartialApplication, Message: msg, Err: err},
		Operation: operation,
		Applied:   applied,
		Failed:    failed,
	}
}

// TypeOf returns the category of a domain error, or "" for other errors.
// A partial application wins over the error of its failing step.
func TypeOf(err error) ErrorType {
	switch {
	case IsPartial(err):
		return ErrorTypePartialApplication
	case IsNotFound(err):
		return ErrorTypeNotFound
	case IsValidation(err):
		return ErrorTypeValidation
	case IsStorage(err):
		return ErrorTypeStorage
	}
	return ""
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}

// IsPartial reports whether err is a PartialApplicationError.
func IsPartial(err error) bool {
	var e *PartialApplicationError
	return errors.As(err, &e)
}
