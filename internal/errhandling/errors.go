// Package errhandling provides the error taxonomy shared by the store, the
// execution engine and the HTTP API.
//
// Errors are classified into categories so callers can decide how to react
// (fail a step, answer 404, swallow a persistence failure) without matching
// on message text.
package errhandling

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory represents the type/category of an error.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryValidation: malformed input, rejected before any work is done.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: the referenced pipeline, execution or artifact does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict: the request collides with in-flight work, e.g. a second
	// run of the same pipeline.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryConnector: a data source or sink failed (credentials, network,
	// upstream API, unsupported connector).
	CategoryConnector ErrorCategory = "connector"

	// CategoryTransform: a transformation stage failed.
	CategoryTransform ErrorCategory = "transform"

	// CategoryProcess: an external script could not be launched or exited badly.
	CategoryProcess ErrorCategory = "process"

	// CategoryPersistence: the backing store could not be read or written.
	CategoryPersistence ErrorCategory = "persistence"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ClassifiedError wraps an error with a category and the operation that failed.
type ClassifiedError struct {
	Category ErrorCategory
	// Op names the failing operation, e.g. "sheets.read".
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func newError(cat ErrorCategory, op, message string, err error) *ClassifiedError {
	return &ClassifiedError{Category: cat, Op: op, Message: message, Err: err}
}

// Validation creates a validation error.
func Validation(op, message string, err error) *ClassifiedError {
	return newError(CategoryValidation, op, message, err)
}

// NotFound creates a not-found error.
func NotFound(op, message string) *ClassifiedError {
	return newError(CategoryNotFound, op, message, nil)
}

// Conflict creates a conflict error.
func Conflict(op, message string, err error) *ClassifiedError {
	return newError(CategoryConflict, op, message, err)
}

// Connector creates a connector error.
func Connector(op, message string, err error) *ClassifiedError {
	return newError(CategoryConnector, op, message, err)
}

// Transform creates a transformation error.
func Transform(op, message string, err error) *ClassifiedError {
	return newError(CategoryTransform, op, message, err)
}

// Process creates an external-process error.
func Process(op, message string, err error) *ClassifiedError {
	return newError(CategoryProcess, op, message, err)
}

// Persistence creates a persistence error.
func Persistence(op, message string, err error) *ClassifiedError {
	return newError(CategoryPersistence, op, message, err)
}

// CategoryOf returns the category of the first ClassifiedError in err's chain.
// Context cancellation and deadline errors are reported as process errors
// when nothing more specific is attached.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryProcess
	}
	return CategoryUnknown
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsValidation reports whether err is classified as a validation error.
func IsValidation(err error) bool {
	return CategoryOf(err) == CategoryValidation
}

// IsConflict reports whether err is classified as a conflict.
func IsConflict(err error) bool {
	return CategoryOf(err) == CategoryConflict
}
