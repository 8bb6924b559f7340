package errors

import (
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeVector represents vector index errors
	ErrorTypeVector ErrorType = "vector"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeModel represents embedding/reranking model backend errors
	ErrorTypeModel ErrorType = "model"
	// ErrorTypeInput represents invalid caller input
	ErrorTypeInput ErrorType = "input"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type    ErrorType
	Message string
	Err     error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind returns the error category. It is promoted through embedding so the
// typed errors below all report their category.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Vector Errors

// ErrDimensionMismatch is returned when a vector's length does not match the
// index's configured dimension. The offending call has no partial effect.
type ErrDimensionMismatch struct {
	*BaseError
	Want int
	Got  int
}

func NewDimensionMismatch(want, got int) *ErrDimensionMismatch {
	return &ErrDimensionMismatch{
		BaseError: NewBaseError(ErrorTypeVector, fmt.Sprintf("dimension mismatch: want %d, got %d", want, got), nil),
		Want:      want,
		Got:       got,
	}
}

// Model Errors

// ErrModelUnavailable is returned when an embedding or reranking backend
// cannot be reached or loaded. It is surfaced to the caller, never retried here.
type ErrModelUnavailable struct {
	*BaseError
	Backend string
}

func NewModelUnavailable(backend string, err error) *ErrModelUnavailable {
	return &ErrModelUnavailable{
		BaseError: NewBaseError(ErrorTypeModel, fmt.Sprintf("model backend unavailable: %s", backend), err),
		Backend:   backend,
	}
}

// Input Errors

// ErrInvalidInput is returned for caller mistakes such as a non-positive
// dimension or an empty query.
type ErrInvalidInput struct {
	*BaseError
	Field  string
	Reason string
}

func NewInvalidInput(field, reason string) *ErrInvalidInput {
	return &ErrInvalidInput{
		BaseError: NewBaseError(ErrorTypeInput, fmt.Sprintf("invalid input: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Graph Errors

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph query failed: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	if kinder, ok := err.(interface{ Kind() ErrorType }); ok {
		return kinder.Kind() == errType
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(unwrapper.Unwrap(), errType)
	}
	return false
}

// IsDimensionMismatch checks whether an error is a dimension mismatch
func IsDimensionMismatch(err error) bool {
	for err != nil {
		if _, ok := err.(*ErrDimensionMismatch); ok {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// IsInvalidInput checks whether an error is an invalid-input error
func IsInvalidInput(err error) bool {
	for err != nil {
		if _, ok := err.(*ErrInvalidInput); ok {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
