package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrDatabaseExists = errors.New("database already exists")
	ErrEmptyResponse  = errors.New("empty LLM response")
	ErrBadResponse    = errors.New("malformed LLM response")
	ErrInvalidParams  = errors.New("invalid parameters")
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidMapping = errors.New("invalid column mapping")
	ErrInvalidWeights = errors.New("invalid weights")
	ErrUnknownConcept = errors.New("unknown concept")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
