package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the domain layer.
var (
	// ErrDuplicate reports an entity whose identity already exists, such
	// as recording the same (dedupe key, channel) delivery twice.
	ErrDuplicate = errors.New("entity already exists")

	// ErrValidationFailed is the common ancestor of all validation
	// errors; errors.Is(err, ErrValidationFailed) matches any
	// ValidationError.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError reports which field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap makes every field error match ErrValidationFailed.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
