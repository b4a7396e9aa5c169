package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotFound is returned when no entry exists for the given id.
	ErrNotFound = errors.New("entry not found")

	// ErrDuplicateID is returned when Put collides with a live entry.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidVector is returned when vector data is invalid or its
	// dimensionality does not match the collection.
	ErrInvalidVector = errors.New("invalid vector data")

	// ErrStoreClosed is returned when using a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrModelMismatch is returned when a collection is opened with an
	// embedding model different from the one it was created with. Mixing
	// models would make stored distances meaningless.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrBackendUnavailable is returned when the underlying SQLite database
	// cannot be reached or its contents cannot be read. It is never retried
	// internally; retry policy belongs to the caller.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)

// StoreError wraps errors with operation context.
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("semlite: %v", e.Err)
	}
	return fmt.Sprintf("semlite: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// backendError marks a driver or IO failure as ErrBackendUnavailable while
// keeping the original message.
func backendError(err error) error {
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
