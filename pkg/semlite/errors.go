package semlite

import (
	"errors"

	"github.com/semlite/semlite/pkg/core"
)

// Errors returned by the facade. Store-level sentinels are re-exported so
// callers only import this package.
var (
	// ErrInvalidInput is returned for empty text, bad metadata values, or an
	// update that changes nothing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLengthMismatch is returned when batch metadatas or ids do not match
	// the number of texts.
	ErrLengthMismatch = errors.New("batch length mismatch")

	// ErrNoEmbedder is returned when Open is called without WithEmbedder.
	ErrNoEmbedder = errors.New("no embedder configured, use WithEmbedder")

	// ErrNotFound is returned by Get and Update for absent ids.
	ErrNotFound = core.ErrNotFound

	// ErrDuplicateID is returned when an insert collides with a live entry.
	ErrDuplicateID = core.ErrDuplicateID

	// ErrModelMismatch is returned when a collection created with one
	// embedding model is opened with another.
	ErrModelMismatch = core.ErrModelMismatch

	// ErrBackendUnavailable is returned when the persistent store cannot be
	// reached. It is surfaced immediately; retrying is the caller's call.
	ErrBackendUnavailable = core.ErrBackendUnavailable
)
