// Package embed defines the text-to-vector interface used by semlite and
// ships two implementations: a deterministic local hash embedder and a client
// for OpenAI-compatible embedding APIs.
package embed

import (
	"context"
	"errors"
	"strings"
)

// Embedder converts text into fixed-dimensionality vectors. Implementations
// must be deterministic for a given model: the same text always produces the
// same vector. Embed is a pure function of its input, so a single Embedder may
// be shared across goroutines without locking.
type Embedder interface {
	// Embed converts a single text into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts into vectors, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dim returns the dimension of vectors produced by this embedder.
	Dim() int

	// Model returns a stable identifier for the underlying model. Collections
	// are stamped with it so embeddings from different models never mix.
	Model() string
}

// Errors related to embedder operations.
var (
	// ErrEmptyText is returned when an empty or whitespace-only text is given.
	ErrEmptyText = errors.New("embed: empty text")

	// ErrEmbeddingFailed is returned when the provider fails to produce a vector.
	ErrEmbeddingFailed = errors.New("embed: embedding failed")
)

// validateText rejects empty and whitespace-only input.
func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}
