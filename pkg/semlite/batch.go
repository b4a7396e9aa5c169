package semlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/semlite/semlite/pkg/core"
)

// ItemError reports a per-item batch failure by input position.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the underlying error as a string; error values have no
// useful default JSON form.
func (e ItemError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Index int    `json:"index"`
		Error string `json:"error"`
	}{Index: e.Index, Error: e.Err.Error()})
}

// BatchResult is the structured outcome of a BatchInsert. IDs has one slot
// per input text; failed slots hold the empty string and appear in Failed
// with their reason. Items that succeeded stay committed regardless of later
// failures.
type BatchResult struct {
	IDs    []string
	Failed []ItemError
}

// OK reports whether every item succeeded.
func (r BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// BatchInsert stores many entries in one call, amortizing embedding across a
// single batch request where possible. metadatas and ids may be nil; when
// given, their length must match texts (ErrLengthMismatch). The batch is not
// atomic: each item succeeds or fails on its own, and the result reports
// both sides.
func (db *DB) BatchInsert(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) (BatchResult, error) {
	if len(texts) == 0 {
		return BatchResult{}, fmt.Errorf("%w: texts cannot be empty", ErrInvalidInput)
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return BatchResult{}, fmt.Errorf("%w: %d metadatas for %d texts", ErrLengthMismatch, len(metadatas), len(texts))
	}
	if ids != nil && len(ids) != len(texts) {
		return BatchResult{}, fmt.Errorf("%w: %d ids for %d texts", ErrLengthMismatch, len(ids), len(texts))
	}

	result := BatchResult{IDs: make([]string, len(texts))}
	fail := func(i int, err error) {
		result.Failed = append(result.Failed, ItemError{Index: i, Err: err})
	}

	// Validate up front so one bad item never reaches the embedder as part
	// of a batch call.
	valid := make([]int, 0, len(texts))
	for i, text := range texts {
		if err := validateText(text); err != nil {
			fail(i, err)
			continue
		}
		if metadatas != nil {
			if err := validateMetadata(metadatas[i]); err != nil {
				fail(i, err)
				continue
			}
		}
		valid = append(valid, i)
	}

	vectors, embedErrs := db.embedBatch(ctx, texts, valid)

	for n, i := range valid {
		if embedErrs[n] != nil {
			fail(i, fmt.Errorf("embedding failed: %w", embedErrs[n]))
			continue
		}

		var id string
		var err error
		if ids != nil && ids[i] != "" {
			id = ids[i]
		} else if id, err = db.resolveID(ctx, texts[i]); err != nil {
			fail(i, err)
			continue
		}

		var metadata map[string]any
		if metadatas != nil {
			metadata = metadatas[i]
		}

		err = db.store.Put(ctx, db.coll, &core.Record{
			ID:       id,
			Vector:   vectors[n],
			Text:     texts[i],
			Metadata: metadata,
		})
		if err != nil {
			fail(i, err)
			continue
		}

		result.IDs[i] = id
	}

	return result, nil
}

// embedBatch embeds the texts at the given indexes, returning one vector and
// one error slot per index. It tries a single EmbedBatch call first and
// falls back to per-item Embed when that fails, so one poisoned item cannot
// sink its batch-mates.
func (db *DB) embedBatch(ctx context.Context, texts []string, indexes []int) ([][]float32, []error) {
	vectors := make([][]float32, len(indexes))
	errs := make([]error, len(indexes))
	if len(indexes) == 0 {
		return vectors, errs
	}

	batch := make([]string, len(indexes))
	for n, i := range indexes {
		batch[n] = texts[i]
	}

	if result, err := db.embedder.EmbedBatch(ctx, batch); err == nil && len(result) == len(indexes) {
		return result, errs
	}

	for n := range indexes {
		vectors[n], errs[n] = db.embedder.Embed(ctx, batch[n])
	}
	return vectors, errs
}
