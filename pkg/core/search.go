package core

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/semlite/semlite/internal/encoding"
)

// Search ranks the collection's entries by distance from the query vector.
// Filtering happens logically before ranking: the Where conjunction restricts
// the candidate set, and only the survivors are scored and sorted. Results
// come back ascending by distance, with insertion order (rowid) breaking
// ties so identical queries return identical rankings. An empty result is
// not an error.
func (s *SQLiteStore) Search(ctx context.Context, coll *Collection, query []float32, opts SearchOptions) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search", ErrStoreClosed)
	}

	if err := s.validateVector(coll, query); err != nil {
		return nil, wrapError("search", err)
	}
	if err := encoding.ValidateMetadata(opts.Where); err != nil {
		return nil, wrapError("search", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	candidates, err := s.fetchCandidates(ctx, coll, opts.Where)
	if err != nil {
		return nil, wrapError("search", err)
	}

	results := make([]ScoredRecord, 0, len(candidates))
	for _, rec := range candidates {
		results = append(results, ScoredRecord{
			Record:   rec,
			Distance: s.distance(query, rec.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// fetchCandidates loads the collection's entries and applies the metadata
// filter. The scan is linear; for the store sizes this library targets that
// beats maintaining a separate ANN structure, and the contract only promises
// the retrieval semantics, not the access path.
func (s *SQLiteStore) fetchCandidates(ctx context.Context, coll *Collection, where map[string]any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, id, vector, content, metadata FROM entries WHERE collection_id = ? ORDER BY rowid`,
		coll.ID)
	if err != nil {
		return nil, backendError(err)
	}
	defer rows.Close()

	var candidates []Record
	for rows.Next() {
		var (
			rec          Record
			vectorBytes  []byte
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&rec.seq, &rec.ID, &vectorBytes, &rec.Text, &metadataJSON); err != nil {
			return nil, backendError(err)
		}

		if rec.Metadata, err = encoding.DecodeMetadata(metadataJSON.String); err != nil {
			return nil, fmt.Errorf("entry %q: %w", rec.ID, err)
		}

		if !matchesWhere(rec.Metadata, where) {
			continue
		}

		if rec.Vector, err = encoding.DecodeVector(vectorBytes); err != nil {
			return nil, fmt.Errorf("entry %q: %w", rec.ID, err)
		}

		candidates = append(candidates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError(err)
	}

	return candidates, nil
}

// matchesWhere reports whether metadata satisfies every key/value pair in
// the filter. Numeric values compare as float64 on both sides, so a filter
// written with an int matches a stored JSON number.
func matchesWhere(metadata, where map[string]any) bool {
	for key, want := range where {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if encoding.NormalizeScalar(got) != encoding.NormalizeScalar(want) {
			return false
		}
	}
	return true
}
