package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/semlite/semlite/internal/encoding"
)

// Put inserts a new record into the collection. Unlike an upsert, a live
// entry with the same id fails with ErrDuplicateID.
func (s *SQLiteStore) Put(ctx context.Context, coll *Collection, rec *Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("put", ErrStoreClosed)
	}

	if err := s.validateVector(coll, rec.Vector); err != nil {
		return wrapError("put", err)
	}

	exists, err := s.exists(ctx, coll.ID, rec.ID)
	if err != nil {
		return wrapError("put", backendError(err))
	}
	if exists {
		return wrapError("put", fmt.Errorf("%w: %q", ErrDuplicateID, rec.ID))
	}

	vectorBytes, err := encoding.EncodeVector(rec.Vector)
	if err != nil {
		return wrapError("put", err)
	}
	metadataJSON, err := encoding.EncodeMetadata(rec.Metadata)
	if err != nil {
		return wrapError("put", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (id, collection_id, vector, content, metadata) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, coll.ID, vectorBytes, rec.Text, metadataJSON)
	if err != nil {
		return wrapError("put", backendError(err))
	}

	return nil
}

// Get retrieves a record by id. No embedding computation is involved.
func (s *SQLiteStore) Get(ctx context.Context, coll *Collection, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get", ErrStoreClosed)
	}

	var (
		rec          Record
		vectorBytes  []byte
		metadataJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT rowid, id, vector, content, metadata FROM entries WHERE collection_id = ? AND id = ?`,
		coll.ID, id).Scan(&rec.seq, &rec.ID, &vectorBytes, &rec.Text, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, wrapError("get", fmt.Errorf("%w: %q", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrapError("get", backendError(err))
	}

	if rec.Vector, err = encoding.DecodeVector(vectorBytes); err != nil {
		return nil, wrapError("get", err)
	}
	if rec.Metadata, err = encoding.DecodeMetadata(metadataJSON.String); err != nil {
		return nil, wrapError("get", err)
	}

	return &rec, nil
}

// Update modifies an existing record in place. Nil arguments leave the
// corresponding column untouched; the entry rowid is preserved so insertion
// order survives updates. Fails with ErrNotFound if the id is absent.
func (s *SQLiteStore) Update(ctx context.Context, coll *Collection, id string, vector []float32, text *string, metadata map[string]any) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("update", ErrStoreClosed)
	}

	set := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if vector != nil {
		if err := s.validateVector(coll, vector); err != nil {
			return nil, wrapError("update", err)
		}
		vectorBytes, err := encoding.EncodeVector(vector)
		if err != nil {
			return nil, wrapError("update", err)
		}
		set = append(set, "vector = ?")
		args = append(args, vectorBytes)
	}
	if text != nil {
		set = append(set, "content = ?")
		args = append(args, *text)
	}
	if metadata != nil {
		metadataJSON, err := encoding.EncodeMetadata(metadata)
		if err != nil {
			return nil, wrapError("update", err)
		}
		set = append(set, "metadata = ?")
		args = append(args, metadataJSON)
	}

	if len(set) == 0 {
		return s.Get(ctx, coll, id)
	}

	set = append(set, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, coll.ID, id)

	query := "UPDATE entries SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE collection_id = ? AND id = ?"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("update", backendError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapError("update", backendError(err))
	}
	if affected == 0 {
		return nil, wrapError("update", fmt.Errorf("%w: %q", ErrNotFound, id))
	}

	return s.Get(ctx, coll, id)
}

// Delete removes a record and reports whether it existed. Deleting an absent
// id is not an error. The whole (vector, text, metadata) tuple goes at once.
func (s *SQLiteStore) Delete(ctx context.Context, coll *Collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, wrapError("delete", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE collection_id = ? AND id = ?`, coll.ID, id)
	if err != nil {
		return false, wrapError("delete", backendError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapError("delete", backendError(err))
	}

	return affected > 0, nil
}

// Count returns the number of entries in the collection.
func (s *SQLiteStore) Count(ctx context.Context, coll *Collection) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("count", ErrStoreClosed)
	}

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE collection_id = ?`, coll.ID).Scan(&count)
	if err != nil {
		return 0, wrapError("count", backendError(err))
	}
	return count, nil
}

func (s *SQLiteStore) exists(ctx context.Context, collID int64, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE collection_id = ? AND id = ?`, collID, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) validateVector(coll *Collection, vector []float32) error {
	if err := encoding.ValidateVector(vector); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}
	if coll.Dimensions > 0 && len(vector) != coll.Dimensions {
		return fmt.Errorf("%w: got %d dimensions, collection expects %d",
			ErrInvalidVector, len(vector), coll.Dimensions)
	}
	return nil
}
