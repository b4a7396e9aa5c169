// Package semlite is an embedded semantic text store. Entries are short
// texts with optional scalar metadata; retrieval is by id or by vector
// similarity to a query text, optionally restricted by equality metadata
// filters. Everything persists in a single SQLite file, one collection per
// DB handle.
package semlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/semlite/semlite/internal/encoding"
	"github.com/semlite/semlite/pkg/core"
	"github.com/semlite/semlite/pkg/embed"
)

// Entry is a stored text with its derived vector and metadata. The vector is
// always the embedding of Text under the collection's model; callers never
// supply it directly.
type Entry struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// Match is a query result: an entry plus its distance from the query
// embedding. Lower distance means more similar.
type Match struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// EntryUpdate describes a partial update. A nil Text leaves the text (and
// its embedding) untouched; a nil Metadata leaves the metadata untouched.
// At least one must be set.
type EntryUpdate struct {
	Text     *string
	Metadata map[string]any
}

// QueryOptions controls Query.
type QueryOptions struct {
	// TopK bounds the result size. Non-positive means 5.
	TopK int

	// Where restricts results to entries whose metadata matches every
	// key/value pair, applied before ranking.
	Where map[string]any
}

// Config configures a DB. All state is explicit; there are no process-wide
// defaults.
type Config struct {
	// Path is the SQLite database file location.
	Path string

	// Collection names the namespace this handle is bound to. An existing
	// name reopens it; a new name creates it at Open.
	Collection string

	// DistanceMetric selects the ranking metric: "cosine" (default),
	// "euclidean" or "dot".
	DistanceMetric string

	// Logger receives non-fatal events. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns a configuration for the given database path, bound
// to the "default" collection with cosine distance.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		Collection:     "default",
		DistanceMetric: core.MetricCosine,
	}
}

// Option configures a DB at Open.
type Option func(*DB)

// WithEmbedder binds the embedding model. Required: every DB needs one, and
// the collection is stamped with its Model() so vectors from different
// models never mix.
func WithEmbedder(e embed.Embedder) Option {
	return func(db *DB) {
		db.embedder = e
	}
}

// DB is a handle bound to exactly one collection for its lifetime. It is the
// only entry point applications use; id resolution, embedding and storage
// sit behind it.
type DB struct {
	store    *core.SQLiteStore
	coll     *core.Collection
	embedder embed.Embedder
}

// Open opens or creates the database file and binds the configured
// collection, creating it on first use. Reopening an existing collection
// with a different embedding model fails with ErrModelMismatch.
func Open(config Config, opts ...Option) (*DB, error) {
	db := &DB{}
	for _, opt := range opts {
		opt(db)
	}

	if db.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if config.Collection == "" {
		config.Collection = "default"
	}

	store, err := core.Open(context.Background(), core.Config{
		Path:   config.Path,
		Metric: config.DistanceMetric,
		Logger: config.Logger,
	})
	if err != nil {
		return nil, err
	}

	coll, err := store.EnsureCollection(context.Background(),
		config.Collection, db.embedder.Model(), db.embedder.Dim())
	if err != nil {
		store.Close()
		return nil, err
	}

	db.store = store
	db.coll = coll
	return db, nil
}

// Collection returns the name of the bound collection.
func (db *DB) Collection() string {
	return db.coll.Name
}

// Close closes the underlying store.
func (db *DB) Close() error {
	return db.store.Close()
}

// Insert stores a new entry and returns its id, derived from the text
// content. Metadata may be nil.
func (db *DB) Insert(ctx context.Context, text string, metadata map[string]any) (string, error) {
	return db.insert(ctx, "", text, metadata)
}

// InsertWithID stores a new entry under a caller-chosen id, used verbatim.
// A live entry with the same id fails with ErrDuplicateID.
func (db *DB) InsertWithID(ctx context.Context, id, text string, metadata map[string]any) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	return db.insert(ctx, id, text, metadata)
}

func (db *DB) insert(ctx context.Context, id, text string, metadata map[string]any) (string, error) {
	if err := validateText(text); err != nil {
		return "", err
	}
	if err := validateMetadata(metadata); err != nil {
		return "", err
	}

	vector, err := db.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embedding failed: %w", err)
	}

	if id == "" {
		if id, err = db.resolveID(ctx, text); err != nil {
			return "", err
		}
	}

	err = db.store.Put(ctx, db.coll, &core.Record{
		ID:       id,
		Vector:   vector,
		Text:     text,
		Metadata: metadata,
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// Get retrieves an entry by id. No embedding computation is involved.
func (db *DB) Get(ctx context.Context, id string) (*Entry, error) {
	rec, err := db.store.Get(ctx, db.coll, id)
	if err != nil {
		return nil, err
	}
	return entryFromRecord(rec), nil
}

// Update modifies an entry in place. Changing the text recomputes its
// embedding; a metadata-only update leaves the vector untouched. The id is
// never regenerated. Fails with ErrNotFound for absent ids and
// ErrInvalidInput when the update changes nothing.
func (db *DB) Update(ctx context.Context, id string, upd EntryUpdate) (*Entry, error) {
	if upd.Text == nil && upd.Metadata == nil {
		return nil, fmt.Errorf("%w: update requires text or metadata", ErrInvalidInput)
	}

	var vector []float32
	if upd.Text != nil {
		if err := validateText(*upd.Text); err != nil {
			return nil, err
		}
		var err error
		if vector, err = db.embedder.Embed(ctx, *upd.Text); err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
	}
	if err := validateMetadata(upd.Metadata); err != nil {
		return nil, err
	}

	rec, err := db.store.Update(ctx, db.coll, id, vector, upd.Text, upd.Metadata)
	if err != nil {
		return nil, err
	}
	return entryFromRecord(rec), nil
}

// Delete removes an entry and reports whether it existed. The text, vector
// and metadata go together; deleting an absent id returns false, not an
// error.
func (db *DB) Delete(ctx context.Context, id string) (bool, error) {
	return db.store.Delete(ctx, db.coll, id)
}

// Query embeds the text and returns the closest entries, ascending by
// distance, restricted by the Where conjunction before ranking. An empty
// result is not an error.
func (db *DB) Query(ctx context.Context, text string, opts QueryOptions) ([]Match, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	if err := validateMetadata(opts.Where); err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	vector, err := db.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	scored, err := db.store.Search(ctx, db.coll, vector, core.SearchOptions{
		TopK:  topK,
		Where: opts.Where,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(scored))
	for i, sr := range scored {
		matches[i] = Match{
			ID:       sr.ID,
			Text:     sr.Text,
			Metadata: sr.Metadata,
			Distance: sr.Distance,
		}
	}
	return matches, nil
}

// Count returns the number of entries in the bound collection.
func (db *DB) Count(ctx context.Context) (int64, error) {
	return db.store.Count(ctx, db.coll)
}

// Stats reports store-wide statistics.
func (db *DB) Stats(ctx context.Context) (core.StoreStats, error) {
	return db.store.Stats(ctx)
}

func entryFromRecord(rec *core.Record) *Entry {
	return &Entry{
		ID:       rec.ID,
		Text:     rec.Text,
		Metadata: rec.Metadata,
		Vector:   rec.Vector,
	}
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}
	return nil
}

func validateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}
	if err := encoding.ValidateMetadata(metadata); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
