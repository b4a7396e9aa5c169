// Package core implements the persistent entry store on SQLite. It owns the
// on-disk schema and the filter-then-rank search contract; it knows nothing
// about embedding models beyond the identifier each collection is stamped
// with.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config configures a SQLiteStore.
type Config struct {
	// Path is the database file location.
	Path string

	// Metric names the distance function used to rank search results.
	// Empty means cosine.
	Metric string

	// MaxConns caps the connection pool. Zero means a sensible default.
	MaxConns int

	// Logger receives non-fatal events. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns a configuration for the given database path.
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		Metric:   MetricCosine,
		MaxConns: 10,
	}
}

// Collection is a named namespace of entries, stamped with the embedding
// model and dimensionality it was created with.
type Collection struct {
	ID         int64
	Name       string
	Model      string
	Dimensions int
	CreatedAt  string
}

// Record is the stored (id, vector, text, metadata) tuple.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any

	// seq is the entry rowid, used as the stable insertion-order tiebreak.
	seq int64
}

// ScoredRecord is a record with its distance from a query vector.
type ScoredRecord struct {
	Record
	Distance float64
}

// SearchOptions controls Search.
type SearchOptions struct {
	// TopK bounds the result size. Non-positive means 10.
	TopK int

	// Where restricts candidates to entries whose metadata matches every
	// key/value pair exactly, before ranking.
	Where map[string]any
}

// StoreStats summarizes a store file.
type StoreStats struct {
	Collections int64
	Entries     int64
	SizeBytes   int64
}

// SQLiteStore is the persistent index collaborator backing semlite.
type SQLiteStore struct {
	db       *sql.DB
	config   Config
	distance DistanceFunc
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open creates a store handle and initializes the schema.
func Open(ctx context.Context, config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, wrapError("open", fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig))
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 10
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &SQLiteStore{
		config:   config,
		distance: DistanceByName(config.Metric),
		logger:   logger,
	}

	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.config.Path)
	if err != nil {
		return wrapError("init", backendError(err))
	}

	db.SetMaxOpenConns(s.config.MaxConns)
	db.SetMaxIdleConns(s.config.MaxConns / 2)
	db.SetConnMaxLifetime(2 * time.Hour)

	s.db = db

	// WAL for read concurrency; busy_timeout waits for locks instead of
	// failing immediately.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return wrapError("init", backendError(err))
		}
	}

	if err := s.createTables(ctx); err != nil {
		return wrapError("init", err)
	}

	return nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT NOT NULL,
		collection_id INTEGER NOT NULL,
		vector BLOB NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, collection_id),
		FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_collection_id ON entries(collection_id);
	CREATE INDEX IF NOT EXISTS idx_collections_name ON collections(name);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return backendError(fmt.Errorf("failed to create tables: %w", err))
	}
	return nil
}

// EnsureCollection returns the collection with the given name, creating it on
// first use. An existing collection must carry the same model stamp and
// dimensionality; anything else is ErrModelMismatch.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name, model string, dimensions int) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("ensureCollection", ErrStoreClosed)
	}
	if name == "" {
		return nil, wrapError("ensureCollection", fmt.Errorf("%w: collection name cannot be empty", ErrInvalidConfig))
	}

	coll, err := s.getCollection(ctx, name)
	if err == nil {
		if coll.Model != model {
			return nil, wrapError("ensureCollection", fmt.Errorf(
				"%w: collection %q was created with model %q, got %q",
				ErrModelMismatch, name, coll.Model, model))
		}
		if dimensions > 0 && coll.Dimensions != dimensions {
			return nil, wrapError("ensureCollection", fmt.Errorf(
				"%w: collection %q stores %d-dimensional vectors, got %d",
				ErrModelMismatch, name, coll.Dimensions, dimensions))
		}
		return coll, nil
	}
	if err != sql.ErrNoRows {
		return nil, wrapError("ensureCollection", backendError(err))
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, model, dimensions) VALUES (?, ?, ?)`,
		name, model, dimensions)
	if err != nil {
		return nil, wrapError("ensureCollection", backendError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapError("ensureCollection", backendError(err))
	}

	s.logger.Debug("collection created", "name", name, "model", model, "dimensions", dimensions)

	return &Collection{
		ID:         id,
		Name:       name,
		Model:      model,
		Dimensions: dimensions,
	}, nil
}

func (s *SQLiteStore) getCollection(ctx context.Context, name string) (*Collection, error) {
	var coll Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, model, dimensions, created_at FROM collections WHERE name = ?`,
		name).Scan(&coll.ID, &coll.Name, &coll.Model, &coll.Dimensions, &coll.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &coll, nil
}

// Collections lists all collections in the store file.
func (s *SQLiteStore) Collections(ctx context.Context) ([]Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("collections", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, model, dimensions, created_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, wrapError("collections", backendError(err))
	}
	defer rows.Close()

	var colls []Collection
	for rows.Next() {
		var coll Collection
		if err := rows.Scan(&coll.ID, &coll.Name, &coll.Model, &coll.Dimensions, &coll.CreatedAt); err != nil {
			return nil, wrapError("collections", backendError(err))
		}
		colls = append(colls, coll)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("collections", backendError(err))
	}

	return colls, nil
}

// Stats reports entry and collection counts plus the database file size.
func (s *SQLiteStore) Stats(ctx context.Context) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return StoreStats{}, wrapError("stats", ErrStoreClosed)
	}

	var stats StoreStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&stats.Collections); err != nil {
		return StoreStats{}, wrapError("stats", backendError(err))
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&stats.Entries); err != nil {
		return StoreStats{}, wrapError("stats", backendError(err))
	}

	// page_count * page_size approximates the file size without touching the
	// filesystem.
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.SizeBytes = pageCount * pageSize
		}
	}

	return stats, nil
}

// Close closes the store. Further calls return ErrStoreClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
