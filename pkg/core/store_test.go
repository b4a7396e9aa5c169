package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(context.Background(), DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestCollection(t *testing.T, store *SQLiteStore) *Collection {
	t.Helper()
	coll, err := store.EnsureCollection(context.Background(), "test", "test-model", 3)
	if err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	return coll
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Open() = %v, want ErrInvalidConfig", err)
	}
}

func TestEnsureCollectionLazyCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coll, err := store.EnsureCollection(ctx, "articles", "test-model", 3)
	if err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if coll.Name != "articles" || coll.Model != "test-model" || coll.Dimensions != 3 {
		t.Errorf("unexpected collection: %+v", coll)
	}

	// Second call reopens, same id.
	again, err := store.EnsureCollection(ctx, "articles", "test-model", 3)
	if err != nil {
		t.Fatalf("EnsureCollection() reopen error = %v", err)
	}
	if again.ID != coll.ID {
		t.Errorf("reopen returned id %d, want %d", again.ID, coll.ID)
	}
}

func TestEnsureCollectionModelMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureCollection(ctx, "articles", "model-a", 3); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	if _, err := store.EnsureCollection(ctx, "articles", "model-b", 3); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("different model: got %v, want ErrModelMismatch", err)
	}
	if _, err := store.EnsureCollection(ctx, "articles", "model-a", 5); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("different dimensions: got %v, want ErrModelMismatch", err)
	}
}

func TestCollectionIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _ := store.EnsureCollection(ctx, "a", "test-model", 3)
	b, _ := store.EnsureCollection(ctx, "b", "test-model", 3)

	rec := &Record{ID: "x", Vector: []float32{1, 0, 0}, Text: "only in a"}
	if err := store.Put(ctx, a, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := store.Get(ctx, b, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("entry leaked across collections: %v", err)
	}

	// Same id is fine in a different collection.
	if err := store.Put(ctx, b, &Record{ID: "x", Vector: []float32{0, 1, 0}, Text: "only in b"}); err != nil {
		t.Errorf("Put() in second collection error = %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)
	ctx := context.Background()

	rec := &Record{
		ID:       "entry-1",
		Vector:   []float32{0.1, 0.2, 0.3},
		Text:     "An article about football and soccer",
		Metadata: map[string]any{"category": "sports", "page": 12},
	}
	if err := store.Put(ctx, coll, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, coll, "entry-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != rec.Text {
		t.Errorf("Text = %q, want %q", got.Text, rec.Text)
	}
	if got.Metadata["category"] != "sports" {
		t.Errorf("Metadata[category] = %v, want sports", got.Metadata["category"])
	}
	if got.Metadata["page"] != float64(12) {
		t.Errorf("Metadata[page] = %v, want 12", got.Metadata["page"])
	}
	for i := range rec.Vector {
		if got.Vector[i] != rec.Vector[i] {
			t.Fatalf("Vector[%d] = %v, want %v", i, got.Vector[i], rec.Vector[i])
		}
	}
}

func TestPutDuplicateID(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)
	ctx := context.Background()

	rec := &Record{ID: "dup", Vector: []float32{1, 0, 0}, Text: "first"}
	if err := store.Put(ctx, coll, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	err := store.Put(ctx, coll, &Record{ID: "dup", Vector: []float32{0, 1, 0}, Text: "second"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Put() duplicate = %v, want ErrDuplicateID", err)
	}

	// Original untouched.
	got, _ := store.Get(ctx, coll, "dup")
	if got.Text != "first" {
		t.Errorf("duplicate Put overwrote entry: %q", got.Text)
	}
}

func TestPutDimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)

	err := store.Put(context.Background(), coll, &Record{ID: "bad", Vector: []float32{1, 0}, Text: "short vector"})
	if !errors.Is(err, ErrInvalidVector) {
		t.Errorf("Put() = %v, want ErrInvalidVector", err)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)

	_, err := store.Get(context.Background(), coll, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)
	ctx := context.Background()

	rec := &Record{
		ID:       "u1",
		Vector:   []float32{1, 0, 0},
		Text:     "old text",
		Metadata: map[string]any{"category": "sports"},
	}
	if err := store.Put(ctx, coll, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Metadata-only update leaves vector and text alone.
	got, err := store.Update(ctx, coll, "u1", nil, nil, map[string]any{"category": "cooking"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Text != "old text" {
		t.Errorf("Text changed on metadata update: %q", got.Text)
	}
	if got.Vector[0] != 1 {
		t.Errorf("Vector changed on metadata update: %v", got.Vector)
	}
	if got.Metadata["category"] != "cooking" {
		t.Errorf("Metadata[category] = %v, want cooking", got.Metadata["category"])
	}

	// Text+vector update.
	newText := "new text"
	got, err = store.Update(ctx, coll, "u1", []float32{0, 1, 0}, &newText, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Text != "new text" || got.Vector[1] != 1 {
		t.Errorf("text/vector update not applied: %+v", got)
	}
	if got.Metadata["category"] != "cooking" {
		t.Errorf("metadata lost on text update: %v", got.Metadata)
	}
}

func TestUpdateNotFound(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)

	text := "x"
	_, err := store.Update(context.Background(), coll, "missing", nil, &text, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() = %v, want ErrNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)
	ctx := context.Background()

	if err := store.Put(ctx, coll, &Record{ID: "d1", Vector: []float32{1, 0, 0}, Text: "doomed"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	existed, err := store.Delete(ctx, coll, "d1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed {
		t.Error("first Delete() = false, want true")
	}

	existed, err = store.Delete(ctx, coll, "d1")
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if existed {
		t.Error("second Delete() = true, want false")
	}

	if _, err := store.Get(ctx, coll, "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	store, err := Open(ctx, DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	coll, _ := store.EnsureCollection(ctx, "persist", "test-model", 3)
	if err := store.Put(ctx, coll, &Record{ID: "p1", Vector: []float32{1, 2, 3}, Text: "survives restart"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(ctx, DefaultConfig(path))
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	coll2, err := reopened.EnsureCollection(ctx, "persist", "test-model", 3)
	if err != nil {
		t.Fatalf("EnsureCollection() after reopen error = %v", err)
	}
	got, err := reopened.Get(ctx, coll2, "p1")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Text != "survives restart" {
		t.Errorf("Text = %q after reopen", got.Text)
	}
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)
	store.Close()

	ctx := context.Background()
	if _, err := store.Get(ctx, coll, "x"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Get() on closed store = %v, want ErrStoreClosed", err)
	}
	if err := store.Put(ctx, coll, &Record{ID: "x", Vector: []float32{1, 0, 0}, Text: "t"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Put() on closed store = %v, want ErrStoreClosed", err)
	}
}

func TestStatsAndCount(t *testing.T) {
	store := newTestStore(t)
	coll := newTestCollection(t, store)
	ctx := context.Background()

	for i, text := range []string{"one", "two", "three"} {
		rec := &Record{ID: text, Vector: []float32{float32(i), 1, 0}, Text: text}
		if err := store.Put(ctx, coll, rec); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	count, err := store.Count(ctx, coll)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 3 || stats.Collections != 1 {
		t.Errorf("Stats() = %+v, want 3 entries in 1 collection", stats)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("Stats().SizeBytes = %d, want > 0", stats.SizeBytes)
	}
}

func TestCollectionsList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.EnsureCollection(ctx, "beta", "m", 3)
	store.EnsureCollection(ctx, "alpha", "m", 3)

	colls, err := store.Collections(ctx)
	if err != nil {
		t.Fatalf("Collections() error = %v", err)
	}
	if len(colls) != 2 || colls[0].Name != "alpha" || colls[1].Name != "beta" {
		t.Errorf("Collections() = %+v, want [alpha beta]", colls)
	}
}
