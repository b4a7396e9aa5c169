package embed

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "An article about football and soccer")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := e.Embed(ctx, "An article about football and soccer")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(a) != 128 {
		t.Fatalf("len(vector) = %d, want 128", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	vec, err := e.Embed(context.Background(), "cardio workouts and staying fit")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("vector norm = %v, want 1.0", math.Sqrt(norm))
	}
}

func TestHashEmbedderSharedVocabulary(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()

	sports, _ := e.Embed(ctx, "football soccer sports match")
	sportsQuery, _ := e.Embed(ctx, "sports football game")
	cooking, _ := e.Embed(ctx, "lasagna pasta oven recipe")

	dot := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	}

	if dot(sports, sportsQuery) <= dot(cooking, sportsQuery) {
		t.Errorf("expected sports text closer to sports query: %v vs %v",
			dot(sports, sportsQuery), dot(cooking, sportsQuery))
	}
}

func TestHashEmbedderEmptyText(t *testing.T) {
	e := NewHashEmbedder(64)
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := e.Embed(context.Background(), text); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Embed(%q) = %v, want ErrEmptyText", text, err)
		}
	}
}

func TestHashEmbedderBatchOrder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	texts := []string{"first text", "second text", "third text"}
	vectors, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("len(vectors) = %d, want %d", len(vectors), len(texts))
	}

	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if vectors[i][j] != single[j] {
				t.Fatalf("batch vector %d differs from single embed", i)
			}
		}
	}
}

func TestHashEmbedderModel(t *testing.T) {
	if got := NewHashEmbedder(128).Model(); got != "hash-fnv64/128" {
		t.Errorf("Model() = %q, want hash-fnv64/128", got)
	}
	// Dimensions are part of the model identity.
	if NewHashEmbedder(64).Model() == NewHashEmbedder(128).Model() {
		t.Error("embedders of different dimensions must report different models")
	}
}
