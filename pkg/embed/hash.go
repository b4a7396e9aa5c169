package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
)

// Compile-time interface check.
var _ Embedder = (*HashEmbedder)(nil)

// HashEmbedder produces deterministic pseudo-embeddings from token hashes.
// Texts sharing words map to nearby vectors, which is enough for tests, demos
// and offline use. It is not a semantic model; production callers should use
// OpenAIEmbedder or their own Embedder.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder with the given dimensionality.
// Dimensions below 8 are raised to the default of 128.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim < 8 {
		dim = 128
	}
	return &HashEmbedder{dim: dim}
}

// Embed hashes each whitespace-separated token into a handful of vector
// components, then L2-normalizes the result.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dim)
	for _, token := range tokenize(text) {
		hasher := fnv.New64a()
		hasher.Write([]byte(token))
		seed := hasher.Sum64()

		// Spread each token over a few dimensions so overlapping vocabularies
		// yield overlapping vectors.
		for k := 0; k < 4; k++ {
			idx := int((seed >> (k * 16)) & 0xffff) % h.dim
			sign := float32(1)
			if (seed>>(k*16+15))&1 == 1 {
				sign = -1
			}
			vec[idx] += sign
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dim returns the configured dimensionality.
func (h *HashEmbedder) Dim() int { return h.dim }

// Model identifies the embedder including its dimensionality, since vectors
// of different sizes are incompatible.
func (h *HashEmbedder) Model() string {
	return "hash-fnv64/" + strconv.Itoa(h.dim)
}

func tokenize(text string) []string {
	var tokens []string
	var current []rune
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			current = append(current, r)
		case r >= 'A' && r <= 'Z':
			current = append(current, r+('a'-'A'))
		default:
			if len(current) > 0 {
				tokens = append(tokens, string(current))
				current = current[:0]
			}
		}
	}
	if len(current) > 0 {
		tokens = append(tokens, string(current))
	}
	return tokens
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}
