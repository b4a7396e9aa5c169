package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Compile-time interface check.
var _ Embedder = (*OpenAIEmbedder)(nil)

const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOpenAIDim   = 1536
	defaultEmbedURL    = "https://api.openai.com/v1/embeddings"
	maxRetries         = 3
)

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint. It works
// against OpenAI itself as well as local servers (Ollama, LM Studio) that
// implement the same API.
type OpenAIEmbedder struct {
	apiKey string
	model  string
	dim    int
	client *http.Client

	// BaseURL is the full embeddings endpoint URL. Defaults to the OpenAI API;
	// override it to point at a compatible local server.
	BaseURL string
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
// model can be empty (defaults to "text-embedding-3-small"); dim can be 0
// (defaults to 1536).
func NewOpenAIEmbedder(apiKey, model string, dim int) *OpenAIEmbedder {
	if model == "" {
		model = defaultOpenAIModel
	}
	if dim <= 0 {
		dim = defaultOpenAIDim
	}
	return &OpenAIEmbedder{
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
		BaseURL: defaultEmbedURL,
	}
}

// Dim returns the configured vector dimensionality.
func (o *OpenAIEmbedder) Dim() int { return o.dim }

// Model returns the provider-qualified model identifier.
func (o *OpenAIEmbedder) Model() string { return "openai:" + o.model }

// Embed converts a single text into a vector.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	vectors, err := o.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts into vectors in a single API call,
// preserving input order.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if err := validateText(text); err != nil {
			return nil, err
		}
	}
	return o.request(ctx, texts)
}

func (o *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embedRequest{
		Model:      o.model,
		Input:      texts,
		Dimensions: o.dim,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	var resp embedResponse
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s.
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("embed: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		httpResp, err := o.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: request failed: %v", ErrEmbeddingFailed, err)
			continue
		}

		respBody, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read response: %v", ErrEmbeddingFailed, err)
			continue
		}

		if httpResp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: rate limited (429)", ErrEmbeddingFailed)
			continue
		}

		if httpResp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: API error %d: %s", ErrEmbeddingFailed, httpResp.StatusCode, string(respBody))
			// Client errors other than 429 won't get better on retry.
			if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
				return nil, lastErr
			}
			continue
		}

		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("%w: unmarshal response: %v", ErrEmbeddingFailed, err)
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, lastErr
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	// The API reports an index per datum; respect it rather than assuming
	// response order.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: vector index %d out of range", ErrEmbeddingFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// OpenAI API wire types.

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []embedData `json:"data"`
}

type embedData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}
