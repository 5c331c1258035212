package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBatchSize caps how many texts go into one upstream embeddings request.
const DefaultBatchSize = 64

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
}

// Option configures an OpenAIEmbedder.
type Option func(*openai.ClientConfig)

// WithBaseURL points the embedder at an alternative API endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *openai.ClientConfig) { cfg.BaseURL = url }
}

// NewOpenAIEmbedder returns an embedder for the given model. dimensions is the
// expected vector length (responses with a different length are rejected);
// batchSize caps texts per request and defaults to DefaultBatchSize.
func NewOpenAIEmbedder(apiKey, model string, dimensions, batchSize int, opts ...Option) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding: model is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in upstream batches of at most batchSize,
// preserving input order. Any batch failure fails the whole call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding response: got %d vectors, want %d", len(resp.Data), end-start)
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fmt.Errorf("embedding response: index %d out of range", d.Index)
			}
			if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
				return nil, fmt.Errorf("embedding response: got %d dimensions, want %d", len(d.Embedding), e.dimensions)
			}
			vec := make([]float32, len(d.Embedding))
			copy(vec, d.Embedding)
			out[start+d.Index] = vec
		}
	}
	return out, nil
}

// Dimensions returns the configured vector dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}
