// Package embedding provides text embedding via the hosted OpenAI capability.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	// Embed returns one embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one embedding per input text, order-preserving.
	// Implementations split long inputs into bounded upstream batches; a
	// failed batch fails the entire call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the fixed vector dimensionality.
	Dimensions() int
}
