// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
)

// ErrTimeout is returned when an embedding call exceeds its deadline.
var ErrTimeout = errors.New("embedding timed out")

// Embedder produces vector embeddings for text. EmbedBatch returns one vector
// per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
