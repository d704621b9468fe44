// Package embeddings maps normalized text to fixed-dimension vectors.
package embeddings

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks webtracker/internal/embeddings Embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"webtracker/internal/apperr"
)

// Embedder turns texts into vectors of a fixed dimension.
// It is a pure function of its input text.
type Embedder interface {
	// EmbedTexts returns one vector per text, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the length of every returned vector.
	Dimension() int
}

// newLimiter returns a limiter allowing rps requests per second.
// Zero or negative means unlimited.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// checkDimensions verifies every vector has the expected length.
func checkDimensions(vectors [][]float32, want int) error {
	for i, v := range vectors {
		if len(v) != want {
			return apperr.Embedding("dimension", fmt.Errorf("embedding %d has size %d, expected %d", i, len(v), want))
		}
	}
	return nil
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, apperr.Embedding("embed", fmt.Errorf("expected 1 embedding, got %d", len(vectors)))
	}
	return vectors[0], nil
}
