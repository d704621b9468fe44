package embeddings

import (
	"context"
	"errors"

	"github.com/philippgille/chromem-go"
	"golang.org/x/time/rate"

	"webtracker/internal/apperr"
)

// FuncEmbedder adapts a single-text chromem embedding function, such as the
// Ollama one, to the Embedder interface.
type FuncEmbedder struct {
	fn      chromem.EmbeddingFunc
	dim     int
	limiter *rate.Limiter
}

// NewFuncEmbedder wraps fn. dim is the configured vector size and rps limits
// calls per second (zero means unlimited).
func NewFuncEmbedder(fn chromem.EmbeddingFunc, dim int, rps float64) *FuncEmbedder {
	return &FuncEmbedder{
		fn:      fn,
		dim:     dim,
		limiter: newLimiter(rps),
	}
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server.
// An empty baseURL selects the default local endpoint.
func NewOllamaEmbedder(model, baseURL string, dim int, rps float64) *FuncEmbedder {
	return NewFuncEmbedder(chromem.NewEmbeddingFuncOllama(model, baseURL), dim, rps)
}

// Dimension returns the configured vector size.
func (f *FuncEmbedder) Dimension() int {
	return f.dim
}

// EmbedTexts embeds texts one at a time, in order.
func (f *FuncEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperr.Embedding("embed", errors.New("empty input array"))
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, apperr.Embedding("rate_limit", err)
		}
		vec, err := f.fn(ctx, text)
		if err != nil {
			return nil, apperr.Embedding("embed", err)
		}
		out = append(out, vec)
	}

	if err := checkDimensions(out, f.dim); err != nil {
		return nil, err
	}
	return out, nil
}
