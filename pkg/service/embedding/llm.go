package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// LLM generates embeddings through a gollem client (Gemini in production)
type LLM struct {
	client    gollem.LLMClient
	dimension int
}

var _ interfaces.Embedder = &LLM{}

type LLMOption func(*LLM)

// WithDimension overrides model.EmbeddingDimension
func WithDimension(dimension int) LLMOption {
	return func(l *LLM) {
		if dimension > 0 {
			l.dimension = dimension
		}
	}
}

func NewLLM(client gollem.LLMClient, opts ...LLMOption) *LLM {
	l := &LLM{
		client:    client,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LLM) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := l.client.GenerateEmbedding(ctx, l.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}
	if len(embeddings[0]) != l.dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "unexpected embedding length",
			goerr.V("expected", l.dimension), goerr.V("actual", len(embeddings[0])))
	}

	// Convert float64 to float32
	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}
	return result, nil
}

func (l *LLM) Dimension() int {
	return l.dimension
}
