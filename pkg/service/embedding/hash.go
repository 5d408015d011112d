package embedding

import (
	"context"
	"crypto/md5" // #nosec G501 - used as a deterministic spreader, not for security

	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// Hash is the deterministic offline embedder. It expands the MD5 digest of
// the text to the target dimension by cycling through the digest bytes and
// mapping each byte linearly into [-1, 1]. The vectors carry no meaning
// beyond identity: equal text gives equal vectors.
type Hash struct {
	dimension int
}

var _ interfaces.Embedder = &Hash{}

// NewHash returns a Hash embedder. A non-positive dimension selects
// model.EmbeddingDimension.
func NewHash(dimension int) *Hash {
	if dimension <= 0 {
		dimension = model.EmbeddingDimension
	}
	return &Hash{dimension: dimension}
}

func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	return h.Vector(text), nil
}

// Vector computes the embedding without the context plumbing
func (h *Hash) Vector(text string) []float32 {
	digest := md5.Sum([]byte(text)) // #nosec G401
	vec := make([]float32, h.dimension)
	for i := range vec {
		vec[i] = float32(float64(digest[i%len(digest)])/127.5 - 1.0)
	}
	return vec
}

func (h *Hash) Dimension() int {
	return h.dimension
}
