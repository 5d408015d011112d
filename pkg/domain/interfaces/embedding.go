package interfaces

import (
	"context"

	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// EmbeddingRepository is the vector index
type EmbeddingRepository interface {
	// Put stores the vector record of an item. Fails with model.ErrConflict
	// when the record exists and model.ErrDimensionMismatch when the vector
	// length differs from the owner's other vectors.
	Put(ctx context.Context, owner model.OwnerID, embedding *model.Embedding) error

	// List returns all vector records of the owner in insertion order
	List(ctx context.Context, owner model.OwnerID) ([]*model.Embedding, error)

	// Delete removes the vector record of an item; no-op when absent
	Delete(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error
}

// Embedder converts text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
