package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDimension is the vector length produced by the default embedders.
// Gemini text embeddings are requested at 768 dimensions.
const EmbeddingDimension = 768

// EmbeddingID identifies a vector record. It is always derived from the
// owning item, see ItemID.EmbeddingID.
type EmbeddingID string

// Embedding is the vector record of exactly one item
type Embedding struct {
	ID        EmbeddingID
	ItemID    ItemID
	Vector    []float32
	CreatedAt time.Time
}

// NewEmbedding builds the vector record for an item
func NewEmbedding(itemID ItemID, vector []float32, now time.Time) *Embedding {
	return &Embedding{
		ID:        itemID.EmbeddingID(),
		ItemID:    itemID,
		Vector:    vector,
		CreatedAt: now,
	}
}

func (x *Embedding) Validate() error {
	if x.ItemID == "" {
		return goerr.Wrap(ErrInvalidInput, "embedding item ID is empty")
	}
	if x.ID != x.ItemID.EmbeddingID() {
		return goerr.Wrap(ErrInvalidInput, "embedding ID does not match item",
			goerr.V("embedding_id", x.ID), goerr.V(ItemIDKey, x.ItemID))
	}
	if len(x.Vector) == 0 {
		return goerr.Wrap(ErrInvalidInput, "embedding vector is empty", goerr.V(ItemIDKey, x.ItemID))
	}
	return nil
}

// Copy returns a deep copy of the embedding
func (x *Embedding) Copy() *Embedding {
	if x == nil {
		return nil
	}
	c := *x
	c.Vector = append([]float32(nil), x.Vector...)
	return &c
}
