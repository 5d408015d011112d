package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

type embeddingRepository struct {
	m *Memory
}

func (r *embeddingRepository) Put(ctx context.Context, owner model.OwnerID, embedding *model.Embedding) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.embeddings.get(embedding.ID); exists {
		return goerr.Wrap(model.ErrConflict, "embedding already exists",
			goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, embedding.ItemID))
	}

	if s.embeddings.len() > 0 {
		first := s.embeddings.m[s.embeddings.keys[0]]
		if len(first.Vector) != len(embedding.Vector) {
			return goerr.Wrap(model.ErrDimensionMismatch, "embedding dimension differs from the owner's index",
				goerr.V(model.OwnerKey, owner),
				goerr.V("expected", len(first.Vector)),
				goerr.V("actual", len(embedding.Vector)))
		}
	}

	s.embeddings.set(embedding.ID, embedding.Copy())
	return nil
}

func (r *embeddingRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Embedding, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	embeddings := make([]*model.Embedding, 0, s.embeddings.len())
	for _, e := range s.embeddings.values() {
		embeddings = append(embeddings, e.Copy())
	}
	return embeddings, nil
}

func (r *embeddingRepository) Delete(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.embeddings.remove(itemID.EmbeddingID())
	return nil
}
