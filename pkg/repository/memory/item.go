package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

type itemRepository struct {
	m *Memory
}

func (r *itemRepository) Put(ctx context.Context, owner model.OwnerID, item *model.Item) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items.get(item.ID); exists {
		return goerr.Wrap(model.ErrConflict, "item already exists",
			goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, item.ID))
	}
	s.items.set(item.ID, item.Copy())
	return nil
}

func (r *itemRepository) Get(ctx context.Context, owner model.OwnerID, id model.ItemID) (*model.Item, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items.get(id)
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "item not found",
			goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
	}
	return item.Copy(), nil
}

func (r *itemRepository) GetMany(ctx context.Context, owner model.OwnerID, ids []model.ItemID) (map[model.ItemID]*model.Item, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[model.ItemID]*model.Item, len(ids))
	for _, id := range ids {
		if item, ok := s.items.get(id); ok {
			result[id] = item.Copy()
		}
	}
	return result, nil
}

func (r *itemRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Item, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*model.Item, 0, s.items.len())
	for _, item := range s.items.values() {
		items = append(items, item.Copy())
	}
	return items, nil
}

func (r *itemRepository) Delete(ctx context.Context, owner model.OwnerID, id model.ItemID) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.remove(id)
	return nil
}
