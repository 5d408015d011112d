package memory

import (
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

type categoryRepository struct {
	m *Memory
}

func copyCategories(src []*model.Category) []*model.Category {
	out := make([]*model.Category, len(src))
	for i, c := range src {
		out[i] = c.Copy()
	}
	return out
}

// nameTaken reports whether another category of the shard uses name.
// Caller holds the shard lock.
func (s *shard) nameTaken(name string, except model.CategoryID) bool {
	key := model.CategoryNameKey(name)
	for _, c := range s.categories.values() {
		if c.ID != except && c.NameKey() == key {
			return true
		}
	}
	return false
}

func (r *categoryRepository) EnsureDefaults(ctx context.Context, owner model.OwnerID, defaults []*model.Category) ([]*model.Category, error) {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categories.len() == 0 {
		for _, c := range defaults {
			s.categories.set(c.ID, c.Copy())
		}
	}
	return copyCategories(s.categories.values()), nil
}

func (r *categoryRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Category, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyCategories(s.categories.values()), nil
}

func (r *categoryRepository) Get(ctx context.Context, owner model.OwnerID, id model.CategoryID) (*model.Category, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories.get(id)
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "category not found",
			goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	return c.Copy(), nil
}

func (r *categoryRepository) Create(ctx context.Context, owner model.OwnerID, category *model.Category) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories.get(category.ID); exists {
		return goerr.Wrap(model.ErrConflict, "category already exists",
			goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, category.ID))
	}
	if s.nameTaken(category.Name, "") {
		return goerr.Wrap(model.ErrDuplicateName, "category name already exists",
			goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, category.Name))
	}

	s.categories.set(category.ID, category.Copy())
	return nil
}

func (r *categoryRepository) Update(ctx context.Context, owner model.OwnerID, id model.CategoryID, patch model.CategoryPatch) (*model.Category, error) {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.categories.get(id)
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "category not found",
			goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}

	updated := patch.Apply(current, time.Now().UTC())
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if patch.Name != nil && s.nameTaken(updated.Name, id) {
		return nil, goerr.Wrap(model.ErrDuplicateName, "category name already exists",
			goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, updated.Name))
	}

	s.categories.set(id, updated)
	return updated.Copy(), nil
}

func (r *categoryRepository) Delete(ctx context.Context, owner model.OwnerID, id model.CategoryID) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories.get(id); !ok {
		return goerr.Wrap(model.ErrNotFound, "category not found",
			goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	s.categories.remove(id)

	for itemID, ids := range s.assignments {
		kept := make([]model.CategoryID, 0, len(ids))
		for _, cid := range ids {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		s.assignments[itemID] = kept
	}
	return nil
}

func (r *categoryRepository) Assign(ctx context.Context, owner model.OwnerID, itemID model.ItemID, ids []model.CategoryID) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	ids = model.UniqueCategoryIDs(ids)
	var invalid []model.CategoryID
	for _, id := range ids {
		if _, ok := s.categories.get(id); !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return goerr.Wrap(model.NewInvalidCategoryError(invalid), "failed to assign categories",
			goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, itemID))
	}

	s.assignments[itemID] = ids
	return nil
}

func (r *categoryRepository) GetItemCategories(ctx context.Context, owner model.OwnerID, itemID model.ItemID) ([]model.CategoryID, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.CategoryID{}, s.assignments[itemID]...), nil
}

func (r *categoryRepository) ListItemsByCategory(ctx context.Context, owner model.OwnerID, id model.CategoryID) ([]model.ItemID, error) {
	s := r.m.shard(owner)
	s.mu.RLock()
	defer s.mu.RUnlock()

	// follow item insertion order so results are stable
	result := []model.ItemID{}
	seen := make(map[model.ItemID]bool)
	for _, itemID := range s.items.keys {
		if hasCategory(s.assignments[itemID], id) {
			result = append(result, itemID)
			seen[itemID] = true
		}
	}
	var rest []model.ItemID
	for itemID, ids := range s.assignments {
		if !seen[itemID] && hasCategory(ids, id) {
			rest = append(rest, itemID)
		}
	}
	slices.Sort(rest)
	return append(result, rest...), nil
}

func (r *categoryRepository) Unassign(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error {
	s := r.m.shard(owner)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assignments, itemID)
	return nil
}

func hasCategory(ids []model.CategoryID, id model.CategoryID) bool {
	return slices.Contains(ids, id)
}
