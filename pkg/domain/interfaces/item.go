package interfaces

import (
	"context"

	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// ItemRepository is the item store
type ItemRepository interface {
	// Put appends an item. Fails with model.ErrConflict when the ID is taken.
	Put(ctx context.Context, owner model.OwnerID, item *model.Item) error

	// Get returns model.ErrNotFound when the item does not exist
	Get(ctx context.Context, owner model.OwnerID, id model.ItemID) (*model.Item, error)

	// GetMany returns the items that exist among ids
	GetMany(ctx context.Context, owner model.OwnerID, ids []model.ItemID) (map[model.ItemID]*model.Item, error)

	// List returns all items of the owner in insertion order
	List(ctx context.Context, owner model.OwnerID) ([]*model.Item, error)

	// Delete is a no-op when the item does not exist
	Delete(ctx context.Context, owner model.OwnerID, id model.ItemID) error
}
