package interfaces

import (
	"context"

	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// CategoryRepository is the category index: categories plus the item to
// category assignment table of each owner
type CategoryRepository interface {
	// EnsureDefaults stores defaults when the owner has no category yet and
	// returns the owner's categories. Concurrent calls seed at most once.
	EnsureDefaults(ctx context.Context, owner model.OwnerID, defaults []*model.Category) ([]*model.Category, error)

	List(ctx context.Context, owner model.OwnerID) ([]*model.Category, error)
	Get(ctx context.Context, owner model.OwnerID, id model.CategoryID) (*model.Category, error)

	// Create fails with model.ErrDuplicateName when the name is taken,
	// ignoring case
	Create(ctx context.Context, owner model.OwnerID, category *model.Category) error

	// Update applies patch to an existing category
	Update(ctx context.Context, owner model.OwnerID, id model.CategoryID, patch model.CategoryPatch) (*model.Category, error)

	// Delete removes the category and drops it from every assignment set
	Delete(ctx context.Context, owner model.OwnerID, id model.CategoryID) error

	// Assign replaces the item's assignment set. Unknown IDs fail with
	// *model.InvalidCategoryError.
	Assign(ctx context.Context, owner model.OwnerID, itemID model.ItemID, ids []model.CategoryID) error

	GetItemCategories(ctx context.Context, owner model.OwnerID, itemID model.ItemID) ([]model.CategoryID, error)
	// ListItemsByCategory returns items in insertion order. Assigned IDs
	// with no stored item come last, ordered by ID.
	ListItemsByCategory(ctx context.Context, owner model.OwnerID, id model.CategoryID) ([]model.ItemID, error)

	// Unassign drops the item's assignment set; no-op when absent
	Unassign(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error
}
