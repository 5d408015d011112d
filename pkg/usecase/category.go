package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// CategoryUseCase handles category-related business logic
type CategoryUseCase struct {
	repo interfaces.Repository
}

// NewCategoryUseCase creates a new CategoryUseCase instance
func NewCategoryUseCase(repo interfaces.Repository) *CategoryUseCase {
	return &CategoryUseCase{repo: repo}
}

// CreateCategoryInput represents input for creating a category
type CreateCategoryInput struct {
	Name        string
	Description string
	Icon        string
	Color       string
}

// List returns the owner's categories, seeding the defaults on first use
func (uc *CategoryUseCase) List(ctx context.Context, owner model.OwnerID) ([]*model.Category, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	categories, err := uc.repo.Category().EnsureDefaults(ctx, owner, model.DefaultCategories(time.Now().UTC()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list categories", goerr.V(model.OwnerKey, owner))
	}
	return categories, nil
}

func (uc *CategoryUseCase) Get(ctx context.Context, owner model.OwnerID, id model.CategoryID) (*model.Category, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	category, err := uc.repo.Category().Get(ctx, owner, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get category", goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	return category, nil
}

// Create adds a category. The defaults are seeded first so that a custom
// category never suppresses them.
func (uc *CategoryUseCase) Create(ctx context.Context, owner model.OwnerID, input CreateCategoryInput) (*model.Category, error) {
	if _, err := uc.List(ctx, owner); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	category := &model.Category{
		ID:          model.NewCategoryID(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Icon:        input.Icon,
		Color:       input.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := category.Validate(); err != nil {
		return nil, err
	}

	if err := uc.repo.Category().Create(ctx, owner, category); err != nil {
		return nil, goerr.Wrap(err, "failed to create category", goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, category.Name))
	}
	return category, nil
}

func (uc *CategoryUseCase) Update(ctx context.Context, owner model.OwnerID, id model.CategoryID, patch model.CategoryPatch) (*model.Category, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	category, err := uc.repo.Category().Update(ctx, owner, id, patch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update category", goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	return category, nil
}

// Delete removes the category and drops it from every item
func (uc *CategoryUseCase) Delete(ctx context.Context, owner model.OwnerID, id model.CategoryID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if err := uc.repo.Category().Delete(ctx, owner, id); err != nil {
		return goerr.Wrap(err, "failed to delete category", goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	return nil
}

// Assign replaces the categories of an existing item
func (uc *CategoryUseCase) Assign(ctx context.Context, owner model.OwnerID, itemID model.ItemID, ids []model.CategoryID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if _, err := uc.repo.Item().Get(ctx, owner, itemID); err != nil {
		return goerr.Wrap(err, "failed to get item", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, itemID))
	}
	if err := uc.repo.Category().Assign(ctx, owner, itemID, ids); err != nil {
		return goerr.Wrap(err, "failed to assign categories", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, itemID))
	}
	return nil
}

// GetItemCategories returns the categories assigned to an item in
// assignment order
func (uc *CategoryUseCase) GetItemCategories(ctx context.Context, owner model.OwnerID, itemID model.ItemID) ([]*model.Category, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	ids, err := uc.repo.Category().GetItemCategories(ctx, owner, itemID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get item categories", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, itemID))
	}
	if len(ids) == 0 {
		return []*model.Category{}, nil
	}

	categories, err := uc.repo.Category().List(ctx, owner)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list categories", goerr.V(model.OwnerKey, owner))
	}
	byID := make(map[model.CategoryID]*model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	result := make([]*model.Category, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// GetItemsByCategory returns the items carrying a category. Unknown
// categories yield an empty result.
func (uc *CategoryUseCase) GetItemsByCategory(ctx context.Context, owner model.OwnerID, id model.CategoryID) ([]*model.Item, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	ids, err := uc.repo.Category().ListItemsByCategory(ctx, owner, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list items by category", goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	if len(ids) == 0 {
		return []*model.Item{}, nil
	}

	items, err := uc.repo.Item().GetMany(ctx, owner, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get items", goerr.V(model.OwnerKey, owner))
	}
	result := make([]*model.Item, 0, len(ids))
	for _, itemID := range ids {
		if item, ok := items[itemID]; ok {
			result = append(result, item)
		}
	}
	return result, nil
}
