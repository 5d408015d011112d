package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

func newCategory(name string) *model.Category {
	ts := now()
	return &model.Category{
		ID:          model.NewCategoryID(),
		Name:        name,
		Description: name + " description",
		Icon:        "tag",
		Color:       "#123456",
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func categoryIDs(categories []*model.Category) []model.CategoryID {
	ids := make([]model.CategoryID, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return ids
}

func runCategoryRepositoryTest(t *testing.T, newRepo repoFactory) {
	t.Helper()

	t.Run("EnsureDefaults seeds once", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		first, err := repo.Category().EnsureDefaults(ctx, owner, model.DefaultCategories(now()))
		gt.NoError(t, err).Required()
		gt.Array(t, first).Length(4)
		gt.Value(t, first[0].Name).Equal("My Trades")

		second, err := repo.Category().EnsureDefaults(ctx, owner, model.DefaultCategories(now()))
		gt.NoError(t, err).Required()
		gt.Value(t, categoryIDs(second)).Equal(categoryIDs(first))
	})

	t.Run("EnsureDefaults is safe under concurrency", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Category().EnsureDefaults(ctx, owner, model.DefaultCategories(now()))
				gt.NoError(t, err)
			}()
		}
		wg.Wait()

		categories, err := repo.Category().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, categories).Length(4)
	})

	t.Run("EnsureDefaults keeps existing categories", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		custom := newCategory("Crypto")
		gt.NoError(t, repo.Category().Create(ctx, owner, custom)).Required()

		got, err := repo.Category().EnsureDefaults(ctx, owner, model.DefaultCategories(now()))
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(1)
		gt.Value(t, got[0].ID).Equal(custom.ID)
	})

	t.Run("Create rejects duplicate names ignoring case", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		gt.NoError(t, repo.Category().Create(ctx, owner, newCategory("Market Analysis"))).Required()
		err := repo.Category().Create(ctx, owner, newCategory("market analysis"))
		gt.Error(t, err).Is(model.ErrDuplicateName)

		// same name is fine for another owner
		gt.NoError(t, repo.Category().Create(ctx, newOwner(), newCategory("Market Analysis"))).Required()
	})

	t.Run("Get and List", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		a := newCategory("A")
		b := newCategory("B")
		gt.NoError(t, repo.Category().Create(ctx, owner, a)).Required()
		gt.NoError(t, repo.Category().Create(ctx, owner, b)).Required()

		got, err := repo.Category().Get(ctx, owner, b.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("B")
		gt.Value(t, got.Color).Equal("#123456")

		list, err := repo.Category().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Value(t, categoryIDs(list)).Equal([]model.CategoryID{a.ID, b.ID})

		_, err = repo.Category().Get(ctx, owner, model.NewCategoryID())
		gt.Bool(t, errors.Is(err, model.ErrNotFound)).True()
	})

	t.Run("Update", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		a := newCategory("Alpha")
		b := newCategory("Beta")
		gt.NoError(t, repo.Category().Create(ctx, owner, a)).Required()
		gt.NoError(t, repo.Category().Create(ctx, owner, b)).Required()

		icon := "star"
		updated, err := repo.Category().Update(ctx, owner, a.ID, model.CategoryPatch{Icon: &icon})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Icon).Equal("star")
		gt.Value(t, updated.Name).Equal("Alpha")
		gt.Bool(t, updated.UpdatedAt.After(a.UpdatedAt)).True()

		// renaming to its own name with another case is allowed
		rename := "ALPHA"
		updated, err = repo.Category().Update(ctx, owner, a.ID, model.CategoryPatch{Name: &rename})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Name).Equal("ALPHA")

		taken := "beta"
		_, err = repo.Category().Update(ctx, owner, a.ID, model.CategoryPatch{Name: &taken})
		gt.Error(t, err).Is(model.ErrDuplicateName)

		_, err = repo.Category().Update(ctx, owner, model.NewCategoryID(), model.CategoryPatch{Icon: &icon})
		gt.Error(t, err).Is(model.ErrNotFound)

		stored, err := repo.Category().Get(ctx, owner, a.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Name).Equal("ALPHA")
		gt.Value(t, stored.Icon).Equal("star")
	})

	t.Run("Assign replaces the set and validates ids", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		itemID := model.NewItemID()

		a := newCategory("A")
		b := newCategory("B")
		gt.NoError(t, repo.Category().Create(ctx, owner, a)).Required()
		gt.NoError(t, repo.Category().Create(ctx, owner, b)).Required()

		gt.NoError(t, repo.Category().Assign(ctx, owner, itemID, []model.CategoryID{a.ID, b.ID, a.ID})).Required()
		got, err := repo.Category().GetItemCategories(ctx, owner, itemID)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal([]model.CategoryID{a.ID, b.ID})

		gt.NoError(t, repo.Category().Assign(ctx, owner, itemID, []model.CategoryID{b.ID})).Required()
		got, err = repo.Category().GetItemCategories(ctx, owner, itemID)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal([]model.CategoryID{b.ID})

		missing := model.NewCategoryID()
		err = repo.Category().Assign(ctx, owner, itemID, []model.CategoryID{a.ID, missing})
		gt.Error(t, err).Is(model.ErrInvalidCategory)
		var ice *model.InvalidCategoryError
		gt.Bool(t, errors.As(err, &ice)).True()
		gt.Value(t, ice.IDs).Equal([]model.CategoryID{missing})

		// failed assignment leaves the previous set
		got, err = repo.Category().GetItemCategories(ctx, owner, itemID)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal([]model.CategoryID{b.ID})

		// categories of another owner are unknown here
		other := newCategory("Other")
		gt.NoError(t, repo.Category().Create(ctx, newOwner(), other)).Required()
		err = repo.Category().Assign(ctx, owner, itemID, []model.CategoryID{other.ID})
		gt.Error(t, err).Is(model.ErrInvalidCategory)
	})

	t.Run("lookups of unknown ids are empty", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		cats, err := repo.Category().GetItemCategories(ctx, owner, model.NewItemID())
		gt.NoError(t, err).Required()
		gt.Array(t, cats).Length(0)

		items, err := repo.Category().ListItemsByCategory(ctx, owner, model.NewCategoryID())
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(0)
	})

	t.Run("ListItemsByCategory follows item insertion order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		c := newCategory("C")
		gt.NoError(t, repo.Category().Create(ctx, owner, c)).Required()

		first, second := newItem("first"), newItem("second")
		gt.NoError(t, repo.Item().Put(ctx, owner, first)).Required()
		gt.NoError(t, repo.Item().Put(ctx, owner, second)).Required()

		// assigned in reverse, plus one item that was never stored
		missing := model.NewItemID()
		gt.NoError(t, repo.Category().Assign(ctx, owner, missing, []model.CategoryID{c.ID})).Required()
		gt.NoError(t, repo.Category().Assign(ctx, owner, second.ID, []model.CategoryID{c.ID})).Required()
		gt.NoError(t, repo.Category().Assign(ctx, owner, first.ID, []model.CategoryID{c.ID})).Required()

		got, err := repo.Category().ListItemsByCategory(ctx, owner, c.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal([]model.ItemID{first.ID, second.ID, missing})
	})

	t.Run("Delete cascades to assignments", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		c := newCategory("C")
		d := newCategory("D")
		gt.NoError(t, repo.Category().Create(ctx, owner, c)).Required()
		gt.NoError(t, repo.Category().Create(ctx, owner, d)).Required()

		i1, i2 := model.NewItemID(), model.NewItemID()
		gt.NoError(t, repo.Category().Assign(ctx, owner, i1, []model.CategoryID{c.ID, d.ID})).Required()
		gt.NoError(t, repo.Category().Assign(ctx, owner, i2, []model.CategoryID{c.ID})).Required()

		byC, err := repo.Category().ListItemsByCategory(ctx, owner, c.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, byC).Length(2)

		gt.NoError(t, repo.Category().Delete(ctx, owner, c.ID)).Required()

		got, err := repo.Category().GetItemCategories(ctx, owner, i1)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal([]model.CategoryID{d.ID})

		got, err = repo.Category().GetItemCategories(ctx, owner, i2)
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(0)

		byC, err = repo.Category().ListItemsByCategory(ctx, owner, c.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, byC).Length(0)

		_, err = repo.Category().Get(ctx, owner, c.ID)
		gt.Error(t, err).Is(model.ErrNotFound)

		err = repo.Category().Delete(ctx, owner, c.ID)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("Unassign is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()

		c := newCategory("C")
		gt.NoError(t, repo.Category().Create(ctx, owner, c)).Required()
		itemID := model.NewItemID()
		gt.NoError(t, repo.Category().Assign(ctx, owner, itemID, []model.CategoryID{c.ID})).Required()

		gt.NoError(t, repo.Category().Unassign(ctx, owner, itemID)).Required()
		gt.NoError(t, repo.Category().Unassign(ctx, owner, itemID)).Required()

		items, err := repo.Category().ListItemsByCategory(ctx, owner, c.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(0)
	})
}

func TestCategoryRepository(t *testing.T) {
	runAllBackends(t, runCategoryRepositoryTest)
}
