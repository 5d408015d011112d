package firestore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type categoryDoc struct {
	ID          string    `firestore:"ID"`
	Name        string    `firestore:"Name"`
	NameKey     string    `firestore:"NameKey"`
	Description string    `firestore:"Description"`
	Icon        string    `firestore:"Icon"`
	Color       string    `firestore:"Color"`
	CreatedAt   time.Time `firestore:"CreatedAt"`
	UpdatedAt   time.Time `firestore:"UpdatedAt"`
	Seq         int64     `firestore:"Seq"`
}

func toCategoryDoc(c *model.Category, seq int64) *categoryDoc {
	return &categoryDoc{
		ID:          string(c.ID),
		Name:        c.Name,
		NameKey:     c.NameKey(),
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Seq:         seq,
	}
}

func docToCategory(snap *firestore.DocumentSnapshot) (*model.Category, int64, error) {
	var d categoryDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, 0, err
	}
	c := &model.Category{
		ID:          model.CategoryID(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Color:       d.Color,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, 0, err
	}
	return c, d.Seq, nil
}

// itemCategoriesDoc is the assignment set of one item
type itemCategoriesDoc struct {
	ItemID      string   `firestore:"ItemID"`
	CategoryIDs []string `firestore:"CategoryIDs"`
	Seq         int64    `firestore:"Seq"`
}

type categoryRepository struct {
	*store
}

func decodeCategories(ctx context.Context, snaps []*firestore.DocumentSnapshot) []*model.Category {
	categories := make([]*model.Category, 0, len(snaps))
	for _, snap := range snaps {
		c, _, err := docToCategory(snap)
		if err != nil {
			quarantine(ctx, model.StoreCategories, snap.Ref.ID, err)
			continue
		}
		categories = append(categories, c)
	}
	return categories
}

func nameTaken(categories []*model.Category, name string, except model.CategoryID) bool {
	key := model.CategoryNameKey(name)
	for _, c := range categories {
		if c.ID != except && c.NameKey() == key {
			return true
		}
	}
	return false
}

func (r *categoryRepository) EnsureDefaults(ctx context.Context, owner model.OwnerID, defaults []*model.Category) ([]*model.Category, error) {
	col := r.collection(model.StoreCategories, owner)

	var categories []*model.Category
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(col.OrderBy("Seq", firestore.Asc)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to list categories")
		}
		if len(snaps) > 0 {
			categories = decodeCategories(ctx, snaps)
			return nil
		}

		base := time.Now().UnixNano()
		categories = make([]*model.Category, 0, len(defaults))
		for i, c := range defaults {
			if err := tx.Create(col.Doc(string(c.ID)), toCategoryDoc(c, base+int64(i))); err != nil {
				return goerr.Wrap(err, "failed to create default category", goerr.V(model.CategoryIDKey, c.ID))
			}
			categories = append(categories, c.Copy())
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to ensure default categories", goerr.V(model.OwnerKey, owner))
	}
	return categories, nil
}

func (r *categoryRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Category, error) {
	iter := r.collection(model.StoreCategories, owner).OrderBy("Seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	categories := []*model.Category{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate categories", goerr.V(model.OwnerKey, owner))
		}
		c, _, err := docToCategory(snap)
		if err != nil {
			quarantine(ctx, model.StoreCategories, snap.Ref.ID, err)
			continue
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func (r *categoryRepository) Get(ctx context.Context, owner model.OwnerID, id model.CategoryID) (*model.Category, error) {
	snap, err := r.collection(model.StoreCategories, owner).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "category not found",
				goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get category", goerr.V(model.CategoryIDKey, id))
	}

	c, _, err := docToCategory(snap)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode category", goerr.V(model.CategoryIDKey, id))
	}
	return c, nil
}

func (r *categoryRepository) Create(ctx context.Context, owner model.OwnerID, category *model.Category) error {
	col := r.collection(model.StoreCategories, owner)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(col).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to list categories")
		}
		categories := decodeCategories(ctx, snaps)
		for _, c := range categories {
			if c.ID == category.ID {
				return goerr.Wrap(model.ErrConflict, "category already exists",
					goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, category.ID))
			}
		}
		if nameTaken(categories, category.Name, "") {
			return goerr.Wrap(model.ErrDuplicateName, "category name already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, category.Name))
		}

		return tx.Create(col.Doc(string(category.ID)), toCategoryDoc(category, time.Now().UnixNano()))
	})
}

func (r *categoryRepository) Update(ctx context.Context, owner model.OwnerID, id model.CategoryID, patch model.CategoryPatch) (*model.Category, error) {
	col := r.collection(model.StoreCategories, owner)

	var updated *model.Category
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(col.Doc(string(id)))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrNotFound, "category not found",
					goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
			}
			return goerr.Wrap(err, "failed to get category", goerr.V(model.CategoryIDKey, id))
		}
		current, seq, err := docToCategory(snap)
		if err != nil {
			return goerr.Wrap(err, "failed to decode category", goerr.V(model.CategoryIDKey, id))
		}

		updated = patch.Apply(current, time.Now().UTC())
		if err := updated.Validate(); err != nil {
			return err
		}

		if patch.Name != nil {
			snaps, err := tx.Documents(col).GetAll()
			if err != nil {
				return goerr.Wrap(err, "failed to list categories")
			}
			if nameTaken(decodeCategories(ctx, snaps), updated.Name, id) {
				return goerr.Wrap(model.ErrDuplicateName, "category name already exists",
					goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, updated.Name))
			}
		}

		return tx.Set(col.Doc(string(id)), toCategoryDoc(updated, seq))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *categoryRepository) Delete(ctx context.Context, owner model.OwnerID, id model.CategoryID) error {
	ref := r.collection(model.StoreCategories, owner).Doc(string(id))
	assignments := r.collection(model.StoreItemCategories, owner)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrNotFound, "category not found",
					goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
			}
			return goerr.Wrap(err, "failed to get category", goerr.V(model.CategoryIDKey, id))
		}

		snaps, err := tx.Documents(assignments.Where("CategoryIDs", "array-contains", string(id))).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to find category assignments", goerr.V(model.CategoryIDKey, id))
		}
		for _, snap := range snaps {
			if err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "CategoryIDs", Value: firestore.ArrayRemove(string(id))},
			}); err != nil {
				return goerr.Wrap(err, "failed to remove category assignment", goerr.V(model.ItemIDKey, snap.Ref.ID))
			}
		}

		return tx.Delete(ref)
	})
}

func (r *categoryRepository) Assign(ctx context.Context, owner model.OwnerID, itemID model.ItemID, ids []model.CategoryID) error {
	ids = model.UniqueCategoryIDs(ids)
	categories := r.collection(model.StoreCategories, owner)
	ref := r.collection(model.StoreItemCategories, owner).Doc(string(itemID))

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs := make([]*firestore.DocumentRef, len(ids))
		for i, id := range ids {
			refs[i] = categories.Doc(string(id))
		}

		var invalid []model.CategoryID
		if len(refs) > 0 {
			snaps, err := tx.GetAll(refs)
			if err != nil {
				return goerr.Wrap(err, "failed to get categories")
			}
			for i, snap := range snaps {
				if !snap.Exists() {
					invalid = append(invalid, ids[i])
				}
			}
		}
		if len(invalid) > 0 {
			return goerr.Wrap(model.NewInvalidCategoryError(invalid), "failed to assign categories",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, itemID))
		}

		categoryIDs := make([]string, len(ids))
		for i, id := range ids {
			categoryIDs[i] = string(id)
		}
		return tx.Set(ref, &itemCategoriesDoc{
			ItemID:      string(itemID),
			CategoryIDs: categoryIDs,
			Seq:         time.Now().UnixNano(),
		})
	})
}

func (r *categoryRepository) GetItemCategories(ctx context.Context, owner model.OwnerID, itemID model.ItemID) ([]model.CategoryID, error) {
	snap, err := r.collection(model.StoreItemCategories, owner).Doc(string(itemID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return []model.CategoryID{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get item categories", goerr.V(model.ItemIDKey, itemID))
	}

	var d itemCategoriesDoc
	if err := snap.DataTo(&d); err != nil {
		quarantine(ctx, model.StoreItemCategories, snap.Ref.ID, err)
		return []model.CategoryID{}, nil
	}

	ids := make([]model.CategoryID, len(d.CategoryIDs))
	for i, id := range d.CategoryIDs {
		ids[i] = model.CategoryID(id)
	}
	return ids, nil
}

// ListItemsByCategory follows item insertion order. Sorting happens on the
// client so that the array-contains query works with the automatic
// single-field index. Assignments whose item is missing sort last by id.
func (r *categoryRepository) ListItemsByCategory(ctx context.Context, owner model.OwnerID, id model.CategoryID) ([]model.ItemID, error) {
	iter := r.collection(model.StoreItemCategories, owner).
		Where("CategoryIDs", "array-contains", string(id)).
		Documents(ctx)
	defer iter.Stop()

	var docs []*itemCategoriesDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate item categories", goerr.V(model.CategoryIDKey, id))
		}
		var doc itemCategoriesDoc
		if err := snap.DataTo(&doc); err != nil {
			quarantine(ctx, model.StoreItemCategories, snap.Ref.ID, err)
			continue
		}
		doc.ItemID = snap.Ref.ID
		docs = append(docs, &doc)
	}
	if len(docs) == 0 {
		return []model.ItemID{}, nil
	}

	items := r.collection(model.StoreItems, owner)
	refs := make([]*firestore.DocumentRef, len(docs))
	for i, doc := range docs {
		refs[i] = items.Doc(doc.ItemID)
	}
	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get items of category", goerr.V(model.CategoryIDKey, id))
	}

	// item Seq per assignment; -1 when the item does not exist
	itemSeq := make(map[string]int64, len(snaps))
	for i, snap := range snaps {
		itemSeq[docs[i].ItemID] = -1
		if !snap.Exists() {
			continue
		}
		var item struct {
			Seq int64 `firestore:"Seq"`
		}
		if err := snap.DataTo(&item); err != nil {
			quarantine(ctx, model.StoreItems, snap.Ref.ID, err)
			continue
		}
		itemSeq[docs[i].ItemID] = item.Seq
	}

	slices.SortStableFunc(docs, func(a, b *itemCategoriesDoc) int {
		sa, sb := itemSeq[a.ItemID], itemSeq[b.ItemID]
		switch {
		case sa < 0 && sb < 0:
			return cmp.Compare(a.ItemID, b.ItemID)
		case sa < 0:
			return 1
		case sb < 0:
			return -1
		}
		return cmp.Compare(sa, sb)
	})

	ids := make([]model.ItemID, len(docs))
	for i, doc := range docs {
		ids[i] = model.ItemID(doc.ItemID)
	}
	return ids, nil
}

func (r *categoryRepository) Unassign(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error {
	if _, err := r.collection(model.StoreItemCategories, owner).Doc(string(itemID)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to unassign item categories", goerr.V(model.ItemIDKey, itemID))
	}
	return nil
}
