package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

type categoryRepository struct {
	db *sql.DB
}

const categoryColumns = `id, name, description, icon, color, created_at, updated_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var (
		c                    model.Category
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = fromUnixNano(createdAt)
	c.UpdatedAt = fromUnixNano(updatedAt)
	return &c, c.Validate()
}

func listCategories(ctx context.Context, q querier, key string) ([]*model.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE store_key = ? ORDER BY seq`, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query categories")
	}
	defer rows.Close()

	categories := []*model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			if c == nil {
				return nil, goerr.Wrap(err, "failed to scan category")
			}
			quarantine(ctx, "categories", string(c.ID), err)
			continue
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate categories")
	}
	return categories, nil
}

func getCategory(ctx context.Context, q querier, owner model.OwnerID, id model.CategoryID) (*model.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE store_key = ? AND id = ?`,
		model.StorageKey(model.StoreCategories, owner), id)

	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "category not found",
			goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get category", goerr.V(model.CategoryIDKey, id))
	}
	return c, nil
}

func nameTaken(ctx context.Context, tx *sql.Tx, key, name string, except model.CategoryID) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE store_key = ? AND name_key = ? AND id != ?`,
		key, model.CategoryNameKey(name), except).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, goerr.Wrap(err, "failed to check category name")
	}
}

func insertCategory(ctx context.Context, tx *sql.Tx, key string, c *model.Category) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO categories (store_key, name_key, `+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, c.NameKey(), c.ID, c.Name, c.Description, c.Icon, c.Color, toUnixNano(c.CreatedAt), toUnixNano(c.UpdatedAt),
	); err != nil {
		return goerr.Wrap(err, "failed to insert category", goerr.V(model.CategoryIDKey, c.ID))
	}
	return nil
}

func (r *categoryRepository) EnsureDefaults(ctx context.Context, owner model.OwnerID, defaults []*model.Category) ([]*model.Category, error) {
	key := model.StorageKey(model.StoreCategories, owner)

	var categories []*model.Category
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM categories WHERE store_key = ?`, key).Scan(&count); err != nil {
			return goerr.Wrap(err, "failed to count categories")
		}
		if count == 0 {
			for _, c := range defaults {
				if err := insertCategory(ctx, tx, key, c); err != nil {
					return err
				}
			}
		}

		var err error
		categories, err = listCategories(ctx, tx, key)
		return err
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to ensure default categories", goerr.V(model.OwnerKey, owner))
	}
	return categories, nil
}

func (r *categoryRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Category, error) {
	return listCategories(ctx, r.db, model.StorageKey(model.StoreCategories, owner))
}

func (r *categoryRepository) Get(ctx context.Context, owner model.OwnerID, id model.CategoryID) (*model.Category, error) {
	return getCategory(ctx, r.db, owner, id)
}

func (r *categoryRepository) Create(ctx context.Context, owner model.OwnerID, category *model.Category) error {
	key := model.StorageKey(model.StoreCategories, owner)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		taken, err := nameTaken(ctx, tx, key, category.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(model.ErrDuplicateName, "category name already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, category.Name))
		}

		if _, err := getCategory(ctx, tx, owner, category.ID); err == nil {
			return goerr.Wrap(model.ErrConflict, "category already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, category.ID))
		} else if !errors.Is(err, model.ErrNotFound) {
			return err
		}

		return insertCategory(ctx, tx, key, category)
	})
}

func (r *categoryRepository) Update(ctx context.Context, owner model.OwnerID, id model.CategoryID, patch model.CategoryPatch) (*model.Category, error) {
	key := model.StorageKey(model.StoreCategories, owner)

	var updated *model.Category
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := getCategory(ctx, tx, owner, id)
		if err != nil {
			return err
		}

		updated = patch.Apply(current, time.Now().UTC())
		if err := updated.Validate(); err != nil {
			return err
		}
		if patch.Name != nil {
			taken, err := nameTaken(ctx, tx, key, updated.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return goerr.Wrap(model.ErrDuplicateName, "category name already exists",
					goerr.V(model.OwnerKey, owner), goerr.V(model.NameKey, updated.Name))
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, name_key = ?, description = ?, icon = ?, color = ?, updated_at = ?
			 WHERE store_key = ? AND id = ?`,
			updated.Name, updated.NameKey(), updated.Description, updated.Icon, updated.Color, toUnixNano(updated.UpdatedAt),
			key, id,
		); err != nil {
			return goerr.Wrap(err, "failed to update category", goerr.V(model.CategoryIDKey, id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *categoryRepository) Delete(ctx context.Context, owner model.OwnerID, id model.CategoryID) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM categories WHERE store_key = ? AND id = ?`,
			model.StorageKey(model.StoreCategories, owner), id)
		if err != nil {
			return goerr.Wrap(err, "failed to delete category", goerr.V(model.CategoryIDKey, id))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return goerr.Wrap(err, "failed to read deleted rows")
		}
		if n == 0 {
			return goerr.Wrap(model.ErrNotFound, "category not found",
				goerr.V(model.OwnerKey, owner), goerr.V(model.CategoryIDKey, id))
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM item_categories WHERE store_key = ? AND category_id = ?`,
			model.StorageKey(model.StoreItemCategories, owner), id,
		); err != nil {
			return goerr.Wrap(err, "failed to remove category assignments", goerr.V(model.CategoryIDKey, id))
		}
		return nil
	})
}

func (r *categoryRepository) Assign(ctx context.Context, owner model.OwnerID, itemID model.ItemID, ids []model.CategoryID) error {
	ids = model.UniqueCategoryIDs(ids)
	key := model.StorageKey(model.StoreItemCategories, owner)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var invalid []model.CategoryID
		for _, id := range ids {
			if _, err := getCategory(ctx, tx, owner, id); err != nil {
				if !errors.Is(err, model.ErrNotFound) {
					return err
				}
				invalid = append(invalid, id)
			}
		}
		if len(invalid) > 0 {
			return goerr.Wrap(model.NewInvalidCategoryError(invalid), "failed to assign categories",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, itemID))
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM item_categories WHERE store_key = ? AND item_id = ?`, key, itemID,
		); err != nil {
			return goerr.Wrap(err, "failed to clear item categories", goerr.V(model.ItemIDKey, itemID))
		}
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO item_categories (store_key, item_id, category_id, position) VALUES (?, ?, ?, ?)`,
				key, itemID, id, i,
			); err != nil {
				return goerr.Wrap(err, "failed to insert item category", goerr.V(model.ItemIDKey, itemID))
			}
		}
		return nil
	})
}

func (r *categoryRepository) GetItemCategories(ctx context.Context, owner model.OwnerID, itemID model.ItemID) ([]model.CategoryID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id FROM item_categories WHERE store_key = ? AND item_id = ? ORDER BY position`,
		model.StorageKey(model.StoreItemCategories, owner), itemID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query item categories", goerr.V(model.ItemIDKey, itemID))
	}
	defer rows.Close()

	ids := []model.CategoryID{}
	for rows.Next() {
		var id model.CategoryID
		if err := rows.Scan(&id); err != nil {
			return nil, goerr.Wrap(err, "failed to scan item category")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate item categories")
	}
	return ids, nil
}

func (r *categoryRepository) ListItemsByCategory(ctx context.Context, owner model.OwnerID, id model.CategoryID) ([]model.ItemID, error) {
	// items without a row (assigned before the item landed) sort last
	rows, err := r.db.QueryContext(ctx,
		`SELECT ic.item_id FROM item_categories ic
		 LEFT JOIN items i ON i.store_key = ? AND i.id = ic.item_id
		 WHERE ic.store_key = ? AND ic.category_id = ?
		 ORDER BY i.seq IS NULL, i.seq, ic.item_id`,
		model.StorageKey(model.StoreItems, owner), model.StorageKey(model.StoreItemCategories, owner), id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query items by category", goerr.V(model.CategoryIDKey, id))
	}
	defer rows.Close()

	ids := []model.ItemID{}
	for rows.Next() {
		var itemID model.ItemID
		if err := rows.Scan(&itemID); err != nil {
			return nil, goerr.Wrap(err, "failed to scan item id")
		}
		ids = append(ids, itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate items by category")
	}
	return ids, nil
}

func (r *categoryRepository) Unassign(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM item_categories WHERE store_key = ? AND item_id = ?`,
		model.StorageKey(model.StoreItemCategories, owner), itemID,
	); err != nil {
		return goerr.Wrap(err, "failed to unassign item categories", goerr.V(model.ItemIDKey, itemID))
	}
	return nil
}
