package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

type itemRepository struct {
	db *sql.DB
}

const itemColumns = `id, owner_id, content, source, metadata, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var (
		item      model.Item
		metadata  string
		createdAt int64
	)
	if err := row.Scan(&item.ID, &item.Owner, &item.Content, &item.Source, &metadata, &createdAt); err != nil {
		return nil, err
	}
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
			return &item, goerr.Wrap(err, "failed to decode item metadata", goerr.V(model.ItemIDKey, item.ID))
		}
	}
	item.CreatedAt = fromUnixNano(createdAt)
	return &item, item.Validate()
}

func (r *itemRepository) Put(ctx context.Context, owner model.OwnerID, item *model.Item) error {
	key := model.StorageKey(model.StoreItems, owner)

	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return goerr.Wrap(err, "failed to encode item metadata", goerr.V(model.ItemIDKey, item.ID))
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM items WHERE store_key = ? AND id = ?`, key, item.ID).Scan(&exists)
		switch {
		case err == nil:
			return goerr.Wrap(model.ErrConflict, "item already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, item.ID))
		case !errors.Is(err, sql.ErrNoRows):
			return goerr.Wrap(err, "failed to check item", goerr.V(model.ItemIDKey, item.ID))
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (store_key, `+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, item.ID, string(owner), item.Content, string(item.Source), string(metadata), toUnixNano(item.CreatedAt),
		); err != nil {
			return goerr.Wrap(err, "failed to insert item", goerr.V(model.ItemIDKey, item.ID))
		}
		return nil
	})
}

func (r *itemRepository) Get(ctx context.Context, owner model.OwnerID, id model.ItemID) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE store_key = ? AND id = ?`,
		model.StorageKey(model.StoreItems, owner), id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "item not found",
			goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get item", goerr.V(model.ItemIDKey, id))
	}
	return item, nil
}

func (r *itemRepository) GetMany(ctx context.Context, owner model.OwnerID, ids []model.ItemID) (map[model.ItemID]*model.Item, error) {
	result := make(map[model.ItemID]*model.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, model.StorageKey(model.StoreItems, owner))
	for _, id := range ids {
		args = append(args, string(id))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	items, err := r.query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE store_key = ? AND id IN (`+placeholders+`) ORDER BY seq`,
		args...)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

func (r *itemRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Item, error) {
	return r.query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE store_key = ? ORDER BY seq`,
		model.StorageKey(model.StoreItems, owner))
}

func (r *itemRepository) query(ctx context.Context, q string, args ...any) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query items")
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			if item == nil {
				return nil, goerr.Wrap(err, "failed to scan item")
			}
			quarantine(ctx, "items", string(item.ID), err)
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate items")
	}
	return items, nil
}

func (r *itemRepository) Delete(ctx context.Context, owner model.OwnerID, id model.ItemID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE store_key = ? AND id = ?`,
		model.StorageKey(model.StoreItems, owner), id,
	); err != nil {
		return goerr.Wrap(err, "failed to delete item", goerr.V(model.ItemIDKey, id))
	}
	return nil
}
