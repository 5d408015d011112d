package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

type embeddingRepository struct {
	db *sql.DB
}

func (r *embeddingRepository) Put(ctx context.Context, owner model.OwnerID, embedding *model.Embedding) error {
	key := model.StorageKey(model.StoreEmbeddings, owner)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM embeddings WHERE store_key = ? AND id = ?`, key, embedding.ID).Scan(&exists)
		switch {
		case err == nil:
			return goerr.Wrap(model.ErrConflict, "embedding already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, embedding.ItemID))
		case !errors.Is(err, sql.ErrNoRows):
			return goerr.Wrap(err, "failed to check embedding", goerr.V(model.ItemIDKey, embedding.ItemID))
		}

		var dim int
		err = tx.QueryRowContext(ctx,
			`SELECT dimension FROM embeddings WHERE store_key = ? ORDER BY seq LIMIT 1`, key).Scan(&dim)
		switch {
		case err == nil:
			if dim != len(embedding.Vector) {
				return goerr.Wrap(model.ErrDimensionMismatch, "embedding dimension differs from the owner's index",
					goerr.V(model.OwnerKey, owner),
					goerr.V("expected", dim),
					goerr.V("actual", len(embedding.Vector)))
			}
		case !errors.Is(err, sql.ErrNoRows):
			return goerr.Wrap(err, "failed to read index dimension")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (store_key, id, item_id, dimension, vector, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			key, embedding.ID, embedding.ItemID, len(embedding.Vector), encodeVector(embedding.Vector), toUnixNano(embedding.CreatedAt),
		); err != nil {
			return goerr.Wrap(err, "failed to insert embedding", goerr.V(model.ItemIDKey, embedding.ItemID))
		}
		return nil
	})
}

func (r *embeddingRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Embedding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_id, vector, created_at FROM embeddings WHERE store_key = ? ORDER BY seq`,
		model.StorageKey(model.StoreEmbeddings, owner))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings")
	}
	defer rows.Close()

	embeddings := []*model.Embedding{}
	for rows.Next() {
		var (
			e         model.Embedding
			blob      []byte
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &blob, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan embedding")
		}
		e.CreatedAt = fromUnixNano(createdAt)

		vec, err := decodeVector(blob)
		if err == nil {
			e.Vector = vec
			err = e.Validate()
		}
		if err != nil {
			quarantine(ctx, "embeddings", string(e.ID), err)
			continue
		}
		embeddings = append(embeddings, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate embeddings")
	}
	return embeddings, nil
}

func (r *embeddingRepository) Delete(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE store_key = ? AND id = ?`,
		model.StorageKey(model.StoreEmbeddings, owner), itemID.EmbeddingID(),
	); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V(model.ItemIDKey, itemID))
	}
	return nil
}
