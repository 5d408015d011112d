package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// embeddingDoc stores the vector as firestore.Vector32 so that a vector
// index can be declared on it
type embeddingDoc struct {
	ID        string             `firestore:"ID"`
	ItemID    string             `firestore:"ItemID"`
	Vector    firestore.Vector32 `firestore:"Vector"`
	Dimension int                `firestore:"Dimension"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	Seq       int64              `firestore:"Seq"`
}

func docToEmbedding(snap *firestore.DocumentSnapshot) (*model.Embedding, error) {
	var d embeddingDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	e := &model.Embedding{
		ID:        model.EmbeddingID(d.ID),
		ItemID:    model.ItemID(d.ItemID),
		Vector:    []float32(d.Vector),
		CreatedAt: d.CreatedAt.UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

type embeddingRepository struct {
	*store
}

func (r *embeddingRepository) Put(ctx context.Context, owner model.OwnerID, embedding *model.Embedding) error {
	col := r.collection(model.StoreEmbeddings, owner)
	ref := col.Doc(string(embedding.ID))

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err == nil {
			return goerr.Wrap(model.ErrConflict, "embedding already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, embedding.ItemID))
		} else if status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to check embedding", goerr.V(model.ItemIDKey, embedding.ItemID))
		}

		firsts, err := tx.Documents(col.OrderBy("Seq", firestore.Asc).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to read index dimension")
		}
		if len(firsts) > 0 {
			dim, err := firsts[0].DataAt("Dimension")
			if err != nil {
				return goerr.Wrap(err, "failed to read index dimension")
			}
			if d, ok := dim.(int64); ok && int(d) != len(embedding.Vector) {
				return goerr.Wrap(model.ErrDimensionMismatch, "embedding dimension differs from the owner's index",
					goerr.V(model.OwnerKey, owner),
					goerr.V("expected", d),
					goerr.V("actual", len(embedding.Vector)))
			}
		}

		return tx.Create(ref, &embeddingDoc{
			ID:        string(embedding.ID),
			ItemID:    string(embedding.ItemID),
			Vector:    firestore.Vector32(embedding.Vector),
			Dimension: len(embedding.Vector),
			CreatedAt: embedding.CreatedAt,
			Seq:       time.Now().UnixNano(),
		})
	})
}

func (r *embeddingRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Embedding, error) {
	iter := r.collection(model.StoreEmbeddings, owner).OrderBy("Seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	embeddings := []*model.Embedding{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate embeddings", goerr.V(model.OwnerKey, owner))
		}

		e, err := docToEmbedding(snap)
		if err != nil {
			quarantine(ctx, model.StoreEmbeddings, snap.Ref.ID, err)
			continue
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, nil
}

func (r *embeddingRepository) Delete(ctx context.Context, owner model.OwnerID, itemID model.ItemID) error {
	ref := r.collection(model.StoreEmbeddings, owner).Doc(string(itemID.EmbeddingID()))
	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V(model.ItemIDKey, itemID))
	}
	return nil
}
