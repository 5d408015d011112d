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

type itemDoc struct {
	ID        string         `firestore:"ID"`
	Owner     string         `firestore:"Owner"`
	Content   string         `firestore:"Content"`
	Source    string         `firestore:"Source"`
	Metadata  map[string]any `firestore:"Metadata"`
	CreatedAt time.Time      `firestore:"CreatedAt"`
	Seq       int64          `firestore:"Seq"`
}

func toItemDoc(x *model.Item) *itemDoc {
	return &itemDoc{
		ID:        string(x.ID),
		Owner:     string(x.Owner),
		Content:   x.Content,
		Source:    string(x.Source),
		Metadata:  x.Metadata,
		CreatedAt: x.CreatedAt,
		Seq:       time.Now().UnixNano(),
	}
}

func docToItem(snap *firestore.DocumentSnapshot) (*model.Item, error) {
	var d itemDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	item := &model.Item{
		ID:        model.ItemID(d.ID),
		Owner:     model.OwnerID(d.Owner),
		Content:   d.Content,
		Source:    model.Source(d.Source),
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

type itemRepository struct {
	*store
}

func (r *itemRepository) Put(ctx context.Context, owner model.OwnerID, item *model.Item) error {
	ref := r.collection(model.StoreItems, owner).Doc(string(item.ID))
	if _, err := ref.Create(ctx, toItemDoc(item)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(model.ErrConflict, "item already exists",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, item.ID))
		}
		return goerr.Wrap(err, "failed to create item", goerr.V(model.ItemIDKey, item.ID))
	}
	return nil
}

func (r *itemRepository) Get(ctx context.Context, owner model.OwnerID, id model.ItemID) (*model.Item, error) {
	snap, err := r.collection(model.StoreItems, owner).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "item not found",
				goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get item", goerr.V(model.ItemIDKey, id))
	}

	item, err := docToItem(snap)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode item", goerr.V(model.ItemIDKey, id))
	}
	return item, nil
}

func (r *itemRepository) GetMany(ctx context.Context, owner model.OwnerID, ids []model.ItemID) (map[model.ItemID]*model.Item, error) {
	result := make(map[model.ItemID]*model.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	col := r.collection(model.StoreItems, owner)
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = col.Doc(string(id))
	}

	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get items", goerr.V("count", len(ids)))
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		item, err := docToItem(snap)
		if err != nil {
			quarantine(ctx, model.StoreItems, snap.Ref.ID, err)
			continue
		}
		result[item.ID] = item
	}
	return result, nil
}

func (r *itemRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Item, error) {
	iter := r.collection(model.StoreItems, owner).OrderBy("Seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	items := []*model.Item{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate items", goerr.V(model.OwnerKey, owner))
		}

		item, err := docToItem(snap)
		if err != nil {
			quarantine(ctx, model.StoreItems, snap.Ref.ID, err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *itemRepository) Delete(ctx context.Context, owner model.OwnerID, id model.ItemID) error {
	if _, err := r.collection(model.StoreItems, owner).Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete item", goerr.V(model.ItemIDKey, id))
	}
	return nil
}
