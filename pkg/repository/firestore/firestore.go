package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
)

// Firestore keeps every per-owner store under its own document:
//
//	{prefix}brains/{items_<owner>}/items/{item_id}
//	{prefix}brains/{embeddings_<owner>}/embeddings/{item_id}_embedding
//	{prefix}brains/{categories_<owner>}/categories/{category_id}
//	{prefix}brains/{item_categories_<owner>}/item_categories/{item_id}
type Firestore struct {
	client *firestore.Client
	store  *store

	item      *itemRepository
	embedding *embeddingRepository
	category  *categoryRepository
}

var _ interfaces.Repository = &Firestore{}

// RootCollection is the top level collection name without prefix
const RootCollection = "brains"

type Option func(*Firestore)

// WithCollectionPrefix isolates data, e.g. per test run
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.store.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	s := &store{client: client}
	f := &Firestore{
		client:    client,
		store:     s,
		item:      &itemRepository{store: s},
		embedding: &embeddingRepository{store: s},
		category:  &categoryRepository{store: s},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Item() interfaces.ItemRepository {
	return f.item
}

func (f *Firestore) Embedding() interfaces.EmbeddingRepository {
	return f.embedding
}

func (f *Firestore) Category() interfaces.CategoryRepository {
	return f.category
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

type store struct {
	client           *firestore.Client
	collectionPrefix string
}

func (s *store) collection(kind model.StoreKind, owner model.OwnerID) *firestore.CollectionRef {
	return s.client.Collection(s.collectionPrefix + RootCollection).
		Doc(model.StorageKey(kind, owner)).
		Collection(string(kind))
}

func quarantine(ctx context.Context, kind model.StoreKind, id string, err error) {
	logging.From(ctx).Warn("skipping malformed record",
		"store", string(kind),
		"id", id,
		"error", err,
	)
}
