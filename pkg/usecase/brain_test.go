package usecase_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/repository/memory"
	"github.com/secmon-lab/tedbrain/pkg/service/blob"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
)

// vectorEmbedder returns fixed vectors per text
type vectorEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (e *vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, e.dim), nil
}

func (e *vectorEmbedder) Dimension() int { return e.dim }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, goerr.New("provider down")
}

func (failingEmbedder) Dimension() int { return model.EmbeddingDimension }

type mockPageFetcher struct {
	page *model.WebPage
	err  error
}

func (m *mockPageFetcher) Fetch(_ context.Context, rawURL string) (*model.WebPage, error) {
	if m.err != nil {
		return nil, m.err
	}
	page := *m.page
	page.URL = rawURL
	return &page, nil
}

type mockDescriber struct {
	description string
	err         error
}

func (m *mockDescriber) Describe(context.Context, []byte, string) (string, error) {
	return m.description, m.err
}

// failingEmbeddingRepository rejects every vector write
type failingEmbeddingRepository struct {
	interfaces.EmbeddingRepository
}

func (failingEmbeddingRepository) Put(context.Context, model.OwnerID, *model.Embedding) error {
	return goerr.New("disk full")
}

type failingEmbeddingRepo struct {
	interfaces.Repository
}

func (r *failingEmbeddingRepo) Embedding() interfaces.EmbeddingRepository {
	return failingEmbeddingRepository{r.Repository.Embedding()}
}

func TestAddItemAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)
	owner := model.OwnerID("alice")

	result, err := uc.Brain.AddItem(ctx, owner, usecase.AddItemInput{
		Content:  "bought AAPL at 180",
		Source:   model.SourceTrade,
		Metadata: map[string]any{"ticker": "AAPL"},
	})
	gt.NoError(t, err).Required()
	gt.Value(t, result.Status).Equal(model.AddItemStatusAdded)
	gt.String(t, string(result.ItemID)).NotEqual("")

	t.Run("item and vector are stored", func(t *testing.T) {
		item, err := repo.Item().Get(ctx, owner, result.ItemID)
		gt.NoError(t, err).Required()
		gt.Value(t, item.Content).Equal("bought AAPL at 180")
		gt.Value(t, item.Source).Equal(model.SourceTrade)
		gt.Value(t, item.Metadata["ticker"]).Equal(any("AAPL"))

		embeddings, err := repo.Embedding().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, embeddings).Length(1)
		gt.Value(t, embeddings[0].ID).Equal(result.ItemID.EmbeddingID())
		gt.Array(t, embeddings[0].Vector).Length(model.EmbeddingDimension)
	})

	t.Run("querying the same text finds the item", func(t *testing.T) {
		results, err := uc.Brain.QueryItems(ctx, owner, "bought AAPL at 180", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].ItemID).Equal(result.ItemID)
		gt.Bool(t, results[0].Similarity > 0).True()
		gt.Bool(t, math.Abs(results[0].Similarity-1) < 1e-6).True()
	})

	t.Run("other owners see nothing", func(t *testing.T) {
		results, err := uc.Brain.QueryItems(ctx, "bob", "bought AAPL at 180", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})
}

func TestAddItemDefaultsSourceToNote(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "remember this"})
	gt.NoError(t, err).Required()

	item, err := repo.Item().Get(ctx, "alice", result.ItemID)
	gt.NoError(t, err).Required()
	gt.Value(t, item.Source).Equal(model.SourceNote)
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	t.Run("blank content", func(t *testing.T) {
		_, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "  \n "})
		gt.Error(t, err).Is(model.ErrInvalidInput)
	})

	t.Run("owner without usable characters", func(t *testing.T) {
		_, err := uc.Brain.AddItem(ctx, "@@ !", usecase.AddItemInput{Content: "x"})
		gt.Error(t, err).Is(model.ErrInvalidInput)
	})

	items, err := repo.Item().List(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(0)
}

func TestAddItemFallsBackWhenProviderFails(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo, usecase.WithEmbedder(failingEmbedder{}))

	result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "still stored"})
	gt.NoError(t, err).Required()

	results, err := uc.Brain.QueryItems(ctx, "alice", "still stored", 1)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].ItemID).Equal(result.ItemID)
}

func TestAddItemWithCategories(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)
	owner := model.OwnerID("alice")

	categories, err := uc.Category.List(ctx, owner)
	gt.NoError(t, err).Required()
	gt.Array(t, categories).Length(4).Required()

	t.Run("assigns known categories", func(t *testing.T) {
		result, err := uc.Brain.AddItem(ctx, owner, usecase.AddItemInput{
			Content:     "RSI divergence on the daily chart",
			Source:      model.SourceChart,
			CategoryIDs: []model.CategoryID{categories[1].ID, categories[1].ID},
		})
		gt.NoError(t, err).Required()

		assigned, err := uc.Category.GetItemCategories(ctx, owner, result.ItemID)
		gt.NoError(t, err).Required()
		gt.Array(t, assigned).Length(1).Required()
		gt.Value(t, assigned[0].ID).Equal(categories[1].ID)

		items, err := uc.Category.GetItemsByCategory(ctx, owner, categories[1].ID)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(1).Required()
		gt.Value(t, items[0].ID).Equal(result.ItemID)
	})

	t.Run("unknown category writes nothing", func(t *testing.T) {
		before, err := repo.Item().List(ctx, owner)
		gt.NoError(t, err).Required()

		_, err = uc.Brain.AddItem(ctx, owner, usecase.AddItemInput{
			Content:     "orphan note",
			CategoryIDs: []model.CategoryID{categories[0].ID, "no-such-category"},
		})
		gt.Error(t, err).Is(model.ErrInvalidCategory)

		var invalid *model.InvalidCategoryError
		gt.Bool(t, errors.As(err, &invalid)).True()
		gt.Value(t, invalid.IDs).Equal([]model.CategoryID{"no-such-category"})

		after, err := repo.Item().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, after).Length(len(before))

		embeddings, err := repo.Embedding().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, embeddings).Length(len(before))
	})
}

func TestAddItemRollsBackOnVectorFailure(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	uc := usecase.New(&failingEmbeddingRepo{Repository: base})

	_, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "lost"})
	gt.Error(t, err)

	items, err := base.Item().List(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(0)
}

func TestAddItemEnrichesURL(t *testing.T) {
	ctx := context.Background()

	t.Run("title and description replace the content", func(t *testing.T) {
		repo := memory.New()
		fetcher := &mockPageFetcher{page: &model.WebPage{
			Domain:      "example.com",
			Title:       "Fed holds rates",
			Description: "The Federal Reserve kept rates unchanged",
			Text:        "Full article text",
		}}
		uc := usecase.New(repo, usecase.WithPageFetcher(fetcher))

		result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{
			Content: "https://example.com/fed",
			Source:  model.SourceURL,
		})
		gt.NoError(t, err).Required()

		item, err := repo.Item().Get(ctx, "alice", result.ItemID)
		gt.NoError(t, err).Required()
		gt.Value(t, item.Content).Equal("Title: Fed holds rates\n\nDescription: The Federal Reserve kept rates unchanged\n\nURL: https://example.com/fed")
		gt.Value(t, item.Metadata["domain"]).Equal(any("example.com"))
		gt.Value(t, item.Metadata["full_content"]).Equal(any("Full article text"))
		gt.Bool(t, item.Metadata["extracted_at"] != nil).True()
	})

	t.Run("fetch failure keeps the url", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithPageFetcher(&mockPageFetcher{err: goerr.New("timeout")}))

		result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{
			Content: "https://example.com/down",
			Source:  model.SourceURL,
		})
		gt.NoError(t, err).Required()

		item, err := repo.Item().Get(ctx, "alice", result.ItemID)
		gt.NoError(t, err).Required()
		gt.Value(t, item.Content).Equal("https://example.com/down")
		gt.Value(t, item.Metadata["error"]).Equal(any("timeout"))
	})
}

func TestQueryItemsRanking(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	embedder := &vectorEmbedder{dim: 2, vectors: map[string][]float32{
		"east":      {1, 0},
		"north":     {0, 1},
		"northeast": {1, 1},
		"query":     {1, 0},
	}}
	uc := usecase.New(repo, usecase.WithEmbedder(embedder))
	owner := model.OwnerID("alice")

	ids := map[string]model.ItemID{}
	for _, content := range []string{"north", "northeast", "east"} {
		result, err := uc.Brain.AddItem(ctx, owner, usecase.AddItemInput{Content: content})
		gt.NoError(t, err).Required()
		ids[content] = result.ItemID
	}

	results, err := uc.Brain.QueryItems(ctx, owner, "query", 0)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(3).Required()

	gt.Value(t, results[0].ItemID).Equal(ids["east"])
	gt.Value(t, results[1].ItemID).Equal(ids["northeast"])
	gt.Value(t, results[2].ItemID).Equal(ids["north"])

	gt.Bool(t, math.Abs(results[0].Similarity-1) < 1e-9).True()
	gt.Bool(t, math.Abs(results[1].Similarity-1/math.Sqrt2) < 1e-6).True()
	gt.Bool(t, math.Abs(results[2].Similarity) < 1e-9).True()

	t.Run("limit truncates", func(t *testing.T) {
		results, err := uc.Brain.QueryItems(ctx, owner, "query", 1)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].ItemID).Equal(ids["east"])
	})

	t.Run("negative limit is rejected", func(t *testing.T) {
		_, err := uc.Brain.QueryItems(ctx, owner, "query", -1)
		gt.Error(t, err).Is(model.ErrInvalidInput)
	})

	t.Run("blank query returns nothing", func(t *testing.T) {
		results, err := uc.Brain.QueryItems(ctx, owner, "   ", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})
}

func TestQueryItemsTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	embedder := &vectorEmbedder{dim: 2, vectors: map[string][]float32{
		"first":  {1, 1},
		"second": {1, 1},
		"third":  {1, 1},
		"query":  {1, 0},
	}}
	uc := usecase.New(repo, usecase.WithEmbedder(embedder))

	var ids []model.ItemID
	for _, content := range []string{"first", "second", "third"} {
		result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: content})
		gt.NoError(t, err).Required()
		ids = append(ids, result.ItemID)
	}

	results, err := uc.Brain.QueryItems(ctx, "alice", "query", 0)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(3).Required()
	for i, r := range results {
		gt.Value(t, r.ItemID).Equal(ids[i])
	}
}

func TestQueryItemsDefaultAndMaxLimit(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo, usecase.WithQueryLimits(5, 7))

	for i := range 10 {
		_, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: strings.Repeat("x", i+1)})
		gt.NoError(t, err).Required()
	}

	results, err := uc.Brain.QueryItems(ctx, "alice", "xxx", 0)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(5)

	results, err = uc.Brain.QueryItems(ctx, "alice", "xxx", 1000)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(7)
}

func TestQueryItemsEmptyBrain(t *testing.T) {
	uc := usecase.New(memory.New())
	results, err := uc.Brain.QueryItems(context.Background(), "nobody", "anything", 0)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(0)
}

func TestQueryItemsSkipsOrphanVectors(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "kept"})
	gt.NoError(t, err).Required()

	orphan := model.NewItemID()
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	gt.NoError(t, repo.Embedding().Put(ctx, "alice", model.NewEmbedding(orphan, vec, time.Now()))).Required()

	results, err := uc.Brain.QueryItems(ctx, "alice", "kept", 10)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].ItemID).Equal(result.ItemID)
}

func TestQueryItemsConcurrentIngestion(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: strings.Repeat("n", i+1)})
			gt.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := repo.Item().List(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(20)

	embeddings, err := repo.Embedding().List(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, embeddings).Length(20)
}

func TestAddMedia(t *testing.T) {
	ctx := context.Background()

	t.Run("image is described and stored", func(t *testing.T) {
		repo := memory.New()
		store := blob.NewMemory()
		uc := usecase.New(repo,
			usecase.WithBlobStorage(store),
			usecase.WithImageDescriber(&mockDescriber{description: "A candlestick chart of BTC"}),
		)

		result, err := uc.Brain.AddMedia(ctx, "alice", usecase.AddMediaInput{
			Filename: "btc.png",
			Data:     []byte("\x89PNG fake"),
		})
		gt.NoError(t, err).Required()

		item, err := repo.Item().Get(ctx, "alice", result.ItemID)
		gt.NoError(t, err).Required()
		gt.Value(t, item.Source).Equal(model.SourceImage)
		gt.String(t, item.Content).Contains("A candlestick chart of BTC")
		gt.Value(t, item.Metadata["filename"]).Equal(any("btc.png"))
		gt.Value(t, item.Metadata["content_type"]).Equal(any("image/png"))
		gt.Value(t, item.Metadata["blob_key"]).Equal(any(model.MediaKey("alice", result.ItemID)))

		data, err := store.Get(ctx, model.MediaKey("alice", result.ItemID))
		gt.NoError(t, err).Required()
		gt.Value(t, data).Equal([]byte("\x89PNG fake"))

		t.Run("delete removes the blob", func(t *testing.T) {
			gt.NoError(t, uc.Brain.DeleteItem(ctx, "alice", result.ItemID)).Required()

			deadline := time.Now().Add(2 * time.Second)
			for {
				_, err := store.Get(ctx, model.MediaKey("alice", result.ItemID))
				if errors.Is(err, model.ErrNotFound) {
					break
				}
				if time.Now().After(deadline) {
					t.Fatal("blob was not deleted")
				}
				time.Sleep(10 * time.Millisecond)
			}
		})
	})

	t.Run("vision failure degrades to the filename", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithImageDescriber(&mockDescriber{err: goerr.New("quota")}))

		result, err := uc.Brain.AddMedia(ctx, "alice", usecase.AddMediaInput{Filename: "scan.JPG", Data: []byte("jpeg")})
		gt.NoError(t, err).Required()

		item, err := repo.Item().Get(ctx, "alice", result.ItemID)
		gt.NoError(t, err).Required()
		gt.String(t, item.Content).Contains("scan.JPG")
	})

	t.Run("video gets a fixed description", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)

		result, err := uc.Brain.AddMedia(ctx, "alice", usecase.AddMediaInput{Filename: "talk.mp4", Data: []byte("mp4")})
		gt.NoError(t, err).Required()

		item, err := repo.Item().Get(ctx, "alice", result.ItemID)
		gt.NoError(t, err).Required()
		gt.Value(t, item.Source).Equal(model.SourceVideo)
		gt.Value(t, item.Content).Equal("Video file: talk.mp4. This video has been stored in your knowledge brain.")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		uc := usecase.New(memory.New())
		_, err := uc.Brain.AddMedia(ctx, "alice", usecase.AddMediaInput{Filename: "notes.pdf", Data: []byte("pdf")})
		gt.Error(t, err).Is(model.ErrUnsupportedMedia)
	})

	t.Run("too large", func(t *testing.T) {
		uc := usecase.New(memory.New(), usecase.WithMaxMediaBytes(4))
		_, err := uc.Brain.AddMedia(ctx, "alice", usecase.AddMediaInput{Filename: "a.png", Data: []byte("12345")})
		gt.Error(t, err).Is(model.ErrTooLarge)
	})
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	categories, err := uc.Category.List(ctx, "alice")
	gt.NoError(t, err).Required()

	result, err := uc.Brain.AddItem(ctx, "alice", usecase.AddItemInput{
		Content:     "to be removed",
		CategoryIDs: []model.CategoryID{categories[0].ID},
	})
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.Brain.DeleteItem(ctx, "alice", result.ItemID)).Required()

	_, err = repo.Item().Get(ctx, "alice", result.ItemID)
	gt.Error(t, err).Is(model.ErrNotFound)

	embeddings, err := repo.Embedding().List(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, embeddings).Length(0)

	items, err := uc.Category.GetItemsByCategory(ctx, "alice", categories[0].ID)
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(0)

	err = uc.Brain.DeleteItem(ctx, "alice", result.ItemID)
	gt.Error(t, err).Is(model.ErrNotFound)
}

func TestPurgeAndStatus(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	for _, in := range []usecase.AddItemInput{
		{Content: "note one"},
		{Content: "note two"},
		{Content: "bought ETH", Source: model.SourceTrade},
	} {
		_, err := uc.Brain.AddItem(ctx, "alice", in)
		gt.NoError(t, err).Required()
	}
	_, err := uc.Brain.AddItem(ctx, "bob", usecase.AddItemInput{Content: "bob's note"})
	gt.NoError(t, err).Required()

	status, err := uc.Brain.Status(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Value(t, status.TotalItems).Equal(3)
	gt.Value(t, status.Embeddings).Equal(3)
	gt.Value(t, status.Sources[model.SourceNote]).Equal(2)
	gt.Value(t, status.Sources[model.SourceTrade]).Equal(1)
	gt.Bool(t, status.LastAdded != nil).True()
	gt.Bool(t, status.SizeKB > 0).True()

	removed, err := uc.Brain.Purge(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Value(t, removed).Equal(3)

	status, err = uc.Brain.Status(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Value(t, status.TotalItems).Equal(0)
	gt.Value(t, status.Embeddings).Equal(0)
	gt.Bool(t, status.LastAdded == nil).True()

	status, err = uc.Brain.Status(ctx, "bob")
	gt.NoError(t, err).Required()
	gt.Value(t, status.TotalItems).Equal(1)
}

// ingestingEmbeddingRepository adds an item through another use case the
// first time the vectors are listed
type ingestingEmbeddingRepository struct {
	interfaces.EmbeddingRepository
	once   sync.Once
	ingest func()
}

func (r *ingestingEmbeddingRepository) List(ctx context.Context, owner model.OwnerID) ([]*model.Embedding, error) {
	r.once.Do(r.ingest)
	return r.EmbeddingRepository.List(ctx, owner)
}

type ingestingRepo struct {
	interfaces.Repository
	embedding *ingestingEmbeddingRepository
}

func (r *ingestingRepo) Embedding() interfaces.EmbeddingRepository {
	return r.embedding
}

func TestPurgeKeepsItemsAddedMeanwhile(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	writer := usecase.New(base)

	_, err := writer.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "old note"})
	gt.NoError(t, err).Required()

	var fresh model.ItemID
	repo := &ingestingRepo{
		Repository: base,
		embedding: &ingestingEmbeddingRepository{
			EmbeddingRepository: base.Embedding(),
			ingest: func() {
				result, err := writer.Brain.AddItem(ctx, "alice", usecase.AddItemInput{Content: "fresh note"})
				gt.NoError(t, err).Required()
				fresh = result.ItemID
			},
		},
	}
	uc := usecase.New(repo)

	removed, err := uc.Brain.Purge(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Value(t, removed).Equal(1)

	results, err := writer.Brain.QueryItems(ctx, "alice", "fresh note", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].ItemID).Equal(fresh)
}

func TestPurgeRemovesOrphanEmbeddings(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	orphan := model.NewItemID()
	gt.NoError(t, repo.Embedding().Put(ctx, "alice",
		model.NewEmbedding(orphan, make([]float32, model.EmbeddingDimension), time.Now()))).Required()

	removed, err := uc.Brain.Purge(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Value(t, removed).Equal(0)

	embeddings, err := repo.Embedding().List(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, embeddings).Length(0)
}
