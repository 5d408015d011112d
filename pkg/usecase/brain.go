package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/service/webpage"
	"github.com/secmon-lab/tedbrain/pkg/utils/async"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
	"github.com/secmon-lab/tedbrain/pkg/utils/safe"
	"golang.org/x/sync/errgroup"
)

var (
	imageExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true}
	videoExtensions = map[string]bool{"mp4": true, "mov": true, "avi": true, "webm": true, "mkv": true}
)

// BrainUseCase runs ingestion and retrieval over an owner's brain
type BrainUseCase struct {
	repo            interfaces.Repository
	embedder        interfaces.Embedder
	fetcher         interfaces.PageFetcher
	describer       interfaces.ImageDescriber
	blob            interfaces.BlobStorage
	defaultLimit    int
	maxLimit        int
	maxMediaBytes   int64
	providerTimeout time.Duration
}

// AddItemInput represents input for adding an item
type AddItemInput struct {
	Content     string
	Source      model.Source
	Metadata    map[string]any
	CategoryIDs []model.CategoryID
}

// AddMediaInput represents an uploaded media file
type AddMediaInput struct {
	Filename    string
	ContentType string
	Data        []byte
	CategoryIDs []model.CategoryID
}

// AddItem embeds and stores an observation, then assigns its categories.
// A failure after the item is written removes what was written.
func (uc *BrainUseCase) AddItem(ctx context.Context, owner model.OwnerID, input AddItemInput) (*model.AddItemResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "content is required", goerr.V(model.OwnerKey, owner))
	}
	source := input.Source
	if source == "" {
		source = model.SourceNote
	}

	categoryIDs := model.UniqueCategoryIDs(input.CategoryIDs)
	if err := uc.checkCategories(ctx, owner, categoryIDs); err != nil {
		return nil, err
	}

	metadata := copyMetadata(input.Metadata)
	if source == model.SourceURL && uc.fetcher != nil {
		content = uc.enrichURL(ctx, content, metadata)
	}

	return uc.ingest(ctx, owner, model.NewItemID(), content, source, metadata, categoryIDs)
}

// AddMedia stores an uploaded image or video and ingests a text description
// of it
func (uc *BrainUseCase) AddMedia(ctx context.Context, owner model.OwnerID, input AddMediaInput) (*model.AddItemResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "media file is empty", goerr.V("filename", input.Filename))
	}
	if int64(len(input.Data)) > uc.maxMediaBytes {
		return nil, goerr.Wrap(model.ErrTooLarge, "media file is too large",
			goerr.V("filename", input.Filename),
			goerr.V("size", len(input.Data)),
			goerr.V("max", uc.maxMediaBytes))
	}

	filename := filepath.Base(strings.TrimSpace(input.Filename))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	var source model.Source
	switch {
	case imageExtensions[ext]:
		source = model.SourceImage
	case videoExtensions[ext]:
		source = model.SourceVideo
	default:
		return nil, goerr.Wrap(model.ErrUnsupportedMedia, "unsupported file extension",
			goerr.V("filename", input.Filename))
	}

	categoryIDs := model.UniqueCategoryIDs(input.CategoryIDs)
	if err := uc.checkCategories(ctx, owner, categoryIDs); err != nil {
		return nil, err
	}

	contentType := input.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension("." + ext); byExt != "" {
			contentType = byExt
		} else {
			contentType = http.DetectContentType(input.Data)
		}
	}

	itemID := model.NewItemID()
	blobKey := model.MediaKey(owner, itemID)
	metadata := map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"size_bytes":   len(input.Data),
	}

	if uc.blob != nil {
		if err := uc.blob.Put(ctx, blobKey, input.Data, contentType); err != nil {
			return nil, goerr.Wrap(err, "failed to store media", goerr.V(model.ItemIDKey, itemID))
		}
		metadata["blob_key"] = blobKey
	}

	var description string
	if source == model.SourceImage {
		description = uc.describeImage(ctx, filename, contentType, input.Data)
	} else {
		description = fmt.Sprintf("Video file: %s. This video has been stored in your knowledge brain.", filename)
	}

	result, err := uc.ingest(ctx, owner, itemID, description, source, metadata, categoryIDs)
	if err != nil {
		if uc.blob != nil {
			safe.Rollback(ctx, "delete media", func(ctx context.Context) error {
				return uc.blob.Delete(ctx, blobKey)
			})
		}
		return nil, err
	}
	return result, nil
}

// QueryItems returns the owner's items most similar to text, best first.
// limit 0 means the default limit.
func (uc *BrainUseCase) QueryItems(ctx context.Context, owner model.OwnerID, text string, limit int) ([]*model.QueryResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "limit must not be negative", goerr.V("limit", limit))
	}
	if limit == 0 {
		limit = uc.defaultLimit
	}
	if limit > uc.maxLimit {
		limit = uc.maxLimit
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return []*model.QueryResult{}, nil
	}

	embeddings, err := uc.repo.Embedding().List(ctx, owner)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list embeddings", goerr.V(model.OwnerKey, owner))
	}
	if len(embeddings) == 0 {
		return []*model.QueryResult{}, nil
	}

	query, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V(model.OwnerKey, owner))
	}

	ranked := rankEmbeddings(ctx, query, embeddings)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	ids := make([]model.ItemID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.itemID
	}
	items, err := uc.repo.Item().GetMany(ctx, owner, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get items", goerr.V(model.OwnerKey, owner))
	}

	results := make([]*model.QueryResult, 0, len(ranked))
	for _, r := range ranked {
		item, ok := items[r.itemID]
		if !ok {
			logging.From(ctx).Warn("skipping embedding without item",
				"owner", owner,
				"item_id", r.itemID,
			)
			continue
		}
		results = append(results, &model.QueryResult{
			ItemID:     item.ID,
			Content:    item.Content,
			Source:     item.Source,
			Metadata:   item.Metadata,
			Similarity: r.similarity,
			CreatedAt:  item.CreatedAt,
		})
	}

	return results, nil
}

// DeleteItem removes an item with its vector, category assignments and
// media blob
func (uc *BrainUseCase) DeleteItem(ctx context.Context, owner model.OwnerID, id model.ItemID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	item, err := uc.repo.Item().Get(ctx, owner, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get item", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
	}
	return uc.deleteItem(ctx, owner, item)
}

// Purge deletes every item of the owner and returns how many were removed.
// Categories are kept.
func (uc *BrainUseCase) Purge(ctx context.Context, owner model.OwnerID) (int, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}
	items, err := uc.repo.Item().List(ctx, owner)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list items", goerr.V(model.OwnerKey, owner))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(defaultPurgeConcurrency)
	for _, item := range items {
		eg.Go(func() error {
			return uc.deleteItem(egCtx, owner, item)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	if err := uc.sweepOrphanEmbeddings(ctx, owner); err != nil {
		return 0, err
	}

	logging.From(ctx).Info("brain purged", "owner", owner, "items", len(items))
	return len(items), nil
}

// sweepOrphanEmbeddings deletes vectors whose item no longer exists. Items
// ingested while a purge runs keep their vectors, since an item is always
// written before its vector.
func (uc *BrainUseCase) sweepOrphanEmbeddings(ctx context.Context, owner model.OwnerID) error {
	embeddings, err := uc.repo.Embedding().List(ctx, owner)
	if err != nil {
		return goerr.Wrap(err, "failed to list embeddings", goerr.V(model.OwnerKey, owner))
	}
	if len(embeddings) == 0 {
		return nil
	}

	ids := make([]model.ItemID, len(embeddings))
	for i, e := range embeddings {
		ids[i] = e.ItemID
	}
	items, err := uc.repo.Item().GetMany(ctx, owner, ids)
	if err != nil {
		return goerr.Wrap(err, "failed to get items", goerr.V(model.OwnerKey, owner))
	}

	for _, id := range ids {
		if _, ok := items[id]; ok {
			continue
		}
		if err := uc.repo.Embedding().Delete(ctx, owner, id); err != nil {
			return goerr.Wrap(err, "failed to delete embedding", goerr.V(model.ItemIDKey, id))
		}
		logging.From(ctx).Info("orphan embedding deleted", "owner", owner, "item_id", id)
	}
	return nil
}

// Status summarizes the owner's brain
func (uc *BrainUseCase) Status(ctx context.Context, owner model.OwnerID) (*model.BrainStatus, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var (
		items      []*model.Item
		embeddings []*model.Embedding
		categories []*model.Category
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		items, err = uc.repo.Item().List(egCtx, owner)
		return err
	})
	eg.Go(func() error {
		var err error
		embeddings, err = uc.repo.Embedding().List(egCtx, owner)
		return err
	})
	eg.Go(func() error {
		var err error
		categories, err = uc.repo.Category().List(egCtx, owner)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "failed to read brain", goerr.V(model.OwnerKey, owner))
	}

	status := &model.BrainStatus{
		Owner:      owner,
		TotalItems: len(items),
		Embeddings: len(embeddings),
		Sources:    make(map[model.Source]int),
		Categories: len(categories),
	}
	for _, item := range items {
		status.Sources[item.Source]++
		if status.LastAdded == nil || item.CreatedAt.After(*status.LastAdded) {
			createdAt := item.CreatedAt
			status.LastAdded = &createdAt
		}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to measure brain size", goerr.V(model.OwnerKey, owner))
	}
	status.SizeKB = math.Round(float64(len(raw))/1024*100) / 100

	return status, nil
}

func (uc *BrainUseCase) ingest(ctx context.Context, owner model.OwnerID, id model.ItemID, content string, source model.Source, metadata map[string]any, categoryIDs []model.CategoryID) (*model.AddItemResult, error) {
	vector, err := uc.embedder.Embed(ctx, content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V(model.OwnerKey, owner))
	}

	now := time.Now().UTC()
	item := &model.Item{
		ID:        id,
		Owner:     owner,
		Content:   content,
		Source:    source,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := uc.repo.Item().Put(ctx, owner, item); err != nil {
		return nil, goerr.Wrap(err, "failed to store item", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
	}

	if err := uc.repo.Embedding().Put(ctx, owner, model.NewEmbedding(id, vector, now)); err != nil {
		safe.Rollback(ctx, "delete item", func(ctx context.Context) error {
			return uc.repo.Item().Delete(ctx, owner, id)
		})
		return nil, goerr.Wrap(err, "failed to store embedding", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
	}

	if len(categoryIDs) > 0 {
		if err := uc.repo.Category().Assign(ctx, owner, id, categoryIDs); err != nil {
			safe.Rollback(ctx, "delete embedding", func(ctx context.Context) error {
				return uc.repo.Embedding().Delete(ctx, owner, id)
			})
			safe.Rollback(ctx, "delete item", func(ctx context.Context) error {
				return uc.repo.Item().Delete(ctx, owner, id)
			})
			return nil, goerr.Wrap(err, "failed to assign categories", goerr.V(model.OwnerKey, owner), goerr.V(model.ItemIDKey, id))
		}
	}

	logging.From(ctx).Info("item added",
		"owner", owner,
		"item_id", id,
		"source", source,
		"categories", len(categoryIDs),
	)

	return &model.AddItemResult{ItemID: id, Status: model.AddItemStatusAdded}, nil
}

func (uc *BrainUseCase) deleteItem(ctx context.Context, owner model.OwnerID, item *model.Item) error {
	if err := uc.repo.Embedding().Delete(ctx, owner, item.ID); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V(model.ItemIDKey, item.ID))
	}
	if err := uc.repo.Category().Unassign(ctx, owner, item.ID); err != nil {
		return goerr.Wrap(err, "failed to unassign categories", goerr.V(model.ItemIDKey, item.ID))
	}
	if err := uc.repo.Item().Delete(ctx, owner, item.ID); err != nil {
		return goerr.Wrap(err, "failed to delete item", goerr.V(model.ItemIDKey, item.ID))
	}

	if key, ok := item.Metadata["blob_key"].(string); ok && key != "" && uc.blob != nil {
		async.Dispatch(ctx, "delete media", func(ctx context.Context) error {
			if err := uc.blob.Delete(ctx, key); err != nil && !errors.Is(err, model.ErrNotFound) {
				return goerr.Wrap(err, "failed to delete media", goerr.V(model.ItemIDKey, item.ID))
			}
			return nil
		})
	}
	return nil
}

// checkCategories rejects unknown category IDs before anything is written
func (uc *BrainUseCase) checkCategories(ctx context.Context, owner model.OwnerID, ids []model.CategoryID) error {
	if len(ids) == 0 {
		return nil
	}
	categories, err := uc.repo.Category().List(ctx, owner)
	if err != nil {
		return goerr.Wrap(err, "failed to list categories", goerr.V(model.OwnerKey, owner))
	}

	known := make(map[model.CategoryID]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	var missing []model.CategoryID
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return model.NewInvalidCategoryError(missing)
	}
	return nil
}

// enrichURL replaces a bare URL with the page's title and description. A
// fetch failure is recorded in metadata and keeps the original content.
func (uc *BrainUseCase) enrichURL(ctx context.Context, content string, metadata map[string]any) string {
	page, err := uc.fetcher.Fetch(ctx, content)
	extractedAt := time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		logging.From(ctx).Warn("failed to extract web page", "url", content, "error", err)
		metadata["error"] = err.Error()
		metadata["extracted_at"] = extractedAt
		return content
	}

	metadata["title"] = page.Title
	metadata["description"] = page.Description
	metadata["domain"] = page.Domain
	metadata["full_content"] = page.Text
	metadata["extracted_at"] = extractedAt

	if page.Title != "" && page.Description != "" {
		return webpage.EnrichedContent(page)
	}
	return content
}

func (uc *BrainUseCase) describeImage(ctx context.Context, filename, contentType string, data []byte) string {
	fallback := fmt.Sprintf("Image file: %s. This image has been stored in your knowledge brain.", filename)
	if uc.describer == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, uc.providerTimeout)
	defer cancel()

	description, err := uc.describer.Describe(ctx, data, contentType)
	if err != nil {
		logging.From(ctx).Warn("failed to describe image", "filename", filename, "error", err)
		return fallback
	}
	return fmt.Sprintf("Image: %s\n\n%s", filename, description)
}

func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
