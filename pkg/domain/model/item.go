package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ItemID is a UUID-based identifier for Item
type ItemID string

// NewItemID generates a new UUID v4 ItemID
func NewItemID() ItemID {
	return ItemID(uuid.New().String())
}

// EmbeddingID returns the ID of the vector record owned by the item
func (id ItemID) EmbeddingID() EmbeddingID {
	return EmbeddingID(string(id) + "_embedding")
}

// Source tags where an item came from. Any non-empty tag is accepted.
type Source string

const (
	SourceNote  Source = "note"
	SourceURL   Source = "url"
	SourceImage Source = "image"
	SourceVideo Source = "video"
	SourceChart Source = "chart"
	SourceTrade Source = "trade"
)

// Item is a single observation stored in an owner's brain. Items are
// immutable once written.
type Item struct {
	ID        ItemID
	Owner     OwnerID
	Content   string
	Source    Source
	Metadata  map[string]any
	CreatedAt time.Time
}

// Validate checks required fields. Backends call it on read to quarantine
// malformed records.
func (x *Item) Validate() error {
	if x.ID == "" {
		return goerr.Wrap(ErrInvalidInput, "item ID is empty")
	}
	if strings.TrimSpace(x.Content) == "" {
		return goerr.Wrap(ErrInvalidInput, "item content is empty", goerr.V(ItemIDKey, x.ID))
	}
	if x.CreatedAt.IsZero() {
		return goerr.Wrap(ErrInvalidInput, "item created_at is zero", goerr.V(ItemIDKey, x.ID))
	}
	return nil
}

// Copy returns a deep copy of the item
func (x *Item) Copy() *Item {
	if x == nil {
		return nil
	}
	c := *x
	c.Metadata = copyMetadata(x.Metadata)
	return &c
}

func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch vv := v.(type) {
		case map[string]any:
			dst[k] = copyMetadata(vv)
		case []any:
			dst[k] = append([]any(nil), vv...)
		default:
			dst[k] = v
		}
	}
	return dst
}
