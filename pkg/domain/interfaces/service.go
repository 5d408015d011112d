package interfaces

import (
	"context"

	"github.com/secmon-lab/tedbrain/pkg/domain/model"
)

// PageFetcher extracts metadata from a web page
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.WebPage, error)
}

// ImageDescriber produces a text description of an image
type ImageDescriber interface {
	Describe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// BlobStorage keeps uploaded media files
type BlobStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
