package usecase

import (
	"time"

	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/service/embedding"
)

const (
	DefaultQueryLimit       = 5
	DefaultMaxQueryLimit    = 100
	DefaultMaxMediaBytes    = 10 * 1024 * 1024
	DefaultProviderTimeout  = 30 * time.Second
	defaultPurgeConcurrency = 8
)

type UseCases struct {
	repo            interfaces.Repository
	embedder        interfaces.Embedder
	fetcher         interfaces.PageFetcher
	describer       interfaces.ImageDescriber
	blob            interfaces.BlobStorage
	defaultLimit    int
	maxLimit        int
	maxMediaBytes   int64
	providerTimeout time.Duration

	Brain    *BrainUseCase
	Category *CategoryUseCase
}

type Option func(*UseCases)

// WithEmbedder sets the embedding provider. It is always wrapped by the
// hash fallback, so ingestion and queries never fail on provider errors.
func WithEmbedder(embedder interfaces.Embedder) Option {
	return func(uc *UseCases) {
		uc.embedder = embedder
	}
}

// WithPageFetcher enables enrichment of items with source "url"
func WithPageFetcher(fetcher interfaces.PageFetcher) Option {
	return func(uc *UseCases) {
		uc.fetcher = fetcher
	}
}

// WithImageDescriber enables descriptions of uploaded images
func WithImageDescriber(describer interfaces.ImageDescriber) Option {
	return func(uc *UseCases) {
		uc.describer = describer
	}
}

// WithBlobStorage keeps the bytes of uploaded media
func WithBlobStorage(blob interfaces.BlobStorage) Option {
	return func(uc *UseCases) {
		uc.blob = blob
	}
}

func WithQueryLimits(defaultLimit, maxLimit int) Option {
	return func(uc *UseCases) {
		if defaultLimit > 0 {
			uc.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			uc.maxLimit = maxLimit
		}
	}
}

func WithMaxMediaBytes(n int64) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.maxMediaBytes = n
		}
	}
}

// WithProviderTimeout bounds image description calls
func WithProviderTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		if d > 0 {
			uc.providerTimeout = d
		}
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:            repo,
		defaultLimit:    DefaultQueryLimit,
		maxLimit:        DefaultMaxQueryLimit,
		maxMediaBytes:   DefaultMaxMediaBytes,
		providerTimeout: DefaultProviderTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if _, ok := uc.embedder.(*embedding.Fallback); !ok {
		uc.embedder = embedding.NewFallback(uc.embedder)
	}
	if uc.defaultLimit > uc.maxLimit {
		uc.defaultLimit = uc.maxLimit
	}

	uc.Brain = &BrainUseCase{
		repo:            repo,
		embedder:        uc.embedder,
		fetcher:         uc.fetcher,
		describer:       uc.describer,
		blob:            uc.blob,
		defaultLimit:    uc.defaultLimit,
		maxLimit:        uc.maxLimit,
		maxMediaBytes:   uc.maxMediaBytes,
		providerTimeout: uc.providerTimeout,
	}
	uc.Category = NewCategoryUseCase(repo)

	return uc
}
