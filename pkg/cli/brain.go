package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/cli/config"
	"github.com/secmon-lab/tedbrain/pkg/service/webpage"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// brainConfig gathers the flags every command touching the brain needs
type brainConfig struct {
	app     config.App
	repo    config.Repository
	gemini  config.Gemini
	storage config.Storage
}

func (b *brainConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, b.app.Flags()...)
	flags = append(flags, b.repo.Flags()...)
	flags = append(flags, b.gemini.Flags()...)
	flags = append(flags, b.storage.Flags()...)
	return flags
}

// build wires the use cases. The returned function releases the repository,
// the blob storage and the embedding cache.
func (b *brainConfig) build(ctx context.Context) (*usecase.UseCases, *config.AppConfig, func(), error) {
	appCfg, err := b.app.Configure()
	if err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to load configuration")
	}

	embedder, closeEmbedder, err := b.gemini.Embedder(ctx, appCfg.Embedding)
	if err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to configure embedder")
	}
	describer, err := b.gemini.Describer(ctx)
	if err != nil {
		closeEmbedder()
		return nil, nil, nil, goerr.Wrap(err, "failed to configure image describer")
	}

	repo, err := b.repo.Configure(ctx)
	if err != nil {
		closeEmbedder()
		return nil, nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	blobStore, closeBlob, err := b.storage.Configure(ctx)
	if err != nil {
		closeEmbedder()
		_ = repo.Close()
		return nil, nil, nil, goerr.Wrap(err, "failed to initialize media storage")
	}

	opts := []usecase.Option{
		usecase.WithEmbedder(embedder),
		usecase.WithPageFetcher(webpage.New(
			webpage.WithTimeout(time.Duration(appCfg.URL.FetchTimeout)),
			webpage.WithMaxText(appCfg.URL.MaxText),
		)),
		usecase.WithBlobStorage(blobStore),
		usecase.WithQueryLimits(appCfg.Query.DefaultLimit, appCfg.Query.MaxLimit),
		usecase.WithMaxMediaBytes(appCfg.Media.MaxBytes),
		usecase.WithProviderTimeout(time.Duration(appCfg.Embedding.Timeout)),
	}
	if describer != nil {
		opts = append(opts, usecase.WithImageDescriber(describer))
		logging.Default().LogAttrs(ctx, slog.LevelInfo, "Image description enabled", b.gemini.LogAttrs()...)
	}

	closer := func() {
		closeBlob()
		closeEmbedder()
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}

	return usecase.New(repo, opts...), appCfg, closer, nil
}
