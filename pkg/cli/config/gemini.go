package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/service/embedding"
	"github.com/secmon-lab/tedbrain/pkg/service/vision"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration for the Gemini LLM client
type Gemini struct {
	projectID   string
	location    string
	visionModel string
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API (hash embeddings are used when empty)",
			Sources:     cli.EnvVars("TEDBRAIN_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("TEDBRAIN_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.StringFlag{
			Name:        "gemini-vision-model",
			Usage:       "Gemini model describing uploaded images",
			Value:       vision.DefaultModel,
			Sources:     cli.EnvVars("TEDBRAIN_GEMINI_VISION_MODEL"),
			Destination: &g.visionModel,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.String("vision_model", g.visionModel),
	}
}

// Configure creates a new Gemini LLM client from the configured flags.
// Returns nil if projectID is not configured.
func (g *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if g.projectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, g.projectID, g.location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	return client, nil
}

// Embedder builds the embedding chain: Gemini behind a cache, behind the
// hash fallback. Without a project only the hash embedding is used. The
// returned function releases the cache.
func (g *Gemini) Embedder(ctx context.Context, cfg EmbeddingConfig) (interfaces.Embedder, func(), error) {
	client, err := g.Configure(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newEmbedder(client, cfg)
}

func newEmbedder(client gollem.LLMClient, cfg EmbeddingConfig) (interfaces.Embedder, func(), error) {
	timeout := embedding.WithTimeout(time.Duration(cfg.Timeout))
	if client == nil {
		return embedding.NewFallback(embedding.NewHash(cfg.Dimension), timeout), func() {}, nil
	}

	cache, err := embedding.NewCache(embedding.NewLLM(client, embedding.WithDimension(cfg.Dimension)), cfg.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	return embedding.NewFallback(cache, timeout), cache.Close, nil
}

// Describer returns the image describer, or nil without a project
func (g *Gemini) Describer(ctx context.Context) (interfaces.ImageDescriber, error) {
	if g.projectID == "" {
		return nil, nil
	}

	describer, err := vision.New(ctx, g.projectID, g.location, vision.WithModel(g.visionModel))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image describer")
	}
	return describer, nil
}
