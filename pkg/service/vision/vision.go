package vision

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.5-flash"

	describePrompt = `Describe this image so that it can be found again by a text search in a personal trading knowledge base.
Mention the ticker or asset, timeframe, chart patterns, indicators, notable price levels and any visible text.
Answer in plain text without markdown.`
)

// contentGenerator is the part of genai.Models used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Describer turns images into text with a Gemini vision model
type Describer struct {
	models contentGenerator
	model  string
}

var _ interfaces.ImageDescriber = &Describer{}

type Option func(*Describer)

func WithModel(model string) Option {
	return func(d *Describer) {
		d.model = model
	}
}

// New connects to Gemini on Vertex AI
func New(ctx context.Context, projectID, location string, opts ...Option) (*Describer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client",
			goerr.V("project", projectID), goerr.V("location", location))
	}
	return newDescriber(client.Models, opts...), nil
}

func newDescriber(models contentGenerator, opts ...Option) *Describer {
	d := &Describer{
		models: models,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Describer) Describe(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromText(describePrompt),
				genai.NewPartFromBytes(data, mimeType),
			},
		},
	}

	resp, err := d.models.GenerateContent(ctx, d.model, contents, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to describe image", goerr.V("model", d.model))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", goerr.New("empty image description", goerr.V("model", d.model))
	}
	return text, nil
}
