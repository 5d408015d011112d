package vision

import (
	"context"

	"google.golang.org/genai"
)

type GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

func (f GenerateContentFunc) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f(ctx, model, contents, config)
}

func NewWithGenerator(gen GenerateContentFunc, opts ...Option) *Describer {
	return newDescriber(gen, opts...)
}
