package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultOpenAIEmbeddingModel is used when no model is configured.
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	// DefaultOpenAIEmbeddingDimension matches the model default.
	DefaultOpenAIEmbeddingDimension = 1536
)

// OpenAIEmbedder generates embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: DefaultOpenAIEmbeddingDimension,
	}
}

// EmbedText generates an embedding for a text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned for input")
	}

	return resp.Data[0].Embedding, nil
}
