package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaEmbedder generates embeddings through the Ollama API.
type OllamaEmbedder struct {
	Client     *api.Client
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// NewOllamaEmbedder creates an Ollama embedder. An empty host falls back to
// the OLLAMA_HOST environment configuration.
func NewOllamaEmbedder(host, model string) (*OllamaEmbedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		parsed, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = parsed
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaEmbedder{
		Client:     client,
		Model:      model,
		MaxRetries: 3,
		Timeout:    time.Second * 30,
	}, nil
}

// EmbedText generates an embedding for a text, retrying transient failures.
func (e *OllamaEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64
	var err error

	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}

		embedding, err = e.createEmbedding(ctx, text)
		if err == nil {
			return embedding, nil
		}
	}

	return nil, fmt.Errorf("failed to create embedding after %d retries: %w", e.MaxRetries, err)
}

func (e *OllamaEmbedder) createEmbedding(ctx context.Context, text string) ([]float64, error) {
	req := api.EmbeddingRequest{
		Model:  e.Model,
		Prompt: text,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	resp, err := e.Client.Embeddings(ctxWithTimeout, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	return resp.Embedding, nil
}
