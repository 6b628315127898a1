package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// Ollama generates completions through the Ollama API.
type Ollama struct {
	Client *api.Client
	Model  string
}

// NewOllama creates an Ollama client. An empty host falls back to the
// OLLAMA_HOST environment configuration.
func NewOllama(host, model string) (*Ollama, error) {
	hostURL := envconfig.Host()
	if host != "" {
		parsed, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = parsed
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &Ollama{
		Client: client,
		Model:  model,
	}, nil
}

// Generate returns the full completion for a prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	var responseBuilder strings.Builder
	err := o.Stream(ctx, prompt, func(chunk string) error {
		_, err := responseBuilder.WriteString(chunk)
		return err
	})
	if err != nil {
		return "", err
	}
	return responseBuilder.String(), nil
}

// Stream delivers the completion incrementally.
func (o *Ollama) Stream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": 0.1,
			"num_predict": 1024,
		},
	}

	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		return fn(resp.Response)
	})
	if err != nil {
		return fmt.Errorf("failed to generate response: %w", err)
	}
	return nil
}
