package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates completions through the OpenAI chat API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAI) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
	}
}

// Generate returns the full completion for a prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, o.params(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream delivers the completion incrementally.
func (o *OpenAI) Stream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(prompt))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := fn(delta); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("failed to stream response: %w", err)
	}
	return nil
}
