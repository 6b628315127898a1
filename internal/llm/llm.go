// Package llm abstracts the language models used for answer generation
// and question reformulation.
package llm

import "context"

// Client is a text-completion model.
type Client interface {
	// Generate returns the full completion for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Stream delivers the completion incrementally. fn is called once per
	// chunk in order; a non-nil return aborts the stream with that error.
	Stream(ctx context.Context, prompt string, fn func(chunk string) error) error
}
