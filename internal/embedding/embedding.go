// Package embedding maps text to fixed-length numeric vectors.
package embedding

import (
	"context"
	"fmt"
	"sync"
)

// DefaultMaxConcurrent bounds parallel embedding requests.
const DefaultMaxConcurrent = 3

// Embedder maps text to a fixed-length numeric vector. Production and
// deterministic test implementations must be substitutable without changing
// index behavior.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// EmbedAll embeds every text in parallel, preserving input order. Any
// failure fails the whole batch.
func EmbedAll(ctx context.Context, e Embedder, texts []string, maxConcurrent int) ([][]float64, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	vectors := make([][]float64, len(texts))
	semaphore := make(chan struct{}, maxConcurrent)
	errChan := make(chan error, len(texts))

	var wg sync.WaitGroup
	for i := range texts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int) {
			defer func() {
				wg.Done()
				<-semaphore
			}()

			vector, err := e.EmbedText(ctx, texts[i])
			if err != nil {
				errChan <- fmt.Errorf("failed to embed text %d: %w", i, err)
				return
			}
			vectors[i] = vector
		}(i)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	return vectors, nil
}
