package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// DefaultFakeSize is the vector length of the deterministic test embedder.
const DefaultFakeSize = 64

// Deterministic is a fake embedder for tests: the same text always maps to
// the same unit vector, so similarity queries are reproducible without any
// model behind them.
type Deterministic struct {
	Size int
}

// NewDeterministic creates a deterministic fake embedder.
func NewDeterministic(size int) *Deterministic {
	if size < 1 {
		size = DefaultFakeSize
	}
	return &Deterministic{Size: size}
}

// EmbedText derives a unit vector from a hash of the text.
func (d *Deterministic) EmbedText(_ context.Context, text string) ([]float64, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vector := make([]float64, d.Size)
	var norm float64
	for i := range vector {
		vector[i] = rng.NormFloat64()
		norm += vector[i] * vector[i]
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}
	return vector, nil
}
