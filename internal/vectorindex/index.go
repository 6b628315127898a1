// Package vectorindex provides the per-game nearest-neighbor index over
// embedded rulebook sections, persisted as an opaque blob.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"rulesbot/internal/embedding"
	"rulesbot/internal/models"
)

// blobVersion tags the persisted format; bump on incompatible changes.
const blobVersion = 1

var (
	// ErrNoIndex reports that no blob has ever been persisted for a game.
	// Distinct from a loadable-but-empty index.
	ErrNoIndex = errors.New("no persisted index")

	// ErrIndexUnavailable reports that a persisted blob exists but cannot
	// be deserialized (corruption or format mismatch). Never silently
	// treated as empty.
	ErrIndexUnavailable = errors.New("persisted index cannot be loaded")
)

// BlobStore persists the serialized index. Save must be atomic: a
// concurrent Load never observes a half-written blob.
type BlobStore interface {
	Load(ctx context.Context, gameID int64) ([]byte, error)
	Save(ctx context.Context, gameID int64, blob []byte) error
	Delete(ctx context.Context, gameID int64) error
}

type entry struct {
	Section models.Section
	Vector  []float64
}

type indexBlob struct {
	Version int
	Entries []entry
}

// Index is the embedding-backed nearest-neighbor structure for one game.
// The persisted blob is loaded lazily on first access; mutations persist
// before they become visible.
type Index struct {
	gameID        int64
	embedder      embedding.Embedder
	store         BlobStore
	maxConcurrent int

	mu      sync.Mutex
	loaded  bool
	entries []entry
}

// Option configures an Index.
type Option func(*Index)

// WithMaxConcurrentEmbeds bounds parallel embedding calls during adds.
func WithMaxConcurrentEmbeds(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxConcurrent = n
		}
	}
}

// New creates the index handle for a game. No I/O happens until first use.
func New(gameID int64, embedder embedding.Embedder, store BlobStore, opts ...Option) *Index {
	ix := &Index{
		gameID:        gameID,
		embedder:      embedder,
		store:         store,
		maxConcurrent: embedding.DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// GameID returns the owning game id.
func (ix *Index) GameID() int64 {
	return ix.gameID
}

// AddSections embeds the sections, tags them with the index's game id and
// the given document id, and merges them into the structure. The updated
// blob is persisted before the in-memory state changes, so a failed add
// commits nothing.
//
// The index does not deduplicate: re-adding a document's sections without
// calling Clear first produces duplicates. Clearing before re-ingestion is
// the caller's responsibility.
func (ix *Index) AddSections(ctx context.Context, sections []models.Section, documentID int64) error {
	if len(sections) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.ensureLoaded(ctx); err != nil {
		return err
	}

	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = s.Content
	}
	vectors, err := embedding.EmbedAll(ctx, ix.embedder, texts, ix.maxConcurrent)
	if err != nil {
		return err
	}

	merged := make([]entry, 0, len(ix.entries)+len(sections))
	merged = append(merged, ix.entries...)
	for i, s := range sections {
		s.GameID = ix.gameID
		s.DocumentID = documentID
		s.Score = 0
		merged = append(merged, entry{Section: s, Vector: vectors[i]})
	}

	if err := ix.persist(ctx, merged); err != nil {
		return err
	}
	ix.entries = merged
	return nil
}

// SimilaritySearch returns up to k sections nearest to the query, nearest
// first, each annotated with its relevancy score. An index that was never
// initialized returns an empty result without error.
func (ix *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Section, error) {
	return ix.SimilaritySearchWithFilter(ctx, query, k, nil)
}

// SimilaritySearchWithFilter is SimilaritySearch restricted to sections
// accepted by the filter predicate.
func (ix *Index) SimilaritySearchWithFilter(ctx context.Context, query string, k int, filter func(models.Section) bool) ([]models.Section, error) {
	if k <= 0 {
		return nil, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if len(ix.entries) == 0 {
		return nil, nil
	}

	queryVector, err := ix.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type scored struct {
		index int
		score float64
	}
	var candidates []scored
	for i, e := range ix.entries {
		if filter != nil && !filter(e.Section) {
			continue
		}
		candidates = append(candidates, scored{index: i, score: cosineSimilarity(queryVector, e.Vector)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]models.Section, 0, k)
	for _, c := range candidates[:k] {
		section := ix.entries[c.index].Section
		section.Score = c.score
		results = append(results, section)
	}
	return results, nil
}

// Size returns the number of indexed sections.
func (ix *Index) Size(ctx context.Context) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return len(ix.entries), nil
}

// Clear discards the persisted structure entirely. A subsequent
// AddSections rebuilds from empty.
func (ix *Index) Clear(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.store.Delete(ctx, ix.gameID); err != nil {
		return fmt.Errorf("failed to delete persisted index: %w", err)
	}
	ix.entries = nil
	ix.loaded = true
	return nil
}

func (ix *Index) ensureLoaded(ctx context.Context) error {
	if ix.loaded {
		return nil
	}

	data, err := ix.store.Load(ctx, ix.gameID)
	if errors.Is(err, ErrNoIndex) {
		ix.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load persisted index: %w", err)
	}

	var blob indexBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if blob.Version != blobVersion {
		return fmt.Errorf("%w: unsupported blob version %d", ErrIndexUnavailable, blob.Version)
	}

	ix.entries = blob.Entries
	ix.loaded = true
	return nil
}

func (ix *Index) persist(ctx context.Context, entries []entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(indexBlob{Version: blobVersion, Entries: entries}); err != nil {
		return fmt.Errorf("failed to serialize index: %w", err)
	}
	if err := ix.store.Save(ctx, ix.gameID, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
