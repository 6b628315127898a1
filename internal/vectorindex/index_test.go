package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesbot/internal/embedding"
	"rulesbot/internal/models"
)

func testSections() []models.Section {
	return []models.Section{
		{Content: "Each player draws five cards at the start of their turn.", Page: 3},
		{Content: "Place the board in the center of the table and shuffle the deck.", Page: 0, SetupPage: true},
		{Content: "A player wins by collecting ten victory points.", Page: 7},
		{Content: "Scoring happens at the end of every round.", Page: 8},
	}
}

func TestIndexRoundTripThroughBlobStore(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewDeterministic(32)
	store := NewFileStore(t.TempDir())

	ix := New(42, embedder, store)
	require.NoError(t, ix.AddSections(ctx, testSections(), 11))

	query := "how many cards does a player draw"
	before, err := ix.SimilaritySearch(ctx, query, 2)
	require.NoError(t, err)
	require.Len(t, before, 2)

	// A fresh handle over the same store must load the persisted blob and
	// answer identically.
	reloaded := New(42, embedder, store)
	after, err := reloaded.SimilaritySearch(ctx, query, 2)
	require.NoError(t, err)
	require.Len(t, after, 2)

	for i := range before {
		assert.Equal(t, before[i].Content, after[i].Content)
		assert.Equal(t, before[i].Page, after[i].Page)
		assert.Equal(t, before[i].SetupPage, after[i].SetupPage)
		assert.InDelta(t, before[i].Score, after[i].Score, 1e-12)
		assert.Equal(t, int64(42), after[i].GameID)
		assert.Equal(t, int64(11), after[i].DocumentID)
	}
}

func TestSearchResultsOrderedByScore(t *testing.T) {
	ctx := context.Background()
	ix := New(1, embedding.NewDeterministic(32), NewFileStore(t.TempDir()))
	require.NoError(t, ix.AddSections(ctx, testSections(), 1))

	results, err := ix.SimilaritySearch(ctx, "victory points", 4)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchWithFilter(t *testing.T) {
	ctx := context.Background()
	ix := New(1, embedding.NewDeterministic(32), NewFileStore(t.TempDir()))
	require.NoError(t, ix.AddSections(ctx, testSections(), 1))

	results, err := ix.SimilaritySearchWithFilter(ctx, "setup", 4, func(s models.Section) bool {
		return s.SetupPage
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].SetupPage)
}

func TestUninitializedIndexReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	ix := New(99, failingEmbedder{}, NewFileStore(t.TempDir()))

	// No blob exists and nothing was added: the query must not be embedded
	// and no error surfaces.
	results, err := ix.SimilaritySearch(ctx, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClearResetsIndex(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	ix := New(5, embedding.NewDeterministic(32), store)
	require.NoError(t, ix.AddSections(ctx, testSections(), 1))

	require.NoError(t, ix.Clear(ctx))

	results, err := ix.SimilaritySearch(ctx, "cards", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = store.Load(ctx, 5)
	assert.ErrorIs(t, err, ErrNoIndex)

	// A new handle sees the cleared state too.
	fresh := New(5, embedding.NewDeterministic(32), store)
	results, err = fresh.SimilaritySearch(ctx, "cards", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCorruptBlobIsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save(ctx, 7, []byte("not a serialized index")))

	ix := New(7, embedding.NewDeterministic(32), store)
	_, err := ix.SimilaritySearch(ctx, "anything", 3)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	err = ix.AddSections(ctx, testSections(), 1)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestAddSectionsEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	ix := New(3, embedding.NewDeterministic(32), store)

	require.NoError(t, ix.AddSections(ctx, nil, 1))
	_, err := store.Load(ctx, 3)
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestKLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	ix := New(1, embedding.NewDeterministic(32), NewFileStore(t.TempDir()))
	require.NoError(t, ix.AddSections(ctx, testSections(), 1))

	results, err := ix.SimilaritySearch(ctx, "anything", 50)
	require.NoError(t, err)
	assert.Len(t, results, len(testSections()))
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(context.Context, string) ([]float64, error) {
	panic("embedder must not be called")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-12)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-3, 0}), 1e-12)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}
