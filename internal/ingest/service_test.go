package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesbot/internal/embedding"
	"rulesbot/internal/models"
	"rulesbot/internal/pdfdoc"
	"rulesbot/internal/vectorindex"
)

type fakeStore struct {
	mu           sync.Mutex
	docs         map[int64][]models.Document
	docIngested  map[int64]bool
	gameIngested map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:         make(map[int64][]models.Document),
		docIngested:  make(map[int64]bool),
		gameIngested: make(map[int64]bool),
	}
}

func (s *fakeStore) ListDocuments(_ context.Context, gameID int64) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[gameID], nil
}

func (s *fakeStore) MarkDocumentIngested(_ context.Context, documentID int64, ingested bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docIngested[documentID] = ingested
	return nil
}

func (s *fakeStore) MarkGameIngested(_ context.Context, gameID int64, ingested bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameIngested[gameID] = ingested
	return nil
}

func testIndexFactory(t *testing.T) IndexFactory {
	t.Helper()

	store := vectorindex.NewFileStore(t.TempDir())
	embedder := embedding.NewDeterministic(16)
	indexes := make(map[int64]*vectorindex.Index)
	return func(gameID int64) *vectorindex.Index {
		if ix, ok := indexes[gameID]; ok {
			return ix
		}
		ix := vectorindex.New(gameID, embedder, store)
		indexes[gameID] = ix
		return ix
	}
}

// stubLoader ignores the bytes and returns fixed pages.
func stubLoader(pages []pdfdoc.Page) pdfdoc.Loader {
	return func(_ io.ReaderAt, _ int64, _ string) ([]pdfdoc.Page, error) {
		return pages, nil
	}
}

func pdfServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestDocument(t *testing.T) {
	srv := pdfServer(t, http.StatusOK, "%PDF-stub")
	store := newFakeStore()
	indexes := testIndexFactory(t)

	svc := NewService(store, indexes, WithLoader(stubLoader([]pdfdoc.Page{
		{Number: 0, Text: "Shuffle the deck and deal five cards to each player."},
		{Number: 1, Text: "On your turn, draw a card and play a card."},
	})))

	doc := models.Document{ID: 10, GameID: 1, DisplayName: "Rulebook", URL: srv.URL}
	require.NoError(t, svc.IngestDocument(context.Background(), doc))

	assert.True(t, store.docIngested[10])

	results, err := indexes(1).SimilaritySearch(context.Background(), "draw a card", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, s := range results {
		assert.Equal(t, int64(1), s.GameID)
		assert.Equal(t, int64(10), s.DocumentID)
	}
}

func TestIngestDocumentDownloadFailure(t *testing.T) {
	srv := pdfServer(t, http.StatusForbidden, "denied")
	svc := NewService(newFakeStore(), testIndexFactory(t))

	err := svc.IngestDocument(context.Background(), models.Document{ID: 1, GameID: 1, URL: srv.URL})

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, http.StatusForbidden, dlErr.StatusCode)
	assert.Equal(t, srv.URL, dlErr.URL)
}

func TestIngestDocumentInvalidPDF(t *testing.T) {
	srv := pdfServer(t, http.StatusOK, "this is not a pdf at all")
	store := newFakeStore()
	svc := NewService(store, testIndexFactory(t))

	err := svc.IngestDocument(context.Background(), models.Document{ID: 2, GameID: 1, URL: srv.URL})
	assert.ErrorIs(t, err, pdfdoc.ErrInvalidDocument)
	assert.False(t, store.docIngested[2])
}

func TestIngestDocumentEmpty(t *testing.T) {
	srv := pdfServer(t, http.StatusOK, "%PDF-stub")
	svc := NewService(newFakeStore(), testIndexFactory(t),
		WithLoader(stubLoader([]pdfdoc.Page{{Number: 0, Text: "only page"}})))

	// The single page is ignored, so nothing survives chunking.
	doc := models.Document{ID: 3, GameID: 1, URL: srv.URL, IgnorePages: "1"}
	err := svc.IngestDocument(context.Background(), doc)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestReingestGameClearsFirst(t *testing.T) {
	srv := pdfServer(t, http.StatusOK, "%PDF-stub")
	store := newFakeStore()
	indexes := testIndexFactory(t)
	ctx := context.Background()

	// Seed the index with stale sections that reingestion must discard.
	require.NoError(t, indexes(1).AddSections(ctx, []models.Section{
		{Content: "stale content from an earlier build", Page: 0},
	}, 99))

	store.docs[1] = []models.Document{
		{ID: 5, GameID: 1, DisplayName: "Base rules", URL: srv.URL},
	}

	svc := NewService(store, indexes, WithLoader(stubLoader([]pdfdoc.Page{
		{Number: 0, Text: "Fresh rules content for the rebuilt index."},
	})))
	require.NoError(t, svc.ReingestGame(ctx, 1))

	assert.True(t, store.gameIngested[1])
	assert.True(t, store.docIngested[5])

	results, err := indexes(1).SimilaritySearch(ctx, "rules", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(5), results[0].DocumentID)
	assert.NotContains(t, results[0].Content, "stale")
}
