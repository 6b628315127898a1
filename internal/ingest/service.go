// Package ingest downloads rulebook PDFs, chunks them, and feeds the
// sections into a game's vector index.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"rulesbot/internal/chunker"
	"rulesbot/internal/models"
	"rulesbot/internal/pdfdoc"
	"rulesbot/internal/vectorindex"
)

// ErrEmptyDocument indicates a PDF yielded no sections after the page
// policies were applied.
var ErrEmptyDocument = errors.New("document produced no sections")

// Some publishers block requests without a browser user agent.
const downloadUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"

// DownloadError reports a failed rulebook fetch. StatusCode is zero when
// the request never produced a response.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Store is the persistence surface ingestion needs.
type Store interface {
	ListDocuments(ctx context.Context, gameID int64) ([]models.Document, error)
	MarkDocumentIngested(ctx context.Context, documentID int64, ingested bool) error
	MarkGameIngested(ctx context.Context, gameID int64, ingested bool) error
}

// IndexFactory returns the vector index for a game.
type IndexFactory func(gameID int64) *vectorindex.Index

// Service runs the ingestion pipeline.
type Service struct {
	store   Store
	indexes IndexFactory
	chunker *chunker.Chunker
	loader  pdfdoc.Loader
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient replaces the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(s *Service) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithLoader replaces the PDF loader. Tests use this to stub out parsing.
func WithLoader(loader pdfdoc.Loader) Option {
	return func(s *Service) {
		if loader != nil {
			s.loader = loader
		}
	}
}

// NewService creates an ingestion service.
func NewService(store Store, indexes IndexFactory, opts ...Option) *Service {
	s := &Service{
		store:   store,
		indexes: indexes,
		chunker: chunker.New(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap),
		loader:  pdfdoc.Load,
		client:  http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestDocument downloads one rulebook, chunks it under the document's
// page policies, and adds the sections to the game's index. The document
// is marked ingested only after the index update is persisted.
func (s *Service) IngestDocument(ctx context.Context, doc models.Document) error {
	s.logger.Info("ingesting document",
		slog.Int64("document_id", doc.ID),
		slog.Int64("game_id", doc.GameID),
		slog.String("url", doc.URL))

	data, err := s.download(ctx, doc.URL)
	if err != nil {
		return err
	}

	pages, err := s.loader(bytes.NewReader(data), int64(len(data)), doc.DisplayURL())
	if err != nil {
		return fmt.Errorf("failed to parse document %d: %w", doc.ID, err)
	}

	ignorePages, err := doc.IgnorePageList()
	if err != nil {
		return fmt.Errorf("document %d ignore pages: %w", doc.ID, err)
	}
	setupPages, err := doc.SetupPageList()
	if err != nil {
		return fmt.Errorf("document %d setup pages: %w", doc.ID, err)
	}

	sections := s.chunker.ChunkPages(pages, ignorePages, setupPages)
	if len(sections) == 0 {
		return fmt.Errorf("document %d: %w", doc.ID, ErrEmptyDocument)
	}

	index := s.indexes(doc.GameID)
	if err := index.AddSections(ctx, sections, doc.ID); err != nil {
		return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
	}

	if err := s.store.MarkDocumentIngested(ctx, doc.ID, true); err != nil {
		return err
	}

	s.logger.Info("document ingested",
		slog.Int64("document_id", doc.ID),
		slog.Int("pages", len(pages)),
		slog.Int("sections", len(sections)))
	return nil
}

// ReingestGame rebuilds a game's index from scratch: the persisted index
// is cleared first, then every document is ingested in order.
func (s *Service) ReingestGame(ctx context.Context, gameID int64) error {
	docs, err := s.store.ListDocuments(ctx, gameID)
	if err != nil {
		return err
	}

	index := s.indexes(gameID)
	if err := index.Clear(ctx); err != nil {
		return err
	}
	if err := s.store.MarkGameIngested(ctx, gameID, false); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := s.IngestDocument(ctx, doc); err != nil {
			return err
		}
	}

	if err := s.store.MarkGameIngested(ctx, gameID, true); err != nil {
		return err
	}

	s.logger.Info("game reingested",
		slog.Int64("game_id", gameID),
		slog.Int("documents", len(docs)))
	return nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	return data, nil
}
