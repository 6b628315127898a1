// Package database provides the Postgres persistence layer for games,
// documents, chat sessions, messages, and index blobs.
package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"rulesbot/internal/models"
	"rulesbot/internal/vectorindex"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB represents the database connection
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(connStr string) (*DB, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Initialize sets up the database tables and indices
func (db *DB) Initialize(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS games (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            slug TEXT NOT NULL UNIQUE,
            ingested BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create games table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS documents (
            id BIGSERIAL PRIMARY KEY,
            game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
            display_name TEXT NOT NULL,
            url TEXT NOT NULL,
            public_url TEXT NOT NULL DEFAULT '',
            ignore_pages TEXT NOT NULL DEFAULT '',
            setup_pages TEXT NOT NULL DEFAULT '',
            ingested BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS chat_sessions (
            id BIGSERIAL PRIMARY KEY,
            session_slug TEXT NOT NULL UNIQUE,
            game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create chat_sessions table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            session_id BIGINT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
            message_type TEXT NOT NULL,
            message TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS source_documents (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            page_number INTEGER NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create source_documents table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS game_indexes (
            game_id BIGINT PRIMARY KEY REFERENCES games(id) ON DELETE CASCADE,
            blob BYTEA NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create game_indexes table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS documents_game_id_idx ON documents (game_id);
		CREATE INDEX IF NOT EXISTS messages_session_id_idx ON messages (session_id);
		CREATE INDEX IF NOT EXISTS source_documents_message_id_idx ON source_documents (message_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create additional indices: %w", err)
	}

	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// CreateGame inserts a game, deriving its slug from the name.
func (db *DB) CreateGame(ctx context.Context, name string) (models.Game, error) {
	game := models.Game{Name: name, Slug: slugify(name)}
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO games (name, slug) VALUES ($1, $2) RETURNING id
    `, game.Name, game.Slug).Scan(&game.ID)
	if err != nil {
		return models.Game{}, fmt.Errorf("failed to create game: %w", err)
	}
	return game, nil
}

// GetGame looks a game up by id.
func (db *DB) GetGame(ctx context.Context, id int64) (models.Game, error) {
	var game models.Game
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, slug, ingested FROM games WHERE id = $1
    `, id).Scan(&game.ID, &game.Name, &game.Slug, &game.Ingested)
	if err != nil {
		return models.Game{}, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return game, nil
}

// GetGameBySlug looks a game up by slug.
func (db *DB) GetGameBySlug(ctx context.Context, slug string) (models.Game, error) {
	var game models.Game
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, slug, ingested FROM games WHERE slug = $1
    `, slug).Scan(&game.ID, &game.Name, &game.Slug, &game.Ingested)
	if err != nil {
		return models.Game{}, fmt.Errorf("failed to get game %q: %w", slug, err)
	}
	return game, nil
}

// ListGames returns all games ordered by name.
func (db *DB) ListGames(ctx context.Context) ([]models.Game, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, name, slug, ingested FROM games ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var game models.Game
		if err := rows.Scan(&game.ID, &game.Name, &game.Slug, &game.Ingested); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

// MarkGameIngested updates a game's ingested flag.
func (db *DB) MarkGameIngested(ctx context.Context, gameID int64, ingested bool) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE games SET ingested = $2 WHERE id = $1
    `, gameID, ingested)
	if err != nil {
		return fmt.Errorf("failed to mark game %d ingested: %w", gameID, err)
	}
	return nil
}

// CreateDocument inserts a rulebook document for a game.
func (db *DB) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO documents (game_id, display_name, url, public_url, ignore_pages, setup_pages)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, doc.GameID, doc.DisplayName, doc.URL, doc.PublicURL, doc.IgnorePages, doc.SetupPages).Scan(&doc.ID)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

// GetDocument looks a document up by id.
func (db *DB) GetDocument(ctx context.Context, id int64) (models.Document, error) {
	var doc models.Document
	err := db.Pool.QueryRow(ctx, `
        SELECT id, game_id, display_name, url, public_url, ignore_pages, setup_pages, ingested
        FROM documents WHERE id = $1
    `, id).Scan(&doc.ID, &doc.GameID, &doc.DisplayName, &doc.URL, &doc.PublicURL,
		&doc.IgnorePages, &doc.SetupPages, &doc.Ingested)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to get document %d: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns a game's documents in insertion order.
func (db *DB) ListDocuments(ctx context.Context, gameID int64) ([]models.Document, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, game_id, display_name, url, public_url, ignore_pages, setup_pages, ingested
        FROM documents WHERE game_id = $1 ORDER BY id
    `, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.GameID, &doc.DisplayName, &doc.URL, &doc.PublicURL,
			&doc.IgnorePages, &doc.SetupPages, &doc.Ingested); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// MarkDocumentIngested updates a document's ingested flag.
func (db *DB) MarkDocumentIngested(ctx context.Context, documentID int64, ingested bool) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE documents SET ingested = $2 WHERE id = $1
    `, documentID, ingested)
	if err != nil {
		return fmt.Errorf("failed to mark document %d ingested: %w", documentID, err)
	}
	return nil
}

// CreateChatSession opens a new conversation for a game.
func (db *DB) CreateChatSession(ctx context.Context, gameID int64) (models.ChatSession, error) {
	session := models.ChatSession{Slug: uuid.NewString(), GameID: gameID}
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO chat_sessions (session_slug, game_id) VALUES ($1, $2)
        RETURNING id, created_at
    `, session.Slug, session.GameID).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

// GetChatSessionBySlug looks a session up by its slug.
func (db *DB) GetChatSessionBySlug(ctx context.Context, slug string) (models.ChatSession, error) {
	var session models.ChatSession
	err := db.Pool.QueryRow(ctx, `
        SELECT id, session_slug, game_id, created_at FROM chat_sessions WHERE session_slug = $1
    `, slug).Scan(&session.ID, &session.Slug, &session.GameID, &session.CreatedAt)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to get chat session %q: %w", slug, err)
	}
	return session, nil
}

// AddMessage appends a message to a session.
func (db *DB) AddMessage(ctx context.Context, sessionID int64, role models.Role, text string) (models.Message, error) {
	msg := models.Message{SessionID: sessionID, Role: role, Text: text}
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO messages (session_id, message_type, message) VALUES ($1, $2, $3)
        RETURNING id, created_at
    `, sessionID, string(role), text).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to add message: %w", err)
	}
	return msg, nil
}

// Messages returns a session's full history, oldest first.
func (db *DB) Messages(ctx context.Context, sessionID int64) ([]models.Message, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, session_id, message_type, message, created_at
        FROM messages WHERE session_id = $1 ORDER BY created_at, id
    `, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// AddSourceRefs records the rulebook pages cited by an assistant message.
func (db *DB) AddSourceRefs(ctx context.Context, messageID int64, refs []models.SourceRef) error {
	for _, ref := range refs {
		_, err := db.Pool.Exec(ctx, `
            INSERT INTO source_documents (message_id, document_id, page_number) VALUES ($1, $2, $3)
        `, messageID, ref.DocumentID, ref.PageNumber)
		if err != nil {
			return fmt.Errorf("failed to add source reference: %w", err)
		}
	}
	return nil
}

// SourceRefs returns the citations recorded for a message.
func (db *DB) SourceRefs(ctx context.Context, messageID int64) ([]models.SourceRef, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT document_id, page_number FROM source_documents WHERE message_id = $1 ORDER BY id
    `, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list source references: %w", err)
	}
	defer rows.Close()

	var refs []models.SourceRef
	for rows.Next() {
		var ref models.SourceRef
		if err := rows.Scan(&ref.DocumentID, &ref.PageNumber); err != nil {
			return nil, fmt.Errorf("failed to scan source reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source references: %w", err)
	}
	return refs, nil
}

// IndexBlobStore adapts the game_indexes table to vectorindex.BlobStore.
type IndexBlobStore struct {
	db *DB
}

// IndexBlobs returns the blob store view of the database.
func (db *DB) IndexBlobs() *IndexBlobStore {
	return &IndexBlobStore{db: db}
}

// Load reads a game's index blob. Returns vectorindex.ErrNoIndex when none
// has been persisted.
func (s *IndexBlobStore) Load(ctx context.Context, gameID int64) ([]byte, error) {
	var blob []byte
	err := s.db.Pool.QueryRow(ctx, `
        SELECT blob FROM game_indexes WHERE game_id = $1
    `, gameID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, vectorindex.ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index blob: %w", err)
	}
	return blob, nil
}

// Save upserts a game's index blob.
func (s *IndexBlobStore) Save(ctx context.Context, gameID int64, blob []byte) error {
	_, err := s.db.Pool.Exec(ctx, `
        INSERT INTO game_indexes (game_id, blob, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (game_id) DO UPDATE SET blob = EXCLUDED.blob, updated_at = NOW()
    `, gameID, blob)
	if err != nil {
		return fmt.Errorf("failed to save index blob: %w", err)
	}
	return nil
}

// Delete removes a game's index blob.
func (s *IndexBlobStore) Delete(ctx context.Context, gameID int64) error {
	_, err := s.db.Pool.Exec(ctx, `
        DELETE FROM game_indexes WHERE game_id = $1
    `, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete index blob: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}
