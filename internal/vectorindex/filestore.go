package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one blob file per game under a directory. Saves go
// through a temp file and rename so readers never see partial writes.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed blob store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(gameID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("game-%d.index", gameID))
}

// Load reads the blob for a game. Returns ErrNoIndex when none exists.
func (s *FileStore) Load(_ context.Context, gameID int64) ([]byte, error) {
	data, err := os.ReadFile(s.path(gameID))
	if os.IsNotExist(err) {
		return nil, ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}
	return data, nil
}

// Save writes the blob for a game atomically.
func (s *FileStore) Save(_ context.Context, gameID int64, blob []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(gameID)); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// Delete removes the blob for a game. Deleting a missing blob is not an
// error.
func (s *FileStore) Delete(_ context.Context, gameID int64) error {
	err := os.Remove(s.path(gameID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete index file: %w", err)
	}
	return nil
}
