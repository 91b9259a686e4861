// Package store provides the persistence backends for the leaderboard
// document: a JSON file (the default), an in-memory store for tests, and a
// Postgres-backed store for deployments that need more than one process.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"fridge/internal/board"
)

// FileStore persists the whole document as one JSON file. Saves write a
// sibling temp file and rename it into place; when the rename fails it falls
// back to a direct overwrite, which narrows but does not close the window for
// a torn write.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(_ context.Context) (board.LoadResult, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc := board.NewDocument()
		if err := s.write(doc); err != nil {
			return board.LoadResult{}, err
		}
		return board.LoadResult{Doc: doc}, nil
	}
	if err != nil {
		return board.LoadResult{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc board.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Unparseable file: start from the default state in memory and leave
		// the original bytes on disk untouched.
		return board.LoadResult{Doc: board.NewDocument(), Recovered: true}, nil
	}
	doc.Normalize()
	return board.LoadResult{Doc: &doc}, nil
}

func (s *FileStore) Save(_ context.Context, doc *board.Document) error {
	return s.write(doc)
}

func (s *FileStore) write(doc *board.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if werr := os.WriteFile(s.path, raw, 0o644); werr != nil {
			return fmt.Errorf("write %s: %w", s.path, werr)
		}
	}
	return nil
}
