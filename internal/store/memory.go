package store

import (
	"context"
	"encoding/json"
	"fmt"

	"fridge/internal/board"
)

// MemoryStore keeps the document in process memory. Used by tests and by
// ephemeral runs; load and save exchange deep copies so callers never alias
// the stored state.
type MemoryStore struct {
	raw []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (board.LoadResult, error) {
	if s.raw == nil {
		return board.LoadResult{Doc: board.NewDocument()}, nil
	}
	var doc board.Document
	if err := json.Unmarshal(s.raw, &doc); err != nil {
		return board.LoadResult{Doc: board.NewDocument(), Recovered: true}, nil
	}
	doc.Normalize()
	return board.LoadResult{Doc: &doc}, nil
}

func (s *MemoryStore) Save(_ context.Context, doc *board.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	s.raw = raw
	return nil
}

// Corrupt replaces the stored bytes with garbage. Tests exercise the
// recovered-load path through this.
func (s *MemoryStore) Corrupt() {
	s.raw = []byte("{not json")
}

// Raw exposes the stored bytes for byte-level assertions.
func (s *MemoryStore) Raw() []byte {
	return append([]byte(nil), s.raw...)
}
