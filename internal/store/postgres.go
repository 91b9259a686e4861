package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fridge/internal/board"
)

// PgStore keeps the same single-document model as FileStore, stored in one
// jsonb row. The upsert makes each save atomic at the database, which is what
// allows more than one process to point at the same state, unlike the file
// backend.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(ctx context.Context, pool *pgxpool.Pool) (*PgStore, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fridge_state (
			id  int PRIMARY KEY CHECK (id = 1),
			doc jsonb NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("ensure fridge_state table: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func (s *PgStore) Load(ctx context.Context) (board.LoadResult, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM fridge_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		doc := board.NewDocument()
		if err := s.Save(ctx, doc); err != nil {
			return board.LoadResult{}, err
		}
		return board.LoadResult{Doc: doc}, nil
	}
	if err != nil {
		return board.LoadResult{}, fmt.Errorf("read document row: %w", err)
	}
	var doc board.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Same policy as the file backend: fall back to empty, leave the
		// stored row alone.
		return board.LoadResult{Doc: board.NewDocument(), Recovered: true}, nil
	}
	doc.Normalize()
	return board.LoadResult{Doc: &doc}, nil
}

func (s *PgStore) Save(ctx context.Context, doc *board.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fridge_state (id, doc)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, raw)
	if err != nil {
		return fmt.Errorf("write document row: %w", err)
	}
	return nil
}
