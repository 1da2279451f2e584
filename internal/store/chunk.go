package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunk is a retrievable fragment of source text (code, docs, git diff).
type Chunk struct {
	ID         string
	ProjectID  string
	Path       string
	Content    string
	ChunkType  string
	ByteStart  int
	ByteEnd    int
	Embedding  []byte
	LastUsedAt time.Time
}

// UpsertChunk inserts or replaces a chunk by id.
func (s *Store) UpsertChunk(ctx context.Context, c *Chunk) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.LastUsedAt.IsZero() {
		c.LastUsedAt = now()
	}
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chunk (id, project_id, path, content, chunk_type, byte_start, byte_end, embedding, last_used_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				chunk_type = excluded.chunk_type,
				byte_start = excluded.byte_start,
				byte_end = excluded.byte_end,
				embedding = excluded.embedding,
				last_used_at = excluded.last_used_at
		`, c.ID, c.ProjectID, c.Path, c.Content, c.ChunkType, c.ByteStart, c.ByteEnd, c.Embedding, c.LastUsedAt)
		return err
	})
}

// TouchChunk updates a chunk's last-used timestamp (used by the retrieval
// layer's recency scoring).
func (s *Store) TouchChunk(ctx context.Context, id string) error {
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE chunk SET last_used_at = ? WHERE id = ?`, now(), id)
		return err
	})
}

// ListChunks returns all chunks for a project, for in-memory similarity
// ranking by the retrieval layer.
func (s *Store) ListChunks(ctx context.Context, projectID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, path, content, chunk_type, byte_start, byte_end, embedding, last_used_at
		FROM chunk WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list chunks: %w", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Path, &c.Content, &c.ChunkType, &c.ByteStart, &c.ByteEnd, &c.Embedding, &c.LastUsedAt); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChunk fetches a single chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, path, content, chunk_type, byte_start, byte_end, embedding, last_used_at
		FROM chunk WHERE id = ?
	`, id)
	c := &Chunk{}
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Path, &c.Content, &c.ChunkType, &c.ByteStart, &c.ByteEnd, &c.Embedding, &c.LastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get chunk: %w", err)
	}
	return c, nil
}
