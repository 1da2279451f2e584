package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GitCommit is a cached parse of one commit, with an embedding of
// (message + file list) for the git context layer's similarity ranking.
type GitCommit struct {
	ProjectID    string
	Hash         string
	Author       string
	Date         time.Time
	Message      string
	FilesChanged string // JSON array
	DiffChunks   string // JSON array
	Embedding    []byte
}

// UpsertGitCommit inserts a commit, ignoring duplicates on (project, hash)
// per the invariant that the pair is unique.
func (s *Store) UpsertGitCommit(ctx context.Context, c *GitCommit) error {
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO git_commit (project_id, hash, author, date, message, files_changed, diff_chunks, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id, hash) DO NOTHING
		`, c.ProjectID, c.Hash, c.Author, c.Date, c.Message, c.FilesChanged, c.DiffChunks, c.Embedding)
		return err
	})
}

// ListGitCommits returns all cached commits for a project, newest first.
func (s *Store) ListGitCommits(ctx context.Context, projectID string) ([]*GitCommit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, hash, author, date, message, files_changed, diff_chunks, embedding
		FROM git_commit WHERE project_id = ? ORDER BY date DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list git commits: %w", err)
	}
	defer rows.Close()

	var out []*GitCommit
	for rows.Next() {
		c := &GitCommit{}
		if err := rows.Scan(&c.ProjectID, &c.Hash, &c.Author, &c.Date, &c.Message, &c.FilesChanged, &c.DiffChunks, &c.Embedding); err != nil {
			return nil, fmt.Errorf("store: scan git commit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasGitCommits reports whether any commits are cached for a project, used
// to decide whether the git layer needs its first-use parse.
func (s *Store) HasGitCommits(ctx context.Context, projectID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM git_commit WHERE project_id = ? LIMIT 1`, projectID)
	var x int
	err := row.Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: has git commits: %w", err)
	}
	return true, nil
}
