package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup by id/key finds no row.
var ErrNotFound = errors.New("store: not found")

// Project is the identity of a workspace: a stable id derived from the
// absolute root path, which is created on first use and never destroyed.
type Project struct {
	ID        string
	RootPath  string
	Name      string
	CreatedAt time.Time
}

// ProjectID computes the stable project id for an absolute root path: a
// SHA-256 hash, 16-hex-char prefix, matching the session manager's startup
// flow (§4.9).
func ProjectID(rootPath string) string {
	sum := sha256.Sum256([]byte(rootPath))
	return hex.EncodeToString(sum[:])[:16]
}

// EnsureProject returns the existing project for rootPath, or creates one.
func (s *Store) EnsureProject(ctx context.Context, rootPath, name string) (*Project, error) {
	id := ProjectID(rootPath)

	existing, err := s.GetProject(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p := &Project{ID: id, RootPath: rootPath, Name: name, CreatedAt: now()}
	err = s.withWrite(func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO project (id, root_path, name, created_at) VALUES (?, ?, ?, ?)
		`, p.ID, p.RootPath, p.Name, p.CreatedAt)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("store: insert project: %w", err)
	}
	return p, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, root_path, name, created_at FROM project WHERE id = ?
	`, id)

	p := &Project{}
	if err := row.Scan(&p.ID, &p.RootPath, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}
