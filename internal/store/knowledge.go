package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Knowledge is a long-lived key/value fact about a project.
type Knowledge struct {
	ProjectID  string
	Key        string
	Value      string
	Category   string
	Importance float64
}

// StoreKnowledge creates or updates a knowledge entry. Repeating the call
// with the same key updates the row in place rather than duplicating it.
func (s *Store) StoreKnowledge(ctx context.Context, k *Knowledge) error {
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO knowledge (project_id, key, value, category, importance, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id, key) DO UPDATE SET
				value = excluded.value,
				category = excluded.category,
				importance = excluded.importance,
				updated_at = excluded.updated_at
		`, k.ProjectID, k.Key, k.Value, k.Category, k.Importance, now())
		return err
	})
}

// GetKnowledge fetches a single entry by (projectID, key).
func (s *Store) GetKnowledge(ctx context.Context, projectID, key string) (*Knowledge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, key, value, category, importance FROM knowledge
		WHERE project_id = ? AND key = ?
	`, projectID, key)

	k := &Knowledge{}
	if err := row.Scan(&k.ProjectID, &k.Key, &k.Value, &k.Category, &k.Importance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get knowledge: %w", err)
	}
	return k, nil
}

// TopKnowledge returns up to limit entries ordered by descending importance,
// for the knowledge layer's "top-10 entries by importance" gather step.
func (s *Store) TopKnowledge(ctx context.Context, projectID string, limit int) ([]*Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, key, value, category, importance FROM knowledge
		WHERE project_id = ? ORDER BY importance DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top knowledge: %w", err)
	}
	defer rows.Close()

	var out []*Knowledge
	for rows.Next() {
		k := &Knowledge{}
		if err := rows.Scan(&k.ProjectID, &k.Key, &k.Value, &k.Category, &k.Importance); err != nil {
			return nil, fmt.Errorf("store: scan knowledge: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
