package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one continuous user interaction with a project.
type Session struct {
	ID         string
	ProjectID  string
	Mode       string
	StartedAt  time.Time
	EndedAt    *time.Time
	TurnCount  int
	TokensUsed int
}

// CreateSession inserts a new open session (EndedAt == nil).
func (s *Store) CreateSession(ctx context.Context, projectID, mode string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Mode:      mode,
		StartedAt: now(),
	}
	err := s.withWrite(func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO session (id, project_id, mode, started_at, turn_count, tokens_used)
			VALUES (?, ?, ?, ?, 0, 0)
		`, sess.ID, sess.ProjectID, sess.Mode, sess.StartedAt)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// OpenSessionForProject returns the session with a null end time for this
// project, if any (at most one such session exists per the invariant in §3).
func (s *Store) OpenSessionForProject(ctx context.Context, projectID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, mode, started_at, ended_at, turn_count, tokens_used
		FROM session WHERE project_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1
	`, projectID)
	return scanSession(row)
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, mode, started_at, ended_at, turn_count, tokens_used
		FROM session WHERE id = ?
	`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Mode, &sess.StartedAt, &ended, &sess.TurnCount, &sess.TokensUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan session: %w", err)
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return sess, nil
}

// UpdateSessionCounters persists the cumulative turn count and tokens used.
func (s *Store) UpdateSessionCounters(ctx context.Context, id string, turnCount, tokensUsed int) error {
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE session SET turn_count = ?, tokens_used = ? WHERE id = ?
		`, turnCount, tokensUsed, id)
		return err
	})
}

// EndSession sets the session's end time, marking a clean shutdown.
func (s *Store) EndSession(ctx context.Context, id string) error {
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE session SET ended_at = ? WHERE id = ?
		`, now(), id)
		return err
	})
}
