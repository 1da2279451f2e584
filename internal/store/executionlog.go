package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExecutionLogEntry is one append-only tool call record.
type ExecutionLogEntry struct {
	ID           string
	ProjectID    string
	SessionID    string
	Tool         string
	Input        string // JSON
	Output       *string
	ErrorMessage *string
	DurationMS   int64
	Success      bool
	CreatedAt    time.Time
}

// AppendExecutionLog writes one append-only execution log row. The
// success=true ⇒ errorMessage is nil invariant is enforced here rather than
// trusted to callers.
func (s *Store) AppendExecutionLog(ctx context.Context, e *ExecutionLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	if e.Success {
		e.ErrorMessage = nil
	}
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO execution_log (id, project_id, session_id, tool, input, output, error_message, duration_ms, success, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.ProjectID, e.SessionID, e.Tool, e.Input, e.Output, e.ErrorMessage, e.DurationMS, e.Success, e.CreatedAt)
		return err
	})
}

// ListExecutionLog returns the log rows for a session in chronological order.
func (s *Store) ListExecutionLog(ctx context.Context, sessionID string) ([]*ExecutionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, session_id, tool, input, output, error_message, duration_ms, success, created_at
		FROM execution_log WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list execution log: %w", err)
	}
	defer rows.Close()

	var out []*ExecutionLogEntry
	for rows.Next() {
		e := &ExecutionLogEntry{}
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SessionID, &e.Tool, &e.Input, &e.Output, &e.ErrorMessage, &e.DurationMS, &e.Success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan execution log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
