package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApprovalRequestRecord is the durable audit record of an approval decision:
// what was asked, and how it was decided. Remembered decisions themselves
// are session-scoped in memory (§4.7); this table is the historical trail
// that survives a crash/resume cycle.
type ApprovalRequestRecord struct {
	ID          string
	SessionID   string
	Tool        string
	Sensitivity string
	Decision    string
	DecidedBy   string
	RequestedAt time.Time
	DecidedAt   *time.Time
}

// RecordApprovalDecision persists one approval decision.
func (s *Store) RecordApprovalDecision(ctx context.Context, r *ApprovalRequestRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = now()
	}
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO approval_request (id, session_id, tool, sensitivity, decision, decided_by, requested_at, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.SessionID, r.Tool, r.Sensitivity, r.Decision, r.DecidedBy, r.RequestedAt, r.DecidedAt)
		return err
	})
}

// ListApprovalHistory returns the audit trail for a session in request order.
func (s *Store) ListApprovalHistory(ctx context.Context, sessionID string) ([]*ApprovalRequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, tool, sensitivity, decision, decided_by, requested_at, decided_at
		FROM approval_request WHERE session_id = ? ORDER BY requested_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list approval history: %w", err)
	}
	defer rows.Close()

	var out []*ApprovalRequestRecord
	for rows.Next() {
		r := &ApprovalRequestRecord{}
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Tool, &r.Sensitivity, &r.Decision, &r.DecidedBy, &r.RequestedAt, &r.DecidedAt); err != nil {
			return nil, fmt.Errorf("store: scan approval history: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
