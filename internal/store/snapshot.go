package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionSnapshot is a durable point-in-time copy of ephemeral session
// state, keyed by session and a monotonically increasing sequence number.
type SessionSnapshot struct {
	ID             string
	SessionID      string
	Seq            int64
	EphemeralState []byte
	RetrievalIDs   []byte
	Mode           string
	TokenBudget    []byte
	CreatedAt      time.Time
}

// retentionPerSession is the bounded retention: keep the last M snapshots.
const retentionPerSession = 20

// SaveSnapshot writes a new snapshot and prunes older ones beyond the
// retention window, inside one transaction so the strictly-increasing
// sequence-number invariant is never observed half-applied.
func (s *Store) SaveSnapshot(ctx context.Context, snap *SessionSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now()
	}

	return s.withWrite(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin snapshot tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_snapshot (id, session_id, seq, ephemeral_state, retrieval_ids, mode, token_budget, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, snap.ID, snap.SessionID, snap.Seq, snap.EphemeralState, snap.RetrievalIDs, snap.Mode, snap.TokenBudget, snap.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: insert snapshot: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM session_snapshot WHERE session_id = ? AND seq NOT IN (
				SELECT seq FROM session_snapshot WHERE session_id = ? ORDER BY seq DESC LIMIT ?
			)
		`, snap.SessionID, snap.SessionID, retentionPerSession)
		if err != nil {
			return fmt.Errorf("store: prune snapshots: %w", err)
		}

		return tx.Commit()
	})
}

// LatestSnapshot returns the highest-seq snapshot for a session.
func (s *Store) LatestSnapshot(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, seq, ephemeral_state, retrieval_ids, mode, token_budget, created_at
		FROM session_snapshot WHERE session_id = ? ORDER BY seq DESC LIMIT 1
	`, sessionID)

	snap := &SessionSnapshot{}
	if err := row.Scan(&snap.ID, &snap.SessionID, &snap.Seq, &snap.EphemeralState, &snap.RetrievalIDs, &snap.Mode, &snap.TokenBudget, &snap.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan snapshot: %w", err)
	}
	return snap, nil
}

// NextSeq returns the next sequence number for a session's snapshots.
func (s *Store) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM session_snapshot WHERE session_id = ?
	`, sessionID)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("store: next seq: %w", err)
	}
	return seq, nil
}
