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

// CacheKey hashes a raw key into the fixed-width primary key used by the
// Cache table.
func CacheKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PutCache upserts a cache entry with an optional expiry.
func (s *Store) PutCache(ctx context.Context, key, category string, value []byte, expiresAt *time.Time) error {
	return s.withWrite(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cache (cache_key, category, value, expires_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(cache_key) DO UPDATE SET category = excluded.category, value = excluded.value, expires_at = excluded.expires_at
		`, key, category, value, expiresAt)
		return err
	})
}

// GetCache fetches a cache entry, treating an expired row as not found.
func (s *Store) GetCache(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM cache WHERE cache_key = ?`, key)

	var value []byte
	var expiresAt sql.NullTime
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get cache: %w", err)
	}
	if expiresAt.Valid && expiresAt.Time.Before(now()) {
		return nil, ErrNotFound
	}
	return value, nil
}
