package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KVGet returns the value stored under key.
func (s *Store) KVGet(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

// KVSet stores value under key.
func (s *Store) KVSet(ctx context.Context, key, value string) error {
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}
