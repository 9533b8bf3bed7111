package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ddexer/internal/users"
)

// AddUser registers or renames an account under its API key.
func (s *Store) AddUser(ctx context.Context, entry users.Entry) error {
	if strings.TrimSpace(entry.APIKey) == "" || strings.TrimSpace(entry.ID) == "" {
		return errors.New("add user: api key and id are required")
	}
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO users (api_key, id, handle, name, created_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(api_key, id) DO UPDATE SET handle = excluded.handle, name = excluded.name`,
		entry.APIKey, entry.ID, entry.Handle, entry.Name, s.timestamp(),
	); err != nil {
		return fmt.Errorf("add user %s: %w", entry.ID, err)
	}
	return nil
}

// RemoveUser deletes an account. It reports whether a row existed.
func (s *Store) RemoveUser(ctx context.Context, apiKey, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM users WHERE api_key = ? AND id = ?`, apiKey, id)
	if err != nil {
		return false, fmt.Errorf("remove user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUsers returns the directory for apiKey, or every account when apiKey
// is empty.
func (s *Store) ListUsers(ctx context.Context, apiKey string) (users.Directory, error) {
	ctx = ensureContext(ctx)
	query := `SELECT api_key, id, handle, name, created_at FROM users`
	var args []any
	if apiKey != "" {
		query += ` WHERE api_key = ?`
		args = append(args, apiKey)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var dir users.Directory
	for rows.Next() {
		var (
			entry      users.Entry
			createdRaw string
		)
		if err := rows.Scan(&entry.APIKey, &entry.ID, &entry.Handle, &entry.Name, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			entry.CreatedAt = created
		}
		dir = append(dir, entry)
	}
	return dir, rows.Err()
}
