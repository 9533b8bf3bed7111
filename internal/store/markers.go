package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetMarker returns the last processed prefix for bucket, or "" when the
// bucket has not been scanned.
func (s *Store) GetMarker(ctx context.Context, bucket string) (string, error) {
	ctx = ensureContext(ctx)
	var marker string
	err := s.db.QueryRowContext(ctx, `SELECT marker FROM s3markers WHERE bucket = ?`, bucket).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get marker for %s: %w", bucket, err)
	}
	return marker, nil
}

// AdvanceMarker stores marker for bucket if it sorts after the current one.
// It reports whether the marker moved.
func (s *Store) AdvanceMarker(ctx context.Context, bucket, marker string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO s3markers (bucket, marker, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(bucket) DO UPDATE SET marker = excluded.marker, updated_at = excluded.updated_at
         WHERE excluded.marker > s3markers.marker`,
		bucket, marker, s.timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("advance marker for %s: %w", bucket, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetMarker forgets the bucket's progress so the next scan starts over.
func (s *Store) ResetMarker(ctx context.Context, bucket string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM s3markers WHERE bucket = ?`, bucket); err != nil {
		return fmt.Errorf("reset marker for %s: %w", bucket, err)
	}
	return nil
}

// ListMarkers returns every stored bucket marker.
func (s *Store) ListMarkers(ctx context.Context) ([]Marker, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, marker, updated_at FROM s3markers ORDER BY bucket`)
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	defer rows.Close()

	var out []Marker
	for rows.Next() {
		var (
			m          Marker
			updatedRaw string
		)
		if err := rows.Scan(&m.Bucket, &m.Marker, &updatedRaw); err != nil {
			return nil, err
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			m.UpdatedAt = updated
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
