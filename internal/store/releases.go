package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ddexer/internal/ddex"
)

// ErrReleaseNotFound is returned by record operations for unknown keys.
var ErrReleaseNotFound = errors.New("release not found")

// UpsertInput is one parsed release together with its delivery origin.
type UpsertInput struct {
	Source           string
	XMLURL           string
	MessageTimestamp time.Time
	Release          *ddex.Release
}

// PurgeInput identifies a release named by a purge message.
type PurgeInput struct {
	Source           string
	XMLURL           string
	MessageTimestamp time.Time
	IDs              ddex.ReleaseIDs
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRelease(ctx context.Context, q queryRower, key string) (*ReleaseRow, error) {
	row := q.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE key = ?`, key)
	rel, err := scanRelease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// Upsert reconciles a parsed release with the stored row for its key in a
// single transaction.
func (s *Store) Upsert(ctx context.Context, in UpsertInput) (Decision, error) {
	ctx = ensureContext(ctx)
	if in.Release == nil {
		return Decision{}, errors.New("upsert: nil release")
	}
	key := in.Release.Key()
	if key == "" {
		return Decision{}, fmt.Errorf("upsert %s: release has no ISRC, ICPN or GRid", in.Release.Ref)
	}
	releaseJSON, hash, err := encodeRelease(in.Release)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		prior, err := getRelease(ctx, tx, key)
		if err != nil {
			return fmt.Errorf("load release %s: %w", key, err)
		}
		decision = Resolve(prior, Incoming{
			MessageTimestamp: in.MessageTimestamp,
			ContentHash:      hash,
			HasDeals:         len(in.Release.Deals) > 0,
		})

		now := s.timestamp()
		ts := formatTime(in.MessageTimestamp)
		switch decision.Action {
		case ActionIgnore:
			return nil
		case ActionMarkDelete:
			_, err = tx.ExecContext(ctx,
				`UPDATE releases SET ref = ?, source = ?, xml_url = ?, message_timestamp = ?, release_json = ?,
                 content_hash = ?, status = ?, publish_error_count = 0, last_publish_error = NULL, updated_at = ?
                 WHERE key = ?`,
				in.Release.Ref, in.Source, in.XMLURL, ts, releaseJSON, hash, StatusDeletePending, now, key,
			)
		case ActionReplace:
			status := statusFor(len(in.Release.Problems))
			if prior == nil {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO releases (key, ref, source, xml_url, message_timestamp, release_json, content_hash,
                     status, publish_error_count, created_at, updated_at)
                     VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
					key, in.Release.Ref, in.Source, in.XMLURL, ts, releaseJSON, hash, status, now, now,
				)
				break
			}
			clearEntity := prior.Status == StatusDeleted
			_, err = tx.ExecContext(ctx,
				`UPDATE releases SET ref = ?, source = ?, xml_url = ?, message_timestamp = ?, release_json = ?,
                 content_hash = ?, status = ?, publish_error_count = 0, last_publish_error = NULL,
                 entity_type = CASE WHEN ? THEN NULL ELSE entity_type END,
                 entity_id = CASE WHEN ? THEN NULL ELSE entity_id END,
                 block_hash = CASE WHEN ? THEN NULL ELSE block_hash END,
                 block_number = CASE WHEN ? THEN NULL ELSE block_number END,
                 published_at = CASE WHEN ? THEN NULL ELSE published_at END,
                 updated_at = ?
                 WHERE key = ?`,
				in.Release.Ref, in.Source, in.XMLURL, ts, releaseJSON, hash, status,
				clearEntity, clearEntity, clearEntity, clearEntity, clearEntity,
				now, key,
			)
		}
		return err
	})
	if err != nil {
		return Decision{}, fmt.Errorf("upsert release %s: %w", key, err)
	}
	return decision, nil
}

// MarkForDelete queues the release named by a purge for takedown in a
// single transaction. Purges for unknown or newer rows are ignored.
func (s *Store) MarkForDelete(ctx context.Context, in PurgeInput) (string, Decision, error) {
	ctx = ensureContext(ctx)
	key := in.IDs.Key()
	if key == "" {
		return "", Decision{ActionIgnore, "purge without ISRC, ICPN or GRid"}, nil
	}

	var decision Decision
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prior, err := getRelease(ctx, tx, key)
		if err != nil {
			return fmt.Errorf("load release %s: %w", key, err)
		}
		decision = Resolve(prior, Incoming{MessageTimestamp: in.MessageTimestamp, Purge: true})
		if decision.Action != ActionMarkDelete {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE releases SET status = ?, message_timestamp = ?, publish_error_count = 0,
             last_publish_error = NULL, updated_at = ? WHERE key = ?`,
			StatusDeletePending, formatTime(in.MessageTimestamp), s.timestamp(), key,
		)
		return err
	})
	if err != nil {
		return key, Decision{}, fmt.Errorf("mark release %s for delete: %w", key, err)
	}
	return key, decision, nil
}

// ListPendingWork returns releases the publisher should act on, ordered by
// origin document and in-document reference.
func (s *Store) ListPendingWork(ctx context.Context) ([]*ReleaseRow, error) {
	ctx = ensureContext(ctx)
	args := append(statusArgs(pendingStatuses), MaxPublishErrors)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+releaseColumns+` FROM releases
         WHERE status IN (`+makePlaceholders(len(pendingStatuses))+`) AND publish_error_count < ?
         ORDER BY xml_url, ref, key`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending work: %w", err)
	}
	defer rows.Close()
	return collectReleases(rows)
}

// RecordSuccess marks a release published under ref.
func (s *Store) RecordSuccess(ctx context.Context, key string, ref EntityRef) error {
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE releases SET status = ?, entity_type = ?, entity_id = ?, block_hash = ?, block_number = ?,
         publish_error_count = 0, last_publish_error = NULL, published_at = ?, updated_at = ?
         WHERE key = ?`,
		StatusPublished, nullableString(string(ref.Type)), nullableString(ref.ID), nullableString(ref.BlockHash),
		ref.BlockNumber, now, now, key,
	)
	if err != nil {
		return fmt.Errorf("record success for %s: %w", key, err)
	}
	return requireAffected(res, key)
}

// RecordFailure stores a publish error and bumps the retry counter. Failed
// takedowns stay DeletePending so the retry still deletes.
func (s *Store) RecordFailure(ctx context.Context, key string, publishErr string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE releases SET
         status = CASE WHEN status = ? THEN status ELSE ? END,
         publish_error_count = publish_error_count + 1, last_publish_error = ?, updated_at = ?
         WHERE key = ?`,
		StatusDeletePending, StatusFailed, publishErr, s.timestamp(), key,
	)
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", key, err)
	}
	return requireAffected(res, key)
}

// RecordDeleted marks a release taken down. The last entity reference is
// kept for audit; ref, when set, records the block of the delete.
func (s *Store) RecordDeleted(ctx context.Context, key string, ref *EntityRef) error {
	var blockHash, blockNumber any
	if ref != nil && ref.BlockHash != "" {
		blockHash, blockNumber = ref.BlockHash, ref.BlockNumber
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE releases SET status = ?, block_hash = COALESCE(?, block_hash), block_number = COALESCE(?, block_number),
         publish_error_count = 0, last_publish_error = NULL, updated_at = ?
         WHERE key = ?`,
		StatusDeleted, blockHash, blockNumber, s.timestamp(), key,
	)
	if err != nil {
		return fmt.Errorf("record deleted for %s: %w", key, err)
	}
	return requireAffected(res, key)
}

// GetRelease fetches one release by key. A missing key returns nil, nil.
func (s *Store) GetRelease(ctx context.Context, key string) (*ReleaseRow, error) {
	rel, err := getRelease(ensureContext(ctx), s.db, key)
	if err != nil {
		return nil, fmt.Errorf("get release %s: %w", key, err)
	}
	return rel, nil
}

// ListReleases returns releases matching filter, newest first.
func (s *Store) ListReleases(ctx context.Context, filter ReleaseFilter) ([]*ReleaseRow, error) {
	ctx = ensureContext(ctx)
	var (
		where []string
		args  []any
	)
	statuses := filter.Statuses
	if filter.PendingOnly {
		statuses = pendingStatuses
		where = append(where, "publish_error_count < ?")
		args = append(args, MaxPublishErrors)
	}
	if len(statuses) > 0 {
		where = append(where, "status IN ("+makePlaceholders(len(statuses))+")")
		args = append(args, statusArgs(statuses)...)
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		where = append(where, "source = ?")
		args = append(args, source)
	}

	query := `SELECT ` + releaseColumns + ` FROM releases`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, key"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()
	return collectReleases(rows)
}

// Stats returns release counts per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM releases GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("release stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// ResetPublishErrors clears the retry counter so the publisher picks the
// releases up again. Failed rows return to PublishPending. With no keys,
// every release at the retry ceiling is reset.
func (s *Store) ResetPublishErrors(ctx context.Context, keys ...string) (int64, error) {
	query := `UPDATE releases SET
        status = CASE WHEN status = ? THEN ? ELSE status END,
        publish_error_count = 0, last_publish_error = NULL, updated_at = ?`
	args := []any{StatusFailed, StatusPublishPending, s.timestamp()}
	if len(keys) == 0 {
		query += ` WHERE publish_error_count >= ?`
		args = append(args, MaxPublishErrors)
	} else {
		query += ` WHERE key IN (` + makePlaceholders(len(keys)) + `)`
		for _, k := range keys {
			args = append(args, k)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset publish errors: %w", err)
	}
	return res.RowsAffected()
}

func collectReleases(rows *sql.Rows) ([]*ReleaseRow, error) {
	var out []*ReleaseRow
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrReleaseNotFound, key)
	}
	return nil
}
