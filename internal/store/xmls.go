package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// AppendXML logs a document. Re-ingesting identical bytes from the same URL
// is a no-op; the returned bool reports whether a row was written.
func (s *Store) AppendXML(ctx context.Context, rec XMLRecord) (bool, error) {
	if rec.XMLURL == "" {
		return false, errors.New("append xml: empty url")
	}
	compressed := zstdEncoder.EncodeAll(rec.XML, nil)
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO xmls (source, xml_url, message_timestamp, content_hash, xml_zstd, size, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Source, rec.XMLURL, nullableTime(rec.MessageTimestamp), contentHash(rec.XML), compressed,
		len(rec.XML), s.timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("append xml %s: %w", rec.XMLURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListXML returns logged documents in ingestion order.
func (s *Store) ListXML(ctx context.Context, filter XMLFilter) ([]XMLRecord, error) {
	ctx = ensureContext(ctx)
	body := "NULL"
	if filter.WithBody {
		body = "xml_zstd"
	}
	query := `SELECT id, source, xml_url, message_timestamp, content_hash, size, created_at, ` + body + ` FROM xmls`
	var args []any
	if filter.Source != "" {
		query += ` WHERE source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list xml: %w", err)
	}
	defer rows.Close()

	var out []XMLRecord
	for rows.Next() {
		rec, err := scanXML(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetXML returns the most recent logged document for xmlURL, or nil, nil.
func (s *Store) GetXML(ctx context.Context, xmlURL string) (*XMLRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, xml_url, message_timestamp, content_hash, size, created_at, xml_zstd
         FROM xmls WHERE xml_url = ? ORDER BY id DESC LIMIT 1`,
		xmlURL,
	)
	rec, err := scanXML(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get xml %s: %w", xmlURL, err)
	}
	return rec, nil
}

func scanXML(scanner interface{ Scan(dest ...any) error }) (*XMLRecord, error) {
	var (
		rec        XMLRecord
		tsRaw      sql.NullString
		createdRaw string
		compressed []byte
	)
	if err := scanner.Scan(&rec.ID, &rec.Source, &rec.XMLURL, &tsRaw, &rec.ContentHash, &rec.Size, &createdRaw, &compressed); err != nil {
		return nil, err
	}
	if tsRaw.Valid {
		if ts, err := parseTimeString(tsRaw.String); err == nil {
			rec.MessageTimestamp = &ts
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if compressed != nil {
		raw, err := zstdDecoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress xml %d: %w", rec.ID, err)
		}
		rec.XML = raw
	}
	return &rec, nil
}

