package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"ddexer/internal/ddex"
)

const releaseColumns = "key, ref, source, xml_url, message_timestamp, release_json, content_hash, status, entity_type, entity_id, block_hash, block_number, publish_error_count, last_publish_error, published_at, created_at, updated_at"

func scanRelease(scanner interface{ Scan(dest ...any) error }) (*ReleaseRow, error) {
	var (
		key          string
		ref          string
		source       string
		xmlURL       string
		tsRaw        string
		releaseJSON  string
		contentHash  string
		statusStr    string
		entityType   sql.NullString
		entityID     sql.NullString
		blockHash    sql.NullString
		blockNumber  sql.NullInt64
		errorCount   int
		lastError    sql.NullString
		publishedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&key,
		&ref,
		&source,
		&xmlURL,
		&tsRaw,
		&releaseJSON,
		&contentHash,
		&statusStr,
		&entityType,
		&entityID,
		&blockHash,
		&blockNumber,
		&errorCount,
		&lastError,
		&publishedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	row := &ReleaseRow{
		Key:               key,
		Ref:               ref,
		Source:            source,
		XMLURL:            xmlURL,
		ContentHash:       contentHash,
		Status:            Status(statusStr),
		EntityType:        EntityType(entityType.String),
		EntityID:          entityID.String,
		BlockHash:         blockHash.String,
		BlockNumber:       blockNumber.Int64,
		PublishErrorCount: errorCount,
		LastPublishError:  lastError.String,
	}
	if err := json.Unmarshal([]byte(releaseJSON), &row.Release); err != nil {
		return nil, fmt.Errorf("decode release %s: %w", key, err)
	}
	if ts, err := parseTimeString(tsRaw); err == nil {
		row.MessageTimestamp = ts
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			row.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		row.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		row.UpdatedAt = updated
	}
	return row, nil
}

// encodeRelease returns the stored json form of r and its content hash.
func encodeRelease(r *ddex.Release) (string, string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", "", fmt.Errorf("encode release: %w", err)
	}
	return string(data), contentHash(data), nil
}

func contentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	return args
}
