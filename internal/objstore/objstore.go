// Package objstore reads delivery documents and assets from S3-compatible
// buckets.
package objstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"ddexer/internal/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("object not found")

// Object describes one listed key.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Bucket is the read-only view of a bucket the poller and asset resolver need.
type Bucket interface {
	Name() string
	// ListPrefixes returns top-level "dir/" prefixes sorting after marker,
	// in lexicographic order.
	ListPrefixes(ctx context.Context, after string) ([]string, error)
	// ListObjects returns every key under prefix, recursively, in
	// lexicographic order.
	ListObjects(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Provider hands out a Bucket for a source's credentials.
type Provider interface {
	Bucket(ctx context.Context, cfg config.S3) (Bucket, error)
}

const scheme = "s3://"

// URL renders the canonical origin for a key.
func URL(bucket, key string) string {
	return scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseURL splits an s3:// origin into bucket and key.
func ParseURL(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, scheme)
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, key, true
}
