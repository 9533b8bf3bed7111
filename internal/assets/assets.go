// Package assets resolves the audio and image files a delivery references.
// Object-store assets are cached on disk by bucket and key; every read is
// served from the cached copy so publish retries do not refetch.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ddexer/internal/config"
	"ddexer/internal/fileutil"
	"ddexer/internal/logging"
	"ddexer/internal/objstore"
)

// ErrOutsideDelivery is returned for references that escape their root.
var ErrOutsideDelivery = errors.New("asset path escapes delivery")

// Resolver loads delivery-relative files.
type Resolver struct {
	cacheDir string
	buckets  objstore.Provider
	logger   *slog.Logger
}

// New constructs a Resolver caching under cfg's cache directory.
func New(cfg *config.Config, buckets objstore.Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		cacheDir: filepath.Join(cfg.Paths.CacheDir, "assets"),
		buckets:  buckets,
		logger:   logging.NewComponentLogger(logger, "assets"),
	}
}

// Ref names a file relative to the document that delivered it.
type Ref struct {
	XMLURL   string
	FilePath string
	FileName string
}

// Resolve returns the bytes of ref. src supplies bucket credentials for
// object-store origins.
func (r *Resolver) Resolve(ctx context.Context, src config.Source, ref Ref) ([]byte, error) {
	if strings.TrimSpace(ref.FileName) == "" {
		return nil, fmt.Errorf("asset for %s has no file name", ref.XMLURL)
	}
	if bucket, xmlKey, ok := objstore.ParseURL(ref.XMLURL); ok {
		key, err := ObjectKey(xmlKey, ref.FilePath, ref.FileName)
		if err != nil {
			return nil, err
		}
		return r.resolveObject(ctx, src, bucket, key)
	}
	return r.resolveLocal(ref)
}

// ObjectKey joins a delivery-relative path onto the directory of xmlKey.
func ObjectKey(xmlKey, filePath, fileName string) (string, error) {
	key := path.Join(path.Dir(xmlKey), filePath, fileName)
	if key == ".." || strings.HasPrefix(key, "../") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %s", ErrOutsideDelivery, key)
	}
	return strings.TrimPrefix(key, "./"), nil
}

// CachePath returns where the object bucket/key is cached.
func (r *Resolver) CachePath(bucket, key string) string {
	return filepath.Join(r.cacheDir, bucket, filepath.FromSlash(key))
}

func (r *Resolver) resolveObject(ctx context.Context, src config.Source, bucket, key string) ([]byte, error) {
	cached := r.CachePath(bucket, key)
	hit, err := fileutil.Exists(cached)
	if err != nil {
		return nil, fmt.Errorf("stat cache %s: %w", cached, err)
	}
	if hit {
		return os.ReadFile(cached)
	}

	s3cfg := src.S3
	s3cfg.Bucket = bucket
	b, err := r.buckets.Bucket(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	data, err := b.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := fileutil.WriteAtomic(cached, data, 0o644); err != nil {
		return nil, fmt.Errorf("cache asset: %w", err)
	}
	r.logger.Debug("asset cached",
		logging.String(logging.FieldBucket, bucket),
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)
	return os.ReadFile(cached)
}

func (r *Resolver) resolveLocal(ref Ref) ([]byte, error) {
	root := filepath.Dir(ref.XMLURL)
	full := filepath.Join(root, filepath.FromSlash(ref.FilePath), filepath.FromSlash(ref.FileName))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideDelivery, full)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return data, nil
}
