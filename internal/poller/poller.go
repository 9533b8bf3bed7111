// Package poller discovers new deliveries in source buckets. Each bucket has
// a persisted marker naming the last fully processed top-level prefix;
// markers only move forward unless a reset is requested.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ddexer/internal/config"
	"ddexer/internal/ingest"
	"ddexer/internal/logging"
	"ddexer/internal/objstore"
	"ddexer/internal/store"
)

// Poller scans configured buckets and feeds documents to the ingester.
type Poller struct {
	cfg      *config.Config
	store    *store.Store
	ingester *ingest.Ingester
	buckets  objstore.Provider
	logger   *slog.Logger
}

// New constructs a Poller.
func New(cfg *config.Config, st *store.Store, ing *ingest.Ingester, buckets objstore.Provider, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{
		cfg:      cfg,
		store:    st,
		ingester: ing,
		buckets:  buckets,
		logger:   logging.NewComponentLogger(logger, "poller"),
	}
}

// Options tune one poll.
type Options struct {
	// Source limits the poll to one source name.
	Source string
	// Reset clears stored markers first so every prefix is scanned again.
	Reset bool
	// PassID tags log lines of this poll.
	PassID string
}

// Summary counts the work done by a poll.
type Summary struct {
	Prefixes  int
	Documents int
	Rejected  int
}

func (s *Summary) add(o Summary) {
	s.Prefixes += o.Prefixes
	s.Documents += o.Documents
	s.Rejected += o.Rejected
}

// Poll scans every polled source. A failing source is logged and does not
// stop the others; the first such error is returned.
func (p *Poller) Poll(ctx context.Context, opts Options) (Summary, error) {
	var (
		total    Summary
		firstErr error
	)
	logger := p.logger
	if opts.PassID != "" {
		logger = logger.With(logging.String(logging.FieldPassID, opts.PassID))
	}
	for _, src := range p.cfg.PolledSources() {
		if opts.Source != "" && src.Name != opts.Source {
			continue
		}
		sum, err := p.pollSource(ctx, src, opts.Reset, logger)
		total.add(sum)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			logging.ErrorWithContext(logger, "source poll failed", "poll_failed",
				logging.Source(src.Name),
				logging.String(logging.FieldBucket, src.S3.Bucket),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check bucket credentials and connectivity"),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}

func (p *Poller) pollSource(ctx context.Context, src config.Source, reset bool, logger *slog.Logger) (Summary, error) {
	var sum Summary
	if !src.S3.Enabled() {
		return sum, fmt.Errorf("source %s has no bucket", src.Name)
	}
	bucket, err := p.buckets.Bucket(ctx, src.S3)
	if err != nil {
		return sum, fmt.Errorf("open bucket %s: %w", src.S3.Bucket, err)
	}
	logger = logger.With(
		logging.Source(src.Name),
		logging.String(logging.FieldBucket, bucket.Name()),
	)

	if reset {
		if err := p.store.ResetMarker(ctx, bucket.Name()); err != nil {
			return sum, err
		}
		logger.Info("marker reset")
	}
	marker, err := p.store.GetMarker(ctx, bucket.Name())
	if err != nil {
		return sum, err
	}

	prefixes, err := bucket.ListPrefixes(ctx, marker)
	if err != nil {
		return sum, err
	}
	logger.Debug("listed prefixes", logging.String("marker", marker), logging.Int("count", len(prefixes)))

	for _, prefix := range prefixes {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		docs, rejected, err := p.ingestPrefix(ctx, src, bucket, prefix, logger)
		sum.Documents += docs
		sum.Rejected += rejected
		if err != nil {
			return sum, fmt.Errorf("prefix %s: %w", prefix, err)
		}
		if _, err := p.store.AdvanceMarker(ctx, bucket.Name(), prefix); err != nil {
			return sum, err
		}
		sum.Prefixes++
		logger.Info("prefix processed",
			logging.String(logging.FieldPrefix, prefix),
			logging.Int("documents", docs),
			logging.Int("rejected", rejected),
		)
	}
	return sum, nil
}

func (p *Poller) ingestPrefix(ctx context.Context, src config.Source, bucket objstore.Bucket, prefix string, logger *slog.Logger) (int, int, error) {
	objects, err := bucket.ListObjects(ctx, prefix)
	if err != nil {
		return 0, 0, err
	}
	docs, rejected := 0, 0
	for _, obj := range objects {
		if !strings.EqualFold(pathExt(obj.Key), ".xml") {
			continue
		}
		data, err := bucket.Get(ctx, obj.Key)
		if err != nil {
			return docs, rejected, err
		}
		_, err = p.ingester.IngestDocument(ctx, src, objstore.URL(bucket.Name(), obj.Key), data)
		var parseErr *ingest.ParseError
		switch {
		case errors.As(err, &parseErr):
			rejected++
		case err != nil:
			return docs, rejected, err
		default:
			docs++
		}
	}
	if docs+rejected == 0 {
		logger.Debug("prefix holds no documents", logging.String(logging.FieldPrefix, prefix))
	}
	return docs, rejected, nil
}

func pathExt(key string) string {
	slash := strings.LastIndex(key, "/")
	dot := strings.LastIndex(key, ".")
	if dot <= slash {
		return ""
	}
	return key[dot:]
}
