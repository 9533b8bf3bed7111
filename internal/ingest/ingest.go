// Package ingest turns delivered ERN documents into stored releases. Every
// document is logged verbatim before its releases reach the store, so it
// can be replayed after new accounts are registered.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ddexer/internal/config"
	"ddexer/internal/logging"
	"ddexer/internal/parser"
	"ddexer/internal/store"
)

// Ingester parses documents and reconciles them with the store.
type Ingester struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an Ingester.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingester{
		store:  st,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "ingest"),
		now:    time.Now,
	}
}

// SetClock overrides the clock used for deal validity windows.
func (i *Ingester) SetClock(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

// Result summarizes one ingested document.
type Result struct {
	Kind             parser.Kind
	MessageTimestamp time.Time
	// Logged is false when the identical document was already in the log.
	Logged    bool
	Decisions map[string]store.Decision
}

// Count returns how many releases resolved to action.
func (r *Result) Count(action store.Action) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Action == action {
			n++
		}
	}
	return n
}

// IngestDocument logs xml and applies its releases or purges. Documents
// that fail to parse are still logged, without a timestamp.
func (i *Ingester) IngestDocument(ctx context.Context, src config.Source, xmlURL string, xml []byte) (*Result, error) {
	logger := i.logger.With(
		logging.Source(src.Name),
		logging.XMLURL(xmlURL),
	)

	dir, err := i.store.ListUsers(ctx, src.SDK.APIKey)
	if err != nil {
		return nil, fmt.Errorf("load users for %s: %w", src.Name, err)
	}

	delivery, parseErr := parser.Parse(parser.Input{
		Source: src.Name,
		XMLURL: xmlURL,
		XML:    xml,
		Users:  dir,
		UserID: src.SDK.UserID,
		Now:    i.now(),
		Logger: logger,
	})

	rec := store.XMLRecord{Source: src.Name, XMLURL: xmlURL, XML: xml}
	if parseErr == nil {
		ts := delivery.MessageTimestamp
		rec.MessageTimestamp = &ts
	}
	logged, err := i.store.AppendXML(ctx, rec)
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		logging.WarnWithContext(logger, "delivery could not be parsed", "delivery_invalid",
			logging.Error(parseErr),
			logging.String(logging.FieldErrorHint, "inspect the document with `ddexer xml show`"),
			logging.String(logging.FieldImpact, "no releases were updated"),
		)
		return nil, &ParseError{XMLURL: xmlURL, Err: parseErr}
	}

	result := &Result{
		Kind:             delivery.Kind,
		MessageTimestamp: delivery.MessageTimestamp,
		Logged:           logged,
		Decisions:        make(map[string]store.Decision),
	}

	for _, rel := range delivery.Releases {
		decision, err := i.store.Upsert(ctx, store.UpsertInput{
			Source:           src.Name,
			XMLURL:           xmlURL,
			MessageTimestamp: delivery.MessageTimestamp,
			Release:          rel,
		})
		if err != nil {
			return result, err
		}
		result.Decisions[rel.Key()] = decision
		logDecision(logger, rel.Key(), decision,
			logging.String(logging.FieldReleaseRef, rel.Ref),
			logging.Any("problems", rel.Problems),
		)
	}

	for _, ids := range delivery.Purges {
		key, decision, err := i.store.MarkForDelete(ctx, store.PurgeInput{
			Source:           src.Name,
			XMLURL:           xmlURL,
			MessageTimestamp: delivery.MessageTimestamp,
			IDs:              ids,
		})
		if err != nil {
			return result, err
		}
		if key == "" {
			continue
		}
		result.Decisions[key] = decision
		logDecision(logger, key, decision, logging.Bool("purge", true))
	}

	logger.Info("delivery ingested",
		logging.String("kind", string(delivery.Kind)),
		logging.Int("releases", len(delivery.Releases)),
		logging.Int("purges", len(delivery.Purges)),
		logging.Int("replaced", result.Count(store.ActionReplace)),
		logging.Int("marked_delete", result.Count(store.ActionMarkDelete)),
		logging.Bool("new_document", logged),
	)
	return result, nil
}

func logDecision(logger *slog.Logger, key string, d store.Decision, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.Release(key),
		logging.String("action", d.Action.String()),
		logging.String("reason", d.Reason),
	)
	switch d.Action {
	case store.ActionIgnore:
		logger.Debug("delivery ignored", logging.Args(append(attrs, logging.String(logging.FieldEventType, "delivery_stale"))...)...)
	default:
		logger.Info("release updated", logging.Args(attrs...)...)
	}
}

// IngestPath ingests a local file, or every .xml file below a directory in
// lexical order. Documents that fail to parse are logged and skipped.
func (i *Ingester) IngestPath(ctx context.Context, src config.Source, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", path, err)
	}
	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".xml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", abs, err)
	}

	ingested := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return ingested, fmt.Errorf("read %s: %w", file, err)
		}
		if _, err := i.IngestDocument(ctx, src, file, data); err != nil {
			if isParseError(err) {
				continue
			}
			return ingested, err
		}
		ingested++
	}
	return ingested, nil
}

// Reparse replays logged documents through the parser, optionally limited
// to one source. Run it after registering users so releases blocked on
// NoUser pick up their owner.
func (i *Ingester) Reparse(ctx context.Context, sourceName string) (int, error) {
	records, err := i.store.ListXML(ctx, store.XMLFilter{Source: sourceName, WithBody: true})
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		src, ok := i.cfg.SourceByName(rec.Source)
		if !ok {
			logging.WarnWithContext(i.logger, "logged document belongs to an unknown source", "reparse_unknown_source",
				logging.Source(rec.Source),
				logging.XMLURL(rec.XMLURL),
				logging.String(logging.FieldImpact, "document skipped"),
			)
			continue
		}
		if _, err := i.IngestDocument(ctx, src, rec.XMLURL, rec.XML); err != nil {
			if isParseError(err) {
				continue
			}
			return replayed, err
		}
		replayed++
	}
	i.logger.Info("reparse complete",
		logging.Source(sourceName),
		logging.Int("documents", len(records)),
		logging.Int("replayed", replayed),
	)
	return replayed, nil
}

// ParseError marks a document the parser rejected.
type ParseError struct {
	XMLURL string
	Err    error
}

func (e *ParseError) Error() string { return "parse " + e.XMLURL + ": " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// isParseError reports whether err came from a malformed document rather
// than the store.
func isParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
