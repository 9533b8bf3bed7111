// Package publisher pushes pending releases to the publishing platform and
// records each outcome in the store. A failing release never stops the pass;
// its error is stored and retried on later passes up to the ceiling.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ddexer/internal/assets"
	"ddexer/internal/config"
	"ddexer/internal/ddex"
	"ddexer/internal/logging"
	"ddexer/internal/sdk"
	"ddexer/internal/store"
)

// Outcome describes what happened to one release.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Publisher drains the store's pending work.
type Publisher struct {
	cfg       *config.Config
	store     *store.Store
	assets    *assets.Resolver
	platforms sdk.Provider
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Publisher.
func New(cfg *config.Config, st *store.Store, resolver *assets.Resolver, platforms sdk.Provider, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		cfg:       cfg,
		store:     st,
		assets:    resolver,
		platforms: platforms,
		logger:    logging.NewComponentLogger(logger, "publisher"),
		now:       time.Now,
	}
}

// SetClock overrides the clock used to hold back future releases.
func (p *Publisher) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Summary counts outcomes of one pass.
type Summary map[Outcome]int

// Total returns the number of releases handled.
func (s Summary) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Publish runs one pass over ListPendingWork.
func (p *Publisher) Publish(ctx context.Context, passID string) (Summary, error) {
	logger := p.logger
	if passID != "" {
		logger = logger.With(logging.String(logging.FieldPassID, passID))
	}
	rows, err := p.store.ListPendingWork(ctx)
	if err != nil {
		return nil, err
	}
	summary := Summary{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := p.PublishRelease(ctx, row, logger)
		summary[outcome]++
		if err != nil && outcome != OutcomeFailed {
			return summary, err
		}
	}
	if len(rows) > 0 {
		logger.Info("publish pass complete",
			logging.Int("pending", len(rows)),
			logging.Int("created", summary[OutcomeCreated]),
			logging.Int("updated", summary[OutcomeUpdated]),
			logging.Int("deleted", summary[OutcomeDeleted]),
			logging.Int("skipped", summary[OutcomeSkipped]),
			logging.Int("failed", summary[OutcomeFailed]),
		)
	}
	return summary, nil
}

// PublishRelease acts on one pending row. Platform and asset errors are
// recorded with RecordFailure and reported as OutcomeFailed; only store
// errors are returned with another outcome.
func (p *Publisher) PublishRelease(ctx context.Context, row *store.ReleaseRow, logger *slog.Logger) (Outcome, error) {
	if logger == nil {
		logger = p.logger
	}
	logger = logger.With(
		logging.Source(row.Source),
		logging.Release(row.Key),
		logging.String(logging.FieldStatus, string(row.Status)),
	)

	if row.Status == store.StatusDeletePending && row.EntityID == "" {
		if err := p.store.RecordDeleted(ctx, row.Key, nil); err != nil {
			return OutcomeSkipped, err
		}
		logger.Info("unpublished release deleted locally")
		return OutcomeDeleted, nil
	}

	if row.EntityID == "" && row.Release.ReleaseDate.After(p.now()) {
		logger.Debug("release date in the future", logging.Time("release_date", row.Release.ReleaseDate))
		return OutcomeSkipped, nil
	}

	outcome, ref, err := p.dispatch(ctx, row)
	if err != nil {
		logging.WarnWithContext(logger, "publish failed", "publish_failed",
			logging.Error(err),
			logging.Int("attempt", row.PublishErrorCount+1),
			logging.String(logging.FieldErrorHint, "fix the cause, then `ddexer releases retry`"),
			logging.String(logging.FieldImpact, "release retried on the next pass"),
		)
		if recErr := p.store.RecordFailure(ctx, row.Key, err.Error()); recErr != nil {
			return OutcomeSkipped, recErr
		}
		return OutcomeFailed, err
	}

	if outcome == OutcomeDeleted {
		err = p.store.RecordDeleted(ctx, row.Key, &ref)
	} else {
		err = p.store.RecordSuccess(ctx, row.Key, ref)
	}
	if err != nil {
		return OutcomeSkipped, err
	}
	logger.Info("release "+string(outcome),
		logging.String("entity_type", string(ref.Type)),
		logging.String("entity_id", ref.ID),
		logging.Int64("block_number", ref.BlockNumber),
	)
	return outcome, nil
}

func (p *Publisher) dispatch(ctx context.Context, row *store.ReleaseRow) (Outcome, store.EntityRef, error) {
	src, ok := p.cfg.SourceByName(row.Source)
	if !ok {
		return OutcomeFailed, store.EntityRef{}, fmt.Errorf("unknown source %q", row.Source)
	}
	platform, err := p.platforms.Platform(src.SDK)
	if err != nil {
		return OutcomeFailed, store.EntityRef{}, fmt.Errorf("platform for %s: %w", src.Name, err)
	}
	rel := &row.Release
	userID := firstNonEmpty(rel.AudiusUser, src.SDK.UserID)
	if userID == "" {
		return OutcomeFailed, store.EntityRef{}, errors.New("release has no owning user")
	}

	var (
		res     sdk.Result
		outcome Outcome
	)
	entityType := row.EntityType
	switch {
	case row.Status == store.StatusDeletePending:
		outcome = OutcomeDeleted
		if entityType == store.EntityAlbum {
			res, err = platform.DeleteAlbum(ctx, userID, row.EntityID)
		} else {
			res, err = platform.DeleteTrack(ctx, userID, row.EntityID)
		}
	case row.EntityID != "":
		outcome = OutcomeUpdated
		if entityType == store.EntityAlbum {
			res, err = platform.UpdateAlbum(ctx, sdk.UpdateAlbumRequest{UserID: userID, AlbumID: row.EntityID, Metadata: albumMetadata(src, rel)})
		} else {
			res, err = platform.UpdateTrack(ctx, p.updateTrackRequest(src, rel, userID, row.EntityID))
		}
	default:
		outcome = OutcomeCreated
		if rel.IsAlbum() {
			entityType = store.EntityAlbum
			res, err = p.uploadAlbum(ctx, platform, src, row, userID)
		} else {
			entityType = store.EntityTrack
			res, err = p.uploadTrack(ctx, platform, src, row, userID)
		}
	}
	if err != nil {
		return OutcomeFailed, store.EntityRef{}, err
	}
	ref := store.EntityRef{
		Type:        entityType,
		ID:          firstNonEmpty(res.ID, row.EntityID),
		BlockHash:   res.BlockHash,
		BlockNumber: res.BlockNumber,
	}
	if ref.ID == "" {
		return OutcomeFailed, store.EntityRef{}, errors.New("platform returned no entity id")
	}
	return outcome, ref, nil
}

func (p *Publisher) updateTrackRequest(src config.Source, rel *ddex.Release, userID, trackID string) sdk.UpdateTrackRequest {
	req := sdk.UpdateTrackRequest{UserID: userID, TrackID: trackID}
	if len(rel.SoundRecordings) > 0 {
		req.Metadata = trackMetadata(src, rel, &rel.SoundRecordings[0])
	} else {
		req.Metadata = trackMetadata(src, rel, &ddex.SoundRecording{})
	}
	return req
}

func (p *Publisher) uploadTrack(ctx context.Context, platform sdk.Platform, src config.Source, row *store.ReleaseRow, userID string) (sdk.Result, error) {
	rel := &row.Release
	if len(rel.SoundRecordings) == 0 {
		return sdk.Result{}, errors.New("release has no sound recordings")
	}
	cover, err := p.cover(ctx, src, row)
	if err != nil {
		return sdk.Result{}, err
	}
	sr := &rel.SoundRecordings[0]
	audio, preview, err := p.audio(ctx, src, row.XMLURL, sr)
	if err != nil {
		return sdk.Result{}, err
	}
	return platform.UploadTrack(ctx, sdk.UploadTrackRequest{
		UserID:   userID,
		Metadata: trackMetadata(src, rel, sr),
		Audio:    audio,
		Preview:  preview,
		Cover:    cover,
	})
}

func (p *Publisher) uploadAlbum(ctx context.Context, platform sdk.Platform, src config.Source, row *store.ReleaseRow, userID string) (sdk.Result, error) {
	rel := &row.Release
	cover, err := p.cover(ctx, src, row)
	if err != nil {
		return sdk.Result{}, err
	}
	tracks := make([]sdk.AlbumTrack, 0, len(rel.SoundRecordings))
	for i := range rel.SoundRecordings {
		sr := &rel.SoundRecordings[i]
		audio, preview, err := p.audio(ctx, src, row.XMLURL, sr)
		if err != nil {
			return sdk.Result{}, err
		}
		tracks = append(tracks, sdk.AlbumTrack{Metadata: trackMetadata(src, rel, sr), Audio: audio, Preview: preview})
	}
	return platform.UploadAlbum(ctx, sdk.UploadAlbumRequest{
		UserID:   userID,
		Metadata: albumMetadata(src, rel),
		Tracks:   tracks,
		Cover:    cover,
	})
}

func (p *Publisher) cover(ctx context.Context, src config.Source, row *store.ReleaseRow) (sdk.File, error) {
	if len(row.Release.Images) == 0 {
		return sdk.File{}, errors.New("release has no cover image")
	}
	img := row.Release.Images[0]
	data, err := p.assets.Resolve(ctx, src, assets.Ref{XMLURL: row.XMLURL, FilePath: img.FilePath, FileName: img.FileName})
	if err != nil {
		return sdk.File{}, fmt.Errorf("cover %s: %w", img.Ref, err)
	}
	return sdk.File{Name: img.FileName, Data: data}, nil
}

func (p *Publisher) audio(ctx context.Context, src config.Source, xmlURL string, sr *ddex.SoundRecording) (sdk.File, *sdk.File, error) {
	data, err := p.assets.Resolve(ctx, src, assets.Ref{XMLURL: xmlURL, FilePath: sr.FilePath, FileName: sr.FileName})
	if err != nil {
		return sdk.File{}, nil, fmt.Errorf("audio %s: %w", sr.Ref, err)
	}
	audio := sdk.File{Name: sr.FileName, Data: data}
	if sr.PreviewFileName == "" {
		return audio, nil, nil
	}
	preview, err := p.assets.Resolve(ctx, src, assets.Ref{XMLURL: xmlURL, FilePath: sr.PreviewFilePath, FileName: sr.PreviewFileName})
	if err != nil {
		return sdk.File{}, nil, fmt.Errorf("preview %s: %w", sr.Ref, err)
	}
	return audio, &sdk.File{Name: sr.PreviewFileName, Data: preview}, nil
}
