package sdk

import (
	"context"
	"fmt"
	"sync"
)

// Call records one invocation on a Recorder.
type Call struct {
	Method string
	UserID string
	ID     string
	Track  *UploadTrackRequest
	Album  *UploadAlbumRequest
	// Metadata holds the TrackMetadata or AlbumMetadata of an update.
	Metadata any
}

// Recorder is an in-memory Platform that records calls and returns
// sequential entity ids. Set Err to make every call fail.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	next  int64
	Err   error
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) record(c Call, id string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.Err != nil {
		return Result{}, r.Err
	}
	r.next++
	if id == "" {
		id = fmt.Sprintf("e%d", r.next)
	}
	return Result{ID: id, BlockHash: fmt.Sprintf("0x%04x", r.next), BlockNumber: r.next}, nil
}

func (r *Recorder) UploadTrack(_ context.Context, req UploadTrackRequest) (Result, error) {
	return r.record(Call{Method: "UploadTrack", UserID: req.UserID, Track: &req}, "")
}

func (r *Recorder) UpdateTrack(_ context.Context, req UpdateTrackRequest) (Result, error) {
	return r.record(Call{Method: "UpdateTrack", UserID: req.UserID, ID: req.TrackID, Metadata: req.Metadata}, req.TrackID)
}

func (r *Recorder) DeleteTrack(_ context.Context, userID, trackID string) (Result, error) {
	return r.record(Call{Method: "DeleteTrack", UserID: userID, ID: trackID}, trackID)
}

func (r *Recorder) UploadAlbum(_ context.Context, req UploadAlbumRequest) (Result, error) {
	return r.record(Call{Method: "UploadAlbum", UserID: req.UserID, Album: &req}, "")
}

func (r *Recorder) UpdateAlbum(_ context.Context, req UpdateAlbumRequest) (Result, error) {
	return r.record(Call{Method: "UpdateAlbum", UserID: req.UserID, ID: req.AlbumID, Metadata: req.Metadata}, req.AlbumID)
}

func (r *Recorder) DeleteAlbum(_ context.Context, userID, albumID string) (Result, error) {
	return r.record(Call{Method: "DeleteAlbum", UserID: userID, ID: albumID}, albumID)
}
