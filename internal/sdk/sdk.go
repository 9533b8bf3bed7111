// Package sdk is the publishing platform contract. The publisher talks to
// the platform only through Platform; Client is the HTTP implementation.
package sdk

import (
	"context"
	"errors"
	"time"
)

// ErrUnexpectedStatus is wrapped by Client errors for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Result identifies the entity a call created or touched and the block
// that recorded it.
type Result struct {
	ID          string `json:"id"`
	BlockHash   string `json:"block_hash"`
	BlockNumber int64  `json:"block_number"`
}

// File is an uploaded asset.
type File struct {
	Name string
	Data []byte
}

// Copyright is a C or P line.
type Copyright struct {
	Year string `json:"year,omitempty"`
	Text string `json:"text"`
}

// Contributor is a credited party.
type Contributor struct {
	Name           string   `json:"name"`
	Roles          []string `json:"roles,omitempty"`
	SequenceNumber int      `json:"sequence_number,omitempty"`
}

// RightsController names who controls a recording's rights.
type RightsController struct {
	Name               string   `json:"name"`
	Roles              []string `json:"roles,omitempty"`
	RightsShareUnknown string   `json:"rights_share_unknown,omitempty"`
}

// USDCPurchase gates content behind a purchase.
type USDCPurchase struct {
	PriceCents int64 `json:"price"`
}

// NFTCollection gates content behind token ownership.
type NFTCollection struct {
	Chain        string `json:"chain"`
	Address      string `json:"address"`
	Standard     string `json:"standard,omitempty"`
	Name         string `json:"name"`
	Slug         string `json:"slug,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	ExternalLink string `json:"external_link,omitempty"`
}

// AccessConditions describe a stream or download gate. Exactly one field is set.
type AccessConditions struct {
	USDCPurchase  *USDCPurchase  `json:"usdc_purchase,omitempty"`
	FollowUserID  string         `json:"follow_user_id,omitempty"`
	TipUserID     string         `json:"tip_user_id,omitempty"`
	NFTCollection *NFTCollection `json:"nft_collection,omitempty"`
}

// Gating is the stream and download access for one track or album.
type Gating struct {
	IsStreamGated      bool              `json:"is_stream_gated"`
	StreamConditions   *AccessConditions `json:"stream_conditions,omitempty"`
	IsDownloadGated    bool              `json:"is_download_gated"`
	DownloadConditions *AccessConditions `json:"download_conditions,omitempty"`
	IsDownloadable     bool              `json:"is_downloadable"`
}

// TrackMetadata is the platform's track document.
type TrackMetadata struct {
	Title                        string            `json:"title"`
	Genre                        string            `json:"genre"`
	ReleaseDate                  *time.Time        `json:"release_date,omitempty"`
	ISRC                         string            `json:"isrc,omitempty"`
	DurationSeconds              int               `json:"duration,omitempty"`
	PreviewStartSeconds          *int              `json:"preview_start_seconds,omitempty"`
	ParentalWarningType          string            `json:"parental_warning_type,omitempty"`
	Artists                      []Contributor     `json:"artists,omitempty"`
	ResourceContributors         []Contributor     `json:"resource_contributors,omitempty"`
	IndirectResourceContributors []Contributor     `json:"indirect_resource_contributors,omitempty"`
	RightsController             *RightsController `json:"rights_controller,omitempty"`
	Copyright                    *Copyright        `json:"copyright_line,omitempty"`
	ProducerCopyright            *Copyright        `json:"producer_copyright_line,omitempty"`
	LabelName                    string            `json:"label_name,omitempty"`
	DDEXReleaseIDs               map[string]string `json:"ddex_release_ids,omitempty"`
	DDEXApp                      string            `json:"ddex_app,omitempty"`
	PlacementHosts               string            `json:"placement_hosts,omitempty"`
	Gating
}

// AlbumMetadata is the platform's album document.
type AlbumMetadata struct {
	Name              string            `json:"playlist_name"`
	Genre             string            `json:"genre"`
	ReleaseDate       *time.Time        `json:"release_date,omitempty"`
	UPC               string            `json:"upc,omitempty"`
	ParentalWarning   string            `json:"parental_warning_type,omitempty"`
	Artists           []Contributor     `json:"artists,omitempty"`
	Copyright         *Copyright        `json:"copyright_line,omitempty"`
	ProducerCopyright *Copyright        `json:"producer_copyright_line,omitempty"`
	LabelName         string            `json:"label_name,omitempty"`
	DDEXReleaseIDs    map[string]string `json:"ddex_release_ids,omitempty"`
	DDEXApp           string            `json:"ddex_app,omitempty"`
	IsAlbum           bool              `json:"is_album"`
	Gating
}

// AlbumTrack is one track uploaded as part of an album.
type AlbumTrack struct {
	Metadata TrackMetadata
	Audio    File
	Preview  *File
}

// UploadTrackRequest creates a single track.
type UploadTrackRequest struct {
	UserID   string
	Metadata TrackMetadata
	Audio    File
	Preview  *File
	Cover    File
}

// UploadAlbumRequest creates an album and its tracks.
type UploadAlbumRequest struct {
	UserID   string
	Metadata AlbumMetadata
	Tracks   []AlbumTrack
	Cover    File
}

// UpdateTrackRequest replaces a track's metadata.
type UpdateTrackRequest struct {
	UserID   string
	TrackID  string
	Metadata TrackMetadata
}

// UpdateAlbumRequest replaces an album's metadata.
type UpdateAlbumRequest struct {
	UserID   string
	AlbumID  string
	Metadata AlbumMetadata
}

// Platform is the set of publishing calls.
type Platform interface {
	UploadTrack(ctx context.Context, req UploadTrackRequest) (Result, error)
	UpdateTrack(ctx context.Context, req UpdateTrackRequest) (Result, error)
	DeleteTrack(ctx context.Context, userID, trackID string) (Result, error)
	UploadAlbum(ctx context.Context, req UploadAlbumRequest) (Result, error)
	UpdateAlbum(ctx context.Context, req UpdateAlbumRequest) (Result, error)
	DeleteAlbum(ctx context.Context, userID, albumID string) (Result, error)
}
