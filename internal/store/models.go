package store

import (
	"strings"
	"time"

	"ddexer/internal/ddex"
)

// Status is the publishing state of a stored release.
type Status string

const (
	StatusBlocked        Status = "Blocked"
	StatusPublishPending Status = "PublishPending"
	StatusFailed         Status = "Failed"
	StatusDeletePending  Status = "DeletePending"
	StatusPublished      Status = "Published"
	StatusDeleted        Status = "Deleted"
)

// MaxPublishErrors is the failure count at which a release stops being
// retried.
const MaxPublishErrors = 5

var allStatuses = []Status{
	StatusBlocked,
	StatusPublishPending,
	StatusFailed,
	StatusDeletePending,
	StatusPublished,
	StatusDeleted,
}

// pendingStatuses are picked up by the publisher.
var pendingStatuses = []Status{StatusPublishPending, StatusFailed, StatusDeletePending}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a case-insensitive name into a Status.
func ParseStatus(value string) (Status, bool) {
	value = strings.TrimSpace(value)
	for _, s := range allStatuses {
		if strings.EqualFold(string(s), value) {
			return s, true
		}
	}
	return "", false
}

// EntityType names the kind of platform entity a release published as.
type EntityType string

const (
	EntityTrack EntityType = "track"
	EntityAlbum EntityType = "album"
)

// ReleaseRow is one stored release with its publishing bookkeeping.
type ReleaseRow struct {
	Key               string
	Ref               string
	Source            string
	XMLURL            string
	MessageTimestamp  time.Time
	Release           ddex.Release
	ContentHash       string
	Status            Status
	EntityType        EntityType
	EntityID          string
	BlockHash         string
	BlockNumber       int64
	PublishErrorCount int
	LastPublishError  string
	PublishedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsPublished reports whether the release has a platform entity.
func (r *ReleaseRow) IsPublished() bool {
	return r != nil && r.EntityID != ""
}

// EntityRef identifies a published platform entity and the block that
// recorded the change.
type EntityRef struct {
	Type        EntityType
	ID          string
	BlockHash   string
	BlockNumber int64
}

// ReleaseFilter narrows ListReleases.
type ReleaseFilter struct {
	Statuses    []Status
	Source      string
	PendingOnly bool
	Limit       int
}

// XMLRecord is one entry of the append-only document log.
type XMLRecord struct {
	ID               int64
	Source           string
	XMLURL           string
	MessageTimestamp *time.Time
	ContentHash      string
	Size             int64
	XML              []byte
	CreatedAt        time.Time
}

// XMLFilter narrows ListXML.
type XMLFilter struct {
	Source   string
	WithBody bool
}

// Marker is the last processed prefix of a bucket.
type Marker struct {
	Bucket    string
	Marker    string
	UpdatedAt time.Time
}
