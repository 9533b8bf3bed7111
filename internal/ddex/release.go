package ddex

import (
	"slices"
	"strings"
	"time"
)

// Problem marks a condition that prevents a release from being published.
type Problem string

const (
	ProblemNoGenre          Problem = "NoGenre"
	ProblemNoUser           Problem = "NoUser"
	ProblemNoDeal           Problem = "NoDeal"
	ProblemNoImage          Problem = "NoImage"
	ProblemDuplicateRelease Problem = "DuplicateRelease"
)

// ReleaseIDs holds the identifiers carried by a <ReleaseId> element.
type ReleaseIDs struct {
	ISRC          string `json:"isrc,omitempty"`
	ICPN          string `json:"icpn,omitempty"`
	GRid          string `json:"grid,omitempty"`
	ProprietaryID string `json:"proprietaryId,omitempty"`
	CatalogNumber string `json:"catalogNumber,omitempty"`
}

// Key returns the stable release key: the first present of ISRC, ICPN, GRid.
func (ids ReleaseIDs) Key() string {
	for _, id := range []string{ids.ISRC, ids.ICPN, ids.GRid} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

// Contributor is a named party with one or more roles.
type Contributor struct {
	Name           string   `json:"name"`
	Roles          []string `json:"roles,omitempty"`
	SequenceNumber int      `json:"sequenceNumber,omitempty"`
}

// Copyright is a C-line or P-line.
type Copyright struct {
	Year string `json:"year"`
	Text string `json:"text"`
}

// RightsController names the party controlling a recording.
type RightsController struct {
	Name               string   `json:"name"`
	Roles              []string `json:"roles,omitempty"`
	RightsShareUnknown string   `json:"rightsShareUnknown,omitempty"`
}

// SoundRecording is one audio resource of a delivery.
type SoundRecording struct {
	Ref                  string            `json:"ref"`
	ISRC                 string            `json:"isrc,omitempty"`
	Title                string            `json:"title"`
	Subtitle             string            `json:"subtitle,omitempty"`
	DurationSeconds      int               `json:"duration,omitempty"`
	ArtistName           string            `json:"artistName,omitempty"`
	Artists              []Contributor     `json:"artists,omitempty"`
	Contributors         []Contributor     `json:"contributors,omitempty"`
	IndirectContributors []Contributor     `json:"indirectContributors,omitempty"`
	RightsController     *RightsController `json:"rightsController,omitempty"`
	Genre                string            `json:"genre,omitempty"`
	SubGenre             string            `json:"subGenre,omitempty"`
	AudiusGenre          Genre             `json:"audiusGenre,omitempty"`
	Copyright            *Copyright        `json:"copyrightLine,omitempty"`
	ProducerCopyright    *Copyright        `json:"producerCopyrightLine,omitempty"`
	ParentalWarning      string            `json:"parentalWarningType,omitempty"`
	LabelName            string            `json:"labelName,omitempty"`
	FilePath             string            `json:"filePath,omitempty"`
	FileName             string            `json:"fileName,omitempty"`
	PreviewFilePath      string            `json:"previewFilePath,omitempty"`
	PreviewFileName      string            `json:"previewFileName,omitempty"`
	PreviewStartSeconds  *int              `json:"previewStartSeconds,omitempty"`
}

// Image is one image resource of a delivery.
type Image struct {
	Ref      string `json:"ref"`
	Type     string `json:"type,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// Release is the canonical form of one DDEX <Release> element.
type Release struct {
	Ref             string           `json:"ref"`
	IDs             ReleaseIDs       `json:"releaseIds"`
	IsMainRelease   bool             `json:"isMainRelease"`
	ReleaseType     string           `json:"releaseType,omitempty"`
	Title           string           `json:"title"`
	Subtitle        string           `json:"subtitle,omitempty"`
	ArtistName      string           `json:"artistName,omitempty"`
	Artists         []Contributor    `json:"artists,omitempty"`
	Contributors    []Contributor    `json:"contributors,omitempty"`
	LabelName       string           `json:"labelName,omitempty"`
	Genre           string           `json:"genre,omitempty"`
	SubGenre        string           `json:"subGenre,omitempty"`
	AudiusGenre     Genre            `json:"audiusGenre,omitempty"`
	ReleaseDate     time.Time        `json:"releaseDate"`
	Copyright       *Copyright       `json:"copyrightLine,omitempty"`
	ProducerCopy    *Copyright       `json:"producerCopyrightLine,omitempty"`
	ParentalWarning string           `json:"parentalWarningType,omitempty"`
	Deals           []Deal           `json:"deals"`
	SoundRecordings []SoundRecording `json:"soundRecordings"`
	Images          []Image          `json:"images"`
	AudiusUser      string           `json:"audiusUser,omitempty"`
	Problems        []Problem        `json:"problems"`
}

// Key returns the stable release key.
func (r *Release) Key() string {
	return r.IDs.Key()
}

// HasProblem reports whether p was recorded on the release.
func (r *Release) HasProblem(p Problem) bool {
	return slices.Contains(r.Problems, p)
}

// AddProblem records p once.
func (r *Release) AddProblem(p Problem) {
	if !r.HasProblem(p) {
		r.Problems = append(r.Problems, p)
	}
}

// IsAlbum reports whether the release publishes as a multi-track collection.
func (r *Release) IsAlbum() bool {
	return len(r.SoundRecordings) > 1
}

// SoundRecordingRefs returns the recording references in order.
func (r *Release) SoundRecordingRefs() []string {
	refs := make([]string, 0, len(r.SoundRecordings))
	for _, sr := range r.SoundRecordings {
		refs = append(refs, sr.Ref)
	}
	return refs
}
