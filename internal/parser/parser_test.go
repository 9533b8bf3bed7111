package parser_test

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"ddexer/internal/ddex"
	"ddexer/internal/parser"
	"ddexer/internal/testsupport"
	"ddexer/internal/users"
)

var (
	deliveredAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	parseNow    = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	directory   = users.Directory{{APIKey: "key", ID: "u1", Handle: "exampleartist", Name: "Example Artist"}}
)

func parse(t *testing.T, xml []byte) *parser.Delivery {
	t.Helper()
	d, err := parser.Parse(parser.Input{
		Source: "sony",
		XMLURL: "s3://bucket/batch1/release.xml",
		XML:    xml,
		Users:  directory,
		Now:    parseNow,
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func onlyRelease(t *testing.T, d *parser.Delivery) *ddex.Release {
	t.Helper()
	if len(d.Releases) != 1 {
		t.Fatalf("expected 1 release, got %d", len(d.Releases))
	}
	return d.Releases[0]
}

func TestParseSingleTrack(t *testing.T) {
	d := parse(t, testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song").XML())

	if d.Kind != parser.KindNewRelease {
		t.Fatalf("kind = %s", d.Kind)
	}
	if !d.MessageTimestamp.Equal(deliveredAt) {
		t.Fatalf("timestamp = %s, want %s", d.MessageTimestamp, deliveredAt)
	}
	r := onlyRelease(t, d)
	if r.Key() != "USABC2400001" || r.Title != "Example Song" {
		t.Fatalf("unexpected release identity: key=%q title=%q", r.Key(), r.Title)
	}
	if len(r.Problems) != 0 {
		t.Fatalf("expected no problems, got %v", r.Problems)
	}
	if r.AudiusUser != "u1" {
		t.Fatalf("expected user u1, got %q", r.AudiusUser)
	}
	if r.AudiusGenre != "Electronic" {
		t.Fatalf("genre = %q", r.AudiusGenre)
	}
	if len(r.SoundRecordings) != 1 || len(r.Images) != 1 {
		t.Fatalf("resources: %d recordings, %d images", len(r.SoundRecordings), len(r.Images))
	}
	sr := r.SoundRecordings[0]
	if sr.DurationSeconds != 205 || sr.FileName != "track1.flac" || sr.FilePath != "resources/" {
		t.Fatalf("unexpected recording: %+v", sr)
	}
	if len(sr.Contributors) != 1 || sr.Contributors[0].Roles[0] != "Producer" {
		t.Fatalf("unexpected contributors: %+v", sr.Contributors)
	}
	if r.Copyright == nil || r.Copyright.Year != "2020" {
		t.Fatalf("expected release C-line, got %+v", r.Copyright)
	}
	if want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC); !r.ReleaseDate.Equal(want) {
		t.Fatalf("release date = %s", r.ReleaseDate)
	}
	if len(r.Deals) != 1 || r.Deals[0].Type != ddex.DealFree || !r.Deals[0].ForStream || r.Deals[0].ForDownload {
		t.Fatalf("unexpected deals: %+v", r.Deals)
	}
}

func TestParseIsPure(t *testing.T) {
	xml := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song").XML()
	first, err := json.Marshal(parse(t, xml).Releases)
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(parse(t, xml).Releases)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("parse not deterministic:\n%s\n%s", first, second)
	}
}

func TestParsePayGatedAndFollowGatedDeals(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Releases[0].Deals = []testsupport.ERNDeal{
		{Model: "PayAsYouGoModel", Price: "4.00", Currency: "USD", UseTypes: []string{"PermanentDownload"}},
		{Model: "FollowGated", UseTypes: []string{"OnDemandStream"}},
	}
	r := onlyRelease(t, parse(t, ern.XML()))

	if len(r.Deals) != 2 {
		t.Fatalf("expected 2 deals, got %+v", r.Deals)
	}
	pay := r.Deals[0]
	if pay.Type != ddex.DealPayGated || pay.PriceUSD == nil || pay.PriceUSD.String() != "4" {
		t.Fatalf("unexpected pay deal: %+v", pay)
	}
	if !pay.ForDownload || pay.ForStream {
		t.Fatalf("unexpected pay deal usage: %+v", pay)
	}
	if r.Deals[1].Type != ddex.DealFollowGated || !r.Deals[1].ForStream {
		t.Fatalf("unexpected follow deal: %+v", r.Deals[1])
	}
}

func TestParseDealFilters(t *testing.T) {
	tests := []struct {
		name string
		deal testsupport.ERNDeal
	}{
		{"territory", testsupport.ERNDeal{Model: "FreeOfChargeModel", Territory: "US"}},
		{"expired", testsupport.ERNDeal{Model: "FreeOfChargeModel", Start: "2020-01-01", End: "2021-01-01"}},
		{"not yet valid", testsupport.ERNDeal{Model: "FreeOfChargeModel", Start: "2030-01-01"}},
		{"unsupported use", testsupport.ERNDeal{Model: "FreeOfChargeModel", UseTypes: []string{"Broadcast"}}},
		{"non usd price", testsupport.ERNDeal{Model: "PayAsYouGoModel", Price: "4.00", Currency: "EUR"}},
		{"missing price", testsupport.ERNDeal{Model: "PayAsYouGoModel"}},
		{"subscription", testsupport.ERNDeal{Model: "SubscriptionModel"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
			ern.Releases[0].Deals = []testsupport.ERNDeal{tt.deal}
			r := onlyRelease(t, parse(t, ern.XML()))
			if len(r.Deals) != 0 {
				t.Fatalf("expected deal to be filtered, got %+v", r.Deals)
			}
			if !r.HasProblem(ddex.ProblemNoDeal) {
				t.Fatalf("expected NoDeal, got %v", r.Problems)
			}
		})
	}
}

func TestParseRetainsDealOnItsEndDay(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Releases[0].Deals = []testsupport.ERNDeal{{Model: "FreeOfChargeModel", Start: "2024-01-01", End: "2024-06-01"}}
	for _, tc := range []struct {
		now  time.Time
		want int
	}{
		{time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), 0},
	} {
		d, err := parser.Parse(parser.Input{Source: "sony", XMLURL: "x", XML: ern.XML(), Users: directory, Now: tc.now})
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got := len(onlyRelease(t, d).Deals); got != tc.want {
			t.Fatalf("at %s: %d deals, want %d", tc.now, got, tc.want)
		}
	}
}

func TestParseNFTGatedChecksumsAddress(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Releases[0].Deals = []testsupport.ERNDeal{{
		Model: "NFTGated",
		Conditions: &testsupport.ERNConditions{
			Chain:   "eth",
			Address: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
			Name:    "Fixture Collection",
		},
	}}
	r := onlyRelease(t, parse(t, ern.XML()))
	if len(r.Deals) != 1 || r.Deals[0].NFT == nil {
		t.Fatalf("expected nft deal, got %+v", r.Deals)
	}
	if got := r.Deals[0].NFT.Address; got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("address not checksummed: %s", got)
	}

	ern.Releases[0].Deals[0].Conditions.Address = "not-an-address"
	r = onlyRelease(t, parse(t, ern.XML()))
	if len(r.Deals) != 0 {
		t.Fatalf("expected invalid address to drop deal, got %+v", r.Deals)
	}
}

func TestParseGenreResolution(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Releases[0].Genre = "Pop"
	ern.Releases[0].SubGenre = "Hip Hop"
	r := onlyRelease(t, parse(t, ern.XML()))
	if r.AudiusGenre != "Hip-Hop/Rap" {
		t.Fatalf("subgenre should win, got %q", r.AudiusGenre)
	}

	ern.Releases[0].Genre = "Polka"
	ern.Releases[0].SubGenre = ""
	ern.Recordings[0].Genre = ""
	r = onlyRelease(t, parse(t, ern.XML()))
	if !r.HasProblem(ddex.ProblemNoGenre) {
		t.Fatalf("expected NoGenre, got %v", r.Problems)
	}
	if r.SoundRecordings[0].AudiusGenre != "" {
		t.Fatalf("recording genre should stay unset, got %q", r.SoundRecordings[0].AudiusGenre)
	}
}

func TestParseRecordingGenreFallsBackToRelease(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Recordings[0].Genre = ""
	ern.Releases[0].Genre = "Rock"
	r := onlyRelease(t, parse(t, ern.XML()))
	if r.SoundRecordings[0].AudiusGenre != "Rock" {
		t.Fatalf("recording genre = %q, want Rock", r.SoundRecordings[0].AudiusGenre)
	}
}

func TestParseUnknownArtistIsNoUser(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Releases[0].Artist = "Somebody Else"
	r := onlyRelease(t, parse(t, ern.XML()))
	if !r.HasProblem(ddex.ProblemNoUser) || r.AudiusUser != "" {
		t.Fatalf("expected NoUser, got user=%q problems=%v", r.AudiusUser, r.Problems)
	}

	d, err := parser.Parse(parser.Input{Source: "sony", XMLURL: "x", XML: ern.XML(), UserID: "fixed", Now: parseNow})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Releases[0].AudiusUser; got != "fixed" {
		t.Fatalf("source fallback user ignored, got %q", got)
	}
}

func TestParseMatchedUserWinsOverSourceFallback(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	d, err := parser.Parse(parser.Input{Source: "sony", XMLURL: "x", XML: ern.XML(), Users: directory, UserID: "fixed", Now: parseNow})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Releases[0].AudiusUser; got != "u1" {
		t.Fatalf("AudiusUser = %q, want matched u1", got)
	}
}

func albumERN() testsupport.ERN {
	return testsupport.ERN{
		MessageTimestamp: deliveredAt,
		Recordings: []testsupport.ERNRecording{
			{Ref: "A1", ISRC: "USABC2400011", Title: "One", Artist: "Example Artist", Genre: "Pop", FileName: "1.flac"},
			{Ref: "A2", ISRC: "USABC2400012", Title: "Two", Artist: "Example Artist", Genre: "Pop", FileName: "2.flac"},
		},
		Images: []testsupport.ERNImage{{Ref: "A3", FileName: "cover.jpg"}},
		Releases: []testsupport.ERNRelease{
			{
				Ref: "R0", ICPN: "0000000000011", Main: true, ReleaseType: "Album", Title: "Example Album",
				Artist: "Example Artist", Genre: "Pop", Resources: []string{"A2", "A1", "A3"},
				Deals: []testsupport.ERNDeal{{Model: "FreeOfChargeModel"}},
			},
			{
				Ref: "R1", ISRC: "USABC2400011", ReleaseType: "TrackRelease", Title: "One",
				Artist: "Example Artist", Genre: "Pop", Resources: []string{"A1"},
				Deals: []testsupport.ERNDeal{{Model: "FreeOfChargeModel"}},
			},
		},
	}
}

func TestParseDuplicateReleaseAndImageLending(t *testing.T) {
	d := parse(t, albumERN().XML())
	if len(d.Releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(d.Releases))
	}
	album, track := d.Releases[0], d.Releases[1]
	if len(album.Problems) != 0 {
		t.Fatalf("album problems: %v", album.Problems)
	}
	if got := album.SoundRecordingRefs(); !slices.Equal(got, []string{"A2", "A1"}) {
		t.Fatalf("album order = %v", got)
	}
	if len(track.Images) != 1 || track.Images[0].Ref != "A3" {
		t.Fatalf("track should borrow main release image, got %+v", track.Images)
	}
	if !track.HasProblem(ddex.ProblemDuplicateRelease) {
		t.Fatalf("expected DuplicateRelease, got %v", track.Problems)
	}
	if track.HasProblem(ddex.ProblemNoImage) {
		t.Fatalf("borrowed image should clear NoImage, got %v", track.Problems)
	}
}

func TestParseDuplicateRequiresProblemFreeMain(t *testing.T) {
	ern := albumERN()
	ern.Releases[0].Deals = nil
	d := parse(t, ern.XML())
	album, track := d.Releases[0], d.Releases[1]
	if !album.HasProblem(ddex.ProblemNoDeal) {
		t.Fatalf("album should lack deals, got %v", album.Problems)
	}
	if track.HasProblem(ddex.ProblemDuplicateRelease) {
		t.Fatalf("track must not be a duplicate of a blocked album, got %v", track.Problems)
	}
}

func TestParseMissingImageIsNoImage(t *testing.T) {
	ern := testsupport.SingleTrackERN(deliveredAt, "USABC2400001", "Example Song")
	ern.Images = nil
	r := onlyRelease(t, parse(t, ern.XML()))
	if !r.HasProblem(ddex.ProblemNoImage) {
		t.Fatalf("expected NoImage, got %v", r.Problems)
	}
	if len(r.SoundRecordings) != 1 {
		t.Fatalf("missing reference should not drop other resources")
	}
}

func TestParsePurge(t *testing.T) {
	d := parse(t, testsupport.PurgeXML(deliveredAt, "", "0000000000011"))
	if d.Kind != parser.KindPurge {
		t.Fatalf("kind = %s", d.Kind)
	}
	if len(d.Releases) != 0 {
		t.Fatalf("purge must not produce releases")
	}
	if len(d.Purges) != 1 || d.Purges[0].Key() != "0000000000011" {
		t.Fatalf("unexpected purges: %+v", d.Purges)
	}
}

func TestParseRejectsUnknownDocuments(t *testing.T) {
	_, err := parser.Parse(parser.Input{XML: []byte(`<?xml version="1.0"?><Catalog/>`)})
	if !errors.Is(err, parser.ErrUnsupportedMessage) {
		t.Fatalf("expected ErrUnsupportedMessage, got %v", err)
	}

	_, err = parser.Parse(parser.Input{XML: []byte(`<NewReleaseMessage><MessageHeader/></NewReleaseMessage>`)})
	if !errors.Is(err, parser.ErrMissingTimestamp) {
		t.Fatalf("expected ErrMissingTimestamp, got %v", err)
	}
}

func TestParseManifest(t *testing.T) {
	d := parse(t, []byte(`<ManifestMessage><MessageHeader><MessageCreatedDateTime>2024-03-01T12:00:00Z</MessageCreatedDateTime></MessageHeader></ManifestMessage>`))
	if d.Kind != parser.KindManifest || len(d.Releases) != 0 || len(d.Purges) != 0 {
		t.Fatalf("unexpected manifest result: %+v", d)
	}
}
