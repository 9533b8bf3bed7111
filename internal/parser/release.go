package parser

import (
	"log/slog"
	"time"

	"github.com/antchfx/xmlquery"

	"ddexer/internal/ddex"
	"ddexer/internal/logging"
)

type releaseParser struct {
	in     Input
	logger *slog.Logger
	now    time.Time
}

func (p *releaseParser) parse(root *xmlquery.Node) []*ddex.Release {
	deals := p.parseDeals(root)
	recordings := p.parseSoundRecordings(root)
	images := p.parseImages(root)

	var releases []*ddex.Release
	for _, n := range xmlquery.Find(root, "ReleaseList/Release") {
		r := p.parseRelease(n, recordings, images)
		if r.Key() == "" {
			logging.WarnWithContext(p.logger, "release skipped: no ISRC, ICPN or GRid", "release_without_key",
				logging.String(logging.FieldReleaseRef, r.Ref),
				logging.String(logging.FieldImpact, "release not stored"),
			)
			continue
		}
		r.Deals = deals[r.Ref]
		if r.Deals == nil {
			r.Deals = []ddex.Deal{}
		}
		releases = append(releases, r)
	}

	applyMainRelease(releases)
	for _, r := range releases {
		p.assignProblems(r)
	}
	markDuplicates(releases)
	return releases
}

func (p *releaseParser) parseRelease(n *xmlquery.Node, recordings map[string]ddex.SoundRecording, images map[string]ddex.Image) *ddex.Release {
	r := &ddex.Release{
		Ref:             text(n.SelectElement("ReleaseReference")),
		IDs:             releaseIDs(n.SelectElement("ReleaseId")),
		IsMainRelease:   n.SelectAttr("IsMainRelease") == "true",
		ReleaseType:     userDefined(n.SelectElement("ReleaseType")),
		Title:           text(n.SelectElement("ReferenceTitle/TitleText")),
		Subtitle:        text(n.SelectElement("ReferenceTitle/SubTitle")),
		SoundRecordings: []ddex.SoundRecording{},
		Images:          []ddex.Image{},
		Problems:        []ddex.Problem{},
	}
	logger := p.logger.With(
		logging.String(logging.FieldReleaseRef, r.Ref),
		logging.Release(r.Key()),
	)

	details := territoryDetails(n, "ReleaseDetailsByTerritory")
	r.Copyright = copyrightLine(details, "CLine", "CLineText")
	if r.Copyright == nil {
		r.Copyright = copyrightLine(n, "CLine", "CLineText")
	}
	r.ProducerCopy = copyrightLine(details, "PLine", "PLineText")
	if r.ProducerCopy == nil {
		r.ProducerCopy = copyrightLine(n, "PLine", "PLineText")
	}

	releaseDate := text(n.SelectElement("GlobalOriginalReleaseDate"))
	var order []string
	if details != nil {
		if title := displayTitle(details); title != "" {
			r.Title = title
		}
		if sub := text(details.SelectElement("Title[@TitleType='DisplayTitle']/SubTitle")); sub != "" {
			r.Subtitle = sub
		}
		r.ArtistName = text(details.SelectElement("DisplayArtistName"))
		r.Artists = contributors(details, "DisplayArtist", "ArtistRole")
		r.LabelName = text(details.SelectElement("LabelName"))
		r.ParentalWarning = text(details.SelectElement("ParentalWarningType"))
		r.Genre, r.SubGenre = firstGenreTexts(details)
		candidates := genreCandidates(details)
		if g, ok := ddex.FirstGenre(candidates); ok {
			r.AudiusGenre = g
		} else if len(candidates) > 0 {
			logging.WarnWithContext(logger, "no platform genre matched", "genre_unresolved",
				logging.Any("candidates", candidates),
				logging.String(logging.FieldImpact, "release blocked with NoGenre"),
			)
		}
		if d := text(details.SelectElement("ReleaseDate")); d != "" {
			releaseDate = d
		} else if d := text(details.SelectElement("OriginalReleaseDate")); d != "" && releaseDate == "" {
			releaseDate = d
		}
		order = resourceOrder(details)
	}
	if r.ArtistName == "" && len(r.Artists) > 0 {
		r.ArtistName = r.Artists[0].Name
	}
	if releaseDate != "" {
		if t, err := time.Parse(dateLayout, releaseDate); err == nil {
			r.ReleaseDate = t
		} else {
			logger.Warn("unparseable release date", logging.String("value", releaseDate), logging.Error(err))
		}
	}

	if len(order) == 0 {
		for _, ref := range n.SelectElements("ReleaseResourceReferenceList/ReleaseResourceReference") {
			if v := text(ref); v != "" {
				order = append(order, v)
			}
		}
	}
	for _, ref := range order {
		if sr, ok := recordings[ref]; ok {
			if sr.AudiusGenre == "" {
				sr.AudiusGenre = r.AudiusGenre
			}
			r.SoundRecordings = append(r.SoundRecordings, sr)
			continue
		}
		if img, ok := images[ref]; ok {
			r.Images = append(r.Images, img)
			continue
		}
		logger.Info("resource reference not in delivery",
			logging.String("resource_ref", ref),
			logging.String(logging.FieldEventType, "resource_missing"),
		)
	}

	r.AudiusUser = p.resolveUser(r)
	return r
}

func (p *releaseParser) resolveUser(r *ddex.Release) string {
	names := make([]string, 0, len(r.Artists)+1)
	for _, a := range r.Artists {
		names = append(names, a.Name)
	}
	names = append(names, r.ArtistName)
	if entry, ok := p.in.Users.Match(names...); ok {
		return entry.ID
	}
	return p.in.UserID
}

func (p *releaseParser) assignProblems(r *ddex.Release) {
	if r.AudiusGenre == "" {
		r.AddProblem(ddex.ProblemNoGenre)
	}
	if r.AudiusUser == "" {
		r.AddProblem(ddex.ProblemNoUser)
	}
	if len(r.Deals) == 0 {
		r.AddProblem(ddex.ProblemNoDeal)
	}
	if len(r.Images) == 0 {
		r.AddProblem(ddex.ProblemNoImage)
	}
}

// applyMainRelease lends the main release's images to releases without
// their own.
func applyMainRelease(releases []*ddex.Release) {
	main := findMain(releases)
	if main == nil || len(main.Images) == 0 {
		return
	}
	for _, r := range releases {
		if r != main && len(r.Images) == 0 {
			r.Images = append([]ddex.Image(nil), main.Images...)
		}
	}
}

// markDuplicates flags releases whose recordings all belong to a
// problem-free main release.
func markDuplicates(releases []*ddex.Release) {
	main := findMain(releases)
	if main == nil || len(main.Problems) > 0 {
		return
	}
	mainRefs := make(map[string]struct{}, len(main.SoundRecordings))
	for _, ref := range main.SoundRecordingRefs() {
		mainRefs[ref] = struct{}{}
	}
	for _, r := range releases {
		if r == main || len(r.SoundRecordings) == 0 {
			continue
		}
		subset := true
		for _, ref := range r.SoundRecordingRefs() {
			if _, ok := mainRefs[ref]; !ok {
				subset = false
				break
			}
		}
		if subset {
			r.AddProblem(ddex.ProblemDuplicateRelease)
		}
	}
}

func findMain(releases []*ddex.Release) *ddex.Release {
	for _, r := range releases {
		if r.IsMainRelease {
			return r
		}
	}
	return nil
}
