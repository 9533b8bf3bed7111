package parser

import (
	"sort"
	"strconv"

	"github.com/antchfx/xmlquery"

	"ddexer/internal/ddex"
	"ddexer/internal/logging"
)

func (p *releaseParser) parseSoundRecordings(root *xmlquery.Node) map[string]ddex.SoundRecording {
	out := make(map[string]ddex.SoundRecording)
	for _, n := range xmlquery.Find(root, "ResourceList/SoundRecording") {
		ref := text(n.SelectElement("ResourceReference"))
		if ref == "" {
			continue
		}
		details := territoryDetails(n, "SoundRecordingDetailsByTerritory")
		sr := ddex.SoundRecording{
			Ref:      ref,
			ISRC:     text(n.SelectElement("SoundRecordingId/ISRC")),
			Title:    text(n.SelectElement("ReferenceTitle/TitleText")),
			Subtitle: text(n.SelectElement("ReferenceTitle/SubTitle")),
		}
		if d, ok := isoDurationSeconds(text(n.SelectElement("Duration"))); ok {
			sr.DurationSeconds = d
		}
		if details != nil {
			if title := displayTitle(details); title != "" {
				sr.Title = title
			}
			sr.ArtistName = text(details.SelectElement("DisplayArtistName"))
			sr.Artists = contributors(details, "DisplayArtist", "ArtistRole")
			sr.Contributors = contributors(details, "ResourceContributor", "ResourceContributorRole")
			sr.IndirectContributors = contributors(details, "IndirectResourceContributor", "IndirectResourceContributorRole")
			sr.RightsController = rightsController(details)
			sr.LabelName = text(details.SelectElement("LabelName"))
			sr.ParentalWarning = text(details.SelectElement("ParentalWarningType"))
			sr.Copyright = copyrightLine(details, "CLine", "CLineText")
			sr.ProducerCopyright = copyrightLine(details, "PLine", "PLineText")
			sr.Genre, sr.SubGenre = firstGenreTexts(details)
			if g, ok := ddex.FirstGenre(genreCandidates(details)); ok {
				sr.AudiusGenre = g
			}
			for _, tech := range xmlquery.Find(details, "TechnicalSoundRecordingDetails") {
				path := text(tech.SelectElement("File/FilePath"))
				name := text(tech.SelectElement("File/FileName"))
				if isTrue(text(tech.SelectElement("IsPreview"))) {
					sr.PreviewFilePath, sr.PreviewFileName = path, name
					if start, err := strconv.Atoi(text(tech.SelectElement("PreviewDetails/StartPoint"))); err == nil {
						sr.PreviewStartSeconds = &start
					}
					continue
				}
				if sr.FileName == "" {
					sr.FilePath, sr.FileName = path, name
				}
			}
		}
		if sr.ArtistName == "" && len(sr.Artists) > 0 {
			sr.ArtistName = sr.Artists[0].Name
		}
		out[ref] = sr
	}
	return out
}

func (p *releaseParser) parseImages(root *xmlquery.Node) map[string]ddex.Image {
	out := make(map[string]ddex.Image)
	for _, n := range xmlquery.Find(root, "ResourceList/Image") {
		ref := text(n.SelectElement("ResourceReference"))
		if ref == "" {
			continue
		}
		img := ddex.Image{Ref: ref, Type: text(n.SelectElement("ImageType"))}
		if details := territoryDetails(n, "ImageDetailsByTerritory"); details != nil {
			for _, tech := range xmlquery.Find(details, "TechnicalImageDetails") {
				if isTrue(text(tech.SelectElement("IsPreview"))) {
					continue
				}
				img.FilePath = text(tech.SelectElement("File/FilePath"))
				img.FileName = text(tech.SelectElement("File/FileName"))
				break
			}
		}
		if img.FileName == "" {
			p.logger.Debug("image has no file", logging.String("resource_ref", ref))
		}
		out[ref] = img
	}
	return out
}

// territoryDetails returns the Worldwide details block, falling back to the
// first one present.
func territoryDetails(n *xmlquery.Node, name string) *xmlquery.Node {
	blocks := n.SelectElements(name)
	for _, b := range blocks {
		if hasWorldwideTerritory(b) {
			return b
		}
	}
	if len(blocks) > 0 {
		return blocks[0]
	}
	return nil
}

func displayTitle(details *xmlquery.Node) string {
	if t := text(details.SelectElement("Title[@TitleType='DisplayTitle']/TitleText")); t != "" {
		return t
	}
	return text(details.SelectElement("Title/TitleText"))
}

func contributors(details *xmlquery.Node, element, roleElement string) []ddex.Contributor {
	var out []ddex.Contributor
	for _, n := range details.SelectElements(element) {
		c := ddex.Contributor{Name: text(n.SelectElement("PartyName/FullName"))}
		if c.Name == "" {
			continue
		}
		if seq, err := strconv.Atoi(n.SelectAttr("SequenceNumber")); err == nil {
			c.SequenceNumber = seq
		}
		for _, role := range n.SelectElements(roleElement) {
			if r := userDefined(role); r != "" {
				c.Roles = append(c.Roles, r)
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

func rightsController(details *xmlquery.Node) *ddex.RightsController {
	n := details.SelectElement("RightsController")
	if n == nil {
		return nil
	}
	rc := &ddex.RightsController{
		Name:               text(n.SelectElement("PartyName/FullName")),
		RightsShareUnknown: text(n.SelectElement("RightsShareUnknown")),
	}
	for _, role := range n.SelectElements("RightsControllerRole") {
		if r := text(role); r != "" {
			rc.Roles = append(rc.Roles, r)
		}
	}
	return rc
}

func copyrightLine(n *xmlquery.Node, element, textElement string) *ddex.Copyright {
	if n == nil {
		return nil
	}
	year := text(n.SelectElement(element + "/Year"))
	body := text(n.SelectElement(element + "/" + textElement))
	if year == "" || body == "" {
		return nil
	}
	return &ddex.Copyright{Year: year, Text: body}
}

// genreCandidates lists every SubGenre before every GenreText.
func genreCandidates(details *xmlquery.Node) []string {
	var subs, genres []string
	for _, g := range details.SelectElements("Genre") {
		if s := text(g.SelectElement("SubGenre")); s != "" {
			subs = append(subs, s)
		}
		if s := text(g.SelectElement("GenreText")); s != "" {
			genres = append(genres, s)
		}
	}
	return append(subs, genres...)
}

func firstGenreTexts(details *xmlquery.Node) (genre, subGenre string) {
	g := details.SelectElement("Genre")
	if g == nil {
		return "", ""
	}
	return text(g.SelectElement("GenreText")), text(g.SelectElement("SubGenre"))
}

type contentItem struct {
	group int
	item  int
	ref   string
}

// resourceOrder flattens nested ResourceGroups into a reference list
// ordered by group then item sequence number.
func resourceOrder(details *xmlquery.Node) []string {
	var items []contentItem
	var walk func(n *xmlquery.Node, parentSeq int)
	walk = func(n *xmlquery.Node, parentSeq int) {
		seq := atoi(text(n.SelectElement("SequenceNumber")))
		if seq == 0 {
			seq = parentSeq
		}
		for _, ci := range n.SelectElements("ResourceGroupContentItem") {
			items = append(items, contentItem{
				group: seq,
				item:  atoi(text(ci.SelectElement("SequenceNumber"))),
				ref:   text(ci.SelectElement("ReleaseResourceReference")),
			})
		}
		for _, child := range n.SelectElements("ResourceGroup") {
			walk(child, seq)
		}
	}
	for _, rg := range details.SelectElements("ResourceGroup") {
		walk(rg, 0)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].group != items[j].group {
			return items[i].group < items[j].group
		}
		return items[i].item < items[j].item
	})

	refs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ref == "" {
			continue
		}
		if _, dup := seen[it.ref]; dup {
			continue
		}
		seen[it.ref] = struct{}{}
		refs = append(refs, it.ref)
	}
	return refs
}
