package publisher

import (
	"strings"
	"time"

	"ddexer/internal/config"
	"ddexer/internal/ddex"
	"ddexer/internal/sdk"
)

func trackMetadata(src config.Source, rel *ddex.Release, sr *ddex.SoundRecording) sdk.TrackMetadata {
	md := sdk.TrackMetadata{
		Title:                        firstNonEmpty(sr.Title, rel.Title),
		Genre:                        string(trackGenre(rel, sr)),
		ReleaseDate:                  releaseDate(rel),
		ISRC:                         sr.ISRC,
		DurationSeconds:              sr.DurationSeconds,
		PreviewStartSeconds:          sr.PreviewStartSeconds,
		ParentalWarningType:          firstNonEmpty(sr.ParentalWarning, rel.ParentalWarning),
		Artists:                      contributors(sr.Artists),
		ResourceContributors:         contributors(sr.Contributors),
		IndirectResourceContributors: contributors(sr.IndirectContributors),
		Copyright:                    copyright(sr.Copyright, rel.Copyright),
		ProducerCopyright:            copyright(sr.ProducerCopyright, rel.ProducerCopy),
		LabelName:                    firstNonEmpty(sr.LabelName, rel.LabelName),
		DDEXReleaseIDs:               releaseIDs(rel.IDs),
		DDEXApp:                      src.SDK.APIKey,
		PlacementHosts:               strings.Join(src.PlacementHosts, ","),
		Gating:                       gating(rel.Deals, rel.AudiusUser),
	}
	if len(md.Artists) == 0 {
		md.Artists = contributors(rel.Artists)
	}
	if rc := sr.RightsController; rc != nil {
		md.RightsController = &sdk.RightsController{Name: rc.Name, Roles: rc.Roles, RightsShareUnknown: rc.RightsShareUnknown}
	}
	return md
}

func albumMetadata(src config.Source, rel *ddex.Release) sdk.AlbumMetadata {
	genre := rel.AudiusGenre
	if genre == "" && len(rel.SoundRecordings) > 0 {
		genre = trackGenre(rel, &rel.SoundRecordings[0])
	}
	return sdk.AlbumMetadata{
		Name:              rel.Title,
		Genre:             string(genre),
		ReleaseDate:       releaseDate(rel),
		UPC:               rel.IDs.ICPN,
		ParentalWarning:   rel.ParentalWarning,
		Artists:           contributors(rel.Artists),
		Copyright:         copyright(nil, rel.Copyright),
		ProducerCopyright: copyright(nil, rel.ProducerCopy),
		LabelName:         rel.LabelName,
		DDEXReleaseIDs:    releaseIDs(rel.IDs),
		DDEXApp:           src.SDK.APIKey,
		IsAlbum:           true,
		Gating:            gating(rel.Deals, rel.AudiusUser),
	}
}

// trackGenre falls back from the recording to the release to GenreAll.
func trackGenre(rel *ddex.Release, sr *ddex.SoundRecording) ddex.Genre {
	switch {
	case sr.AudiusGenre != "":
		return sr.AudiusGenre
	case rel.AudiusGenre != "":
		return rel.AudiusGenre
	default:
		return ddex.GenreAll
	}
}

// gating maps retained deals onto stream and download access. Free deals
// win over gated ones for the same use; among gated deals the first one in
// document order applies.
func gating(deals []ddex.Deal, ownerID string) sdk.Gating {
	var (
		g                        sdk.Gating
		freeStream, freeDownload bool
		streamCond, downloadCond *sdk.AccessConditions
	)
	for _, d := range deals {
		if d.Type == ddex.DealFree {
			freeStream = freeStream || d.ForStream
			freeDownload = freeDownload || d.ForDownload
			continue
		}
		cond := accessConditions(d, ownerID)
		if cond == nil {
			continue
		}
		if d.ForStream && streamCond == nil {
			streamCond = cond
		}
		if d.ForDownload && downloadCond == nil {
			downloadCond = cond
		}
	}

	if streamCond != nil && !freeStream {
		g.IsStreamGated = true
		g.StreamConditions = streamCond
	}
	switch {
	case freeDownload:
		g.IsDownloadable = true
	case downloadCond != nil:
		g.IsDownloadable = true
		g.IsDownloadGated = true
		g.DownloadConditions = downloadCond
	}
	return g
}

func accessConditions(d ddex.Deal, ownerID string) *sdk.AccessConditions {
	switch d.Type {
	case ddex.DealPayGated:
		return &sdk.AccessConditions{USDCPurchase: &sdk.USDCPurchase{PriceCents: d.PriceCents()}}
	case ddex.DealFollowGated:
		return &sdk.AccessConditions{FollowUserID: ownerID}
	case ddex.DealTipGated:
		return &sdk.AccessConditions{TipUserID: ownerID}
	case ddex.DealNFTGated:
		if d.NFT == nil {
			return nil
		}
		return &sdk.AccessConditions{NFTCollection: &sdk.NFTCollection{
			Chain:        d.NFT.Chain,
			Address:      d.NFT.Address,
			Standard:     d.NFT.Standard,
			Name:         d.NFT.Name,
			Slug:         d.NFT.Slug,
			ImageURL:     d.NFT.ImageURL,
			ExternalLink: d.NFT.ExternalLink,
		}}
	}
	return nil
}

func releaseDate(rel *ddex.Release) *time.Time {
	if rel.ReleaseDate.IsZero() {
		return nil
	}
	d := rel.ReleaseDate
	return &d
}

func copyright(primary, fallback *ddex.Copyright) *sdk.Copyright {
	c := primary
	if c == nil || c.Text == "" {
		c = fallback
	}
	if c == nil || c.Text == "" {
		return nil
	}
	return &sdk.Copyright{Year: c.Year, Text: c.Text}
}

func contributors(in []ddex.Contributor) []sdk.Contributor {
	if len(in) == 0 {
		return nil
	}
	out := make([]sdk.Contributor, 0, len(in))
	for _, c := range in {
		out = append(out, sdk.Contributor{Name: c.Name, Roles: c.Roles, SequenceNumber: c.SequenceNumber})
	}
	return out
}

func releaseIDs(ids ddex.ReleaseIDs) map[string]string {
	out := make(map[string]string)
	for k, v := range map[string]string{
		"isrc":           ids.ISRC,
		"icpn":           ids.ICPN,
		"grid":           ids.GRid,
		"proprietary_id": ids.ProprietaryID,
		"catalog_number": ids.CatalogNumber,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
