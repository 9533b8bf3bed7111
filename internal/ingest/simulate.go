package ingest

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"ddexer/internal/config"
	"ddexer/internal/fileutil"
	"ddexer/internal/logging"
)

// Simulation describes a generated delivery.
type Simulation struct {
	XMLURL string
	ISRC   string
	Result *Result
}

// Simulate writes a one-track delivery credited to artist below the data
// directory and ingests it for src. Asset files are not generated, so the
// release publishes only after resources/ is filled in next to the XML.
func (i *Ingester) Simulate(ctx context.Context, src config.Source, artist string) (*Simulation, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil, errors.New("simulate: artist name is required")
	}

	id := uuid.New()
	isrc := "ZZSIM" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:7])
	now := i.now().UTC()

	var buf bytes.Buffer
	if err := simulatedTemplate.Execute(&buf, map[string]any{
		"Timestamp": now.Format(time.RFC3339),
		"Date":      now.Format("2006-01-02"),
		"ISRC":      isrc,
		"Artist":    artist,
		"Title":     "Simulated Delivery " + now.Format("2006-01-02 15:04"),
	}); err != nil {
		return nil, fmt.Errorf("render simulated delivery: %w", err)
	}

	xmlURL := filepath.Join(i.cfg.Paths.DataDir, "simulated", id.String(), id.String()+".xml")
	if err := fileutil.WriteAtomic(xmlURL, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write simulated delivery: %w", err)
	}

	result, err := i.IngestDocument(ctx, src, xmlURL, buf.Bytes())
	if err != nil {
		return nil, err
	}
	i.logger.Info("simulated delivery ingested",
		logging.Source(src.Name),
		logging.XMLURL(xmlURL),
		logging.Release(isrc),
		logging.String("artist", artist),
	)
	return &Simulation{XMLURL: xmlURL, ISRC: isrc, Result: result}, nil
}

var simulatedTemplate = template.Must(template.New("simulated").Funcs(template.FuncMap{
	"x": func(s string) string {
		var b strings.Builder
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	},
}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<ern:NewReleaseMessage xmlns:ern="http://ddex.net/xml/ern/382" MessageSchemaVersionId="ern/382">
  <MessageHeader>
    <MessageThreadId>simulated</MessageThreadId>
    <MessageId>{{x .ISRC}}</MessageId>
    <MessageCreatedDateTime>{{.Timestamp}}</MessageCreatedDateTime>
  </MessageHeader>
  <ResourceList>
    <SoundRecording>
      <SoundRecordingType>MusicalWorkSoundRecording</SoundRecordingType>
      <SoundRecordingId><ISRC>{{x .ISRC}}</ISRC></SoundRecordingId>
      <ResourceReference>A1</ResourceReference>
      <ReferenceTitle><TitleText>{{x .Title}}</TitleText></ReferenceTitle>
      <Duration>PT3M0S</Duration>
      <SoundRecordingDetailsByTerritory>
        <TerritoryCode>Worldwide</TerritoryCode>
        <Title TitleType="DisplayTitle"><TitleText>{{x .Title}}</TitleText></Title>
        <DisplayArtistName>{{x .Artist}}</DisplayArtistName>
        <DisplayArtist SequenceNumber="1">
          <PartyName><FullName>{{x .Artist}}</FullName></PartyName>
          <ArtistRole>MainArtist</ArtistRole>
        </DisplayArtist>
        <Genre><GenreText>Electronic</GenreText></Genre>
        <TechnicalSoundRecordingDetails>
          <TechnicalResourceDetailsReference>T1</TechnicalResourceDetailsReference>
          <IsPreview>false</IsPreview>
          <File><FileName>track.flac</FileName><FilePath>resources/</FilePath></File>
        </TechnicalSoundRecordingDetails>
      </SoundRecordingDetailsByTerritory>
    </SoundRecording>
    <Image>
      <ImageType>FrontCoverImage</ImageType>
      <ResourceReference>A2</ResourceReference>
      <ImageDetailsByTerritory>
        <TerritoryCode>Worldwide</TerritoryCode>
        <TechnicalImageDetails>
          <File><FileName>cover.jpg</FileName><FilePath>resources/</FilePath></File>
        </TechnicalImageDetails>
      </ImageDetailsByTerritory>
    </Image>
  </ResourceList>
  <ReleaseList>
    <Release IsMainRelease="true">
      <ReleaseId><ISRC>{{x .ISRC}}</ISRC></ReleaseId>
      <ReleaseReference>R0</ReleaseReference>
      <ReferenceTitle><TitleText>{{x .Title}}</TitleText></ReferenceTitle>
      <ReleaseResourceReferenceList>
        <ReleaseResourceReference>A1</ReleaseResourceReference>
        <ReleaseResourceReference>A2</ReleaseResourceReference>
      </ReleaseResourceReferenceList>
      <ReleaseType>Single</ReleaseType>
      <ReleaseDetailsByTerritory>
        <TerritoryCode>Worldwide</TerritoryCode>
        <DisplayArtistName>{{x .Artist}}</DisplayArtistName>
        <Title TitleType="DisplayTitle"><TitleText>{{x .Title}}</TitleText></Title>
        <DisplayArtist SequenceNumber="1">
          <PartyName><FullName>{{x .Artist}}</FullName></PartyName>
          <ArtistRole>MainArtist</ArtistRole>
        </DisplayArtist>
        <ResourceGroup>
          <SequenceNumber>1</SequenceNumber>
          <ResourceGroupContentItem>
            <SequenceNumber>1</SequenceNumber>
            <ReleaseResourceReference>A1</ReleaseResourceReference>
          </ResourceGroupContentItem>
        </ResourceGroup>
        <Genre><GenreText>Electronic</GenreText></Genre>
        <ReleaseDate>{{.Date}}</ReleaseDate>
      </ReleaseDetailsByTerritory>
    </Release>
  </ReleaseList>
  <DealList>
    <ReleaseDeal>
      <DealReleaseReference>R0</DealReleaseReference>
      <Deal>
        <DealTerms>
          <CommercialModelType>FreeOfChargeModel</CommercialModelType>
          <Usage><UseType>OnDemandStream</UseType></Usage>
          <TerritoryCode>Worldwide</TerritoryCode>
          <ValidityPeriod><StartDate>{{.Date}}</StartDate></ValidityPeriod>
        </DealTerms>
      </Deal>
    </ReleaseDeal>
  </DealList>
</ern:NewReleaseMessage>
`))
