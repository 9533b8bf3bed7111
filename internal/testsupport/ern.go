package testsupport

import (
	"bytes"
	"encoding/xml"
	"strings"
	"text/template"
	"time"
)

// ERN describes a NewReleaseMessage fixture.
type ERN struct {
	MessageTimestamp time.Time
	Recordings       []ERNRecording
	Images           []ERNImage
	Releases         []ERNRelease
}

// ERNRecording is a SoundRecording resource.
type ERNRecording struct {
	Ref      string
	ISRC     string
	Title    string
	Artist   string
	Genre    string
	Duration string
	FilePath string
	FileName string
}

// ERNImage is an Image resource.
type ERNImage struct {
	Ref      string
	FilePath string
	FileName string
}

// ERNRelease is a Release element with its deals.
type ERNRelease struct {
	Ref         string
	ISRC        string
	ICPN        string
	GRid        string
	Main        bool
	ReleaseType string
	Title       string
	Artist      string
	Genre       string
	SubGenre    string
	ReleaseDate string
	Resources   []string
	Deals       []ERNDeal
}

// ERNDeal is one DealTerms block. Empty fields take streaming, worldwide,
// open-ended defaults.
type ERNDeal struct {
	Model      string
	Price      string
	Currency   string
	UseTypes   []string
	Territory  string
	Start      string
	End        string
	Conditions *ERNConditions
}

// ERNConditions parameterizes an NFTGated deal.
type ERNConditions struct {
	Chain   string
	Address string
	Name    string
}

// SingleTrackERN returns a publishable one-track delivery.
func SingleTrackERN(ts time.Time, isrc, title string) ERN {
	return ERN{
		MessageTimestamp: ts,
		Recordings: []ERNRecording{{
			Ref: "A1", ISRC: isrc, Title: title, Artist: "Example Artist", Genre: "Electronic",
			Duration: "PT3M25S", FilePath: "resources/", FileName: "track1.flac",
		}},
		Images: []ERNImage{{Ref: "A2", FilePath: "resources/", FileName: "cover.jpg"}},
		Releases: []ERNRelease{{
			Ref: "R0", ISRC: isrc, Main: true, ReleaseType: "Single", Title: title,
			Artist: "Example Artist", Genre: "Electronic", ReleaseDate: "2020-01-01",
			Resources: []string{"A1", "A2"},
			Deals:     []ERNDeal{{Model: "FreeOfChargeModel"}},
		}},
	}
}

// XML renders the fixture.
func (e ERN) XML() []byte {
	var buf bytes.Buffer
	if err := ernTemplate.Execute(&buf, e); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PurgeXML renders a PurgeReleaseMessage for one release identifier.
func PurgeXML(ts time.Time, isrc, icpn string) []byte {
	var buf bytes.Buffer
	if err := purgeTemplate.Execute(&buf, map[string]any{
		"MessageTimestamp": ts, "ISRC": isrc, "ICPN": icpn,
	}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var templateFuncs = template.FuncMap{
	"x": func(s string) string {
		var b strings.Builder
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	},
	"ts": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"add1": func(i int) int { return i + 1 },
	"def": func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	},
	"uses": func(u []string) []string {
		if len(u) == 0 {
			return []string{"OnDemandStream"}
		}
		return u
	},
}

var ernTemplate = template.Must(template.New("ern").Funcs(templateFuncs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<ern:NewReleaseMessage xmlns:ern="http://ddex.net/xml/ern/382" MessageSchemaVersionId="ern/382">
  <MessageHeader>
    <MessageThreadId>fixture</MessageThreadId>
    <MessageId>fixture</MessageId>
    <MessageCreatedDateTime>{{ts .MessageTimestamp}}</MessageCreatedDateTime>
  </MessageHeader>
  <ResourceList>
{{- range .Recordings}}
    <SoundRecording>
      <SoundRecordingType>MusicalWorkSoundRecording</SoundRecordingType>
      <SoundRecordingId><ISRC>{{x .ISRC}}</ISRC></SoundRecordingId>
      <ResourceReference>{{x .Ref}}</ResourceReference>
      <ReferenceTitle><TitleText>{{x .Title}}</TitleText></ReferenceTitle>
      <Duration>{{def .Duration "PT3M0S"}}</Duration>
      <SoundRecordingDetailsByTerritory>
        <TerritoryCode>Worldwide</TerritoryCode>
        <Title TitleType="DisplayTitle"><TitleText>{{x .Title}}</TitleText></Title>
        <DisplayArtistName>{{x .Artist}}</DisplayArtistName>
        <DisplayArtist SequenceNumber="1">
          <PartyName><FullName>{{x .Artist}}</FullName></PartyName>
          <ArtistRole>MainArtist</ArtistRole>
        </DisplayArtist>
        <ResourceContributor SequenceNumber="1">
          <PartyName><FullName>Fixture Producer</FullName></PartyName>
          <ResourceContributorRole>Producer</ResourceContributorRole>
        </ResourceContributor>
        <LabelName>Fixture Records</LabelName>
        <PLine><Year>2020</Year><PLineText>(P) 2020 Fixture Records</PLineText></PLine>
        {{- if .Genre}}
        <Genre><GenreText>{{x .Genre}}</GenreText></Genre>
        {{- end}}
        <ParentalWarningType>NotExplicit</ParentalWarningType>
        <TechnicalSoundRecordingDetails>
          <TechnicalResourceDetailsReference>T{{x .Ref}}</TechnicalResourceDetailsReference>
          <AudioCodecType>FLAC</AudioCodecType>
          <IsPreview>false</IsPreview>
          <File><FileName>{{x .FileName}}</FileName><FilePath>{{x .FilePath}}</FilePath></File>
        </TechnicalSoundRecordingDetails>
      </SoundRecordingDetailsByTerritory>
    </SoundRecording>
{{- end}}
{{- range .Images}}
    <Image>
      <ImageType>FrontCoverImage</ImageType>
      <ResourceReference>{{x .Ref}}</ResourceReference>
      <ImageDetailsByTerritory>
        <TerritoryCode>Worldwide</TerritoryCode>
        <TechnicalImageDetails>
          <ImageCodecType>JPEG</ImageCodecType>
          <File><FileName>{{x .FileName}}</FileName><FilePath>{{x .FilePath}}</FilePath></File>
        </TechnicalImageDetails>
      </ImageDetailsByTerritory>
    </Image>
{{- end}}
  </ResourceList>
  <ReleaseList>
{{- range .Releases}}
    <Release{{if .Main}} IsMainRelease="true"{{end}}>
      <ReleaseId>
        {{- if .ISRC}}<ISRC>{{x .ISRC}}</ISRC>{{end}}
        {{- if .ICPN}}<ICPN>{{x .ICPN}}</ICPN>{{end}}
        {{- if .GRid}}<GRid>{{x .GRid}}</GRid>{{end}}
      </ReleaseId>
      <ReleaseReference>{{x .Ref}}</ReleaseReference>
      <ReferenceTitle><TitleText>{{x .Title}}</TitleText></ReferenceTitle>
      <ReleaseResourceReferenceList>
        {{- range .Resources}}
        <ReleaseResourceReference>{{x .}}</ReleaseResourceReference>
        {{- end}}
      </ReleaseResourceReferenceList>
      <ReleaseType>{{def .ReleaseType "Single"}}</ReleaseType>
      <ReleaseDetailsByTerritory>
        <TerritoryCode>Worldwide</TerritoryCode>
        <DisplayArtistName>{{x .Artist}}</DisplayArtistName>
        <LabelName>Fixture Records</LabelName>
        <Title TitleType="DisplayTitle"><TitleText>{{x .Title}}</TitleText></Title>
        <DisplayArtist SequenceNumber="1">
          <PartyName><FullName>{{x .Artist}}</FullName></PartyName>
          <ArtistRole>MainArtist</ArtistRole>
        </DisplayArtist>
        <ParentalWarningType>NotExplicit</ParentalWarningType>
        <ResourceGroup>
          <SequenceNumber>1</SequenceNumber>
          {{- range $i, $ref := .Resources}}
          <ResourceGroupContentItem>
            <SequenceNumber>{{add1 $i}}</SequenceNumber>
            <ReleaseResourceReference>{{x $ref}}</ReleaseResourceReference>
          </ResourceGroupContentItem>
          {{- end}}
        </ResourceGroup>
        {{- if or .Genre .SubGenre}}
        <Genre>{{if .Genre}}<GenreText>{{x .Genre}}</GenreText>{{end}}{{if .SubGenre}}<SubGenre>{{x .SubGenre}}</SubGenre>{{end}}</Genre>
        {{- end}}
        {{- if .ReleaseDate}}
        <ReleaseDate>{{.ReleaseDate}}</ReleaseDate>
        {{- end}}
      </ReleaseDetailsByTerritory>
      <PLine><Year>2020</Year><PLineText>(P) 2020 Fixture Records</PLineText></PLine>
      <CLine><Year>2020</Year><CLineText>(C) 2020 Fixture Records</CLineText></CLine>
    </Release>
{{- end}}
  </ReleaseList>
  <DealList>
{{- range .Releases}}
{{- if .Deals}}
    <ReleaseDeal>
      <DealReleaseReference>{{x .Ref}}</DealReleaseReference>
      {{- range .Deals}}
      <Deal>
        <DealTerms>
          <CommercialModelType>{{x .Model}}</CommercialModelType>
          <Usage>
            {{- range uses .UseTypes}}
            <UseType>{{x .}}</UseType>
            {{- end}}
          </Usage>
          <TerritoryCode>{{def .Territory "Worldwide"}}</TerritoryCode>
          {{- if .Price}}
          <PriceInformation>
            <WholesalePricePerUnit CurrencyCode="{{def .Currency "USD"}}">{{x .Price}}</WholesalePricePerUnit>
          </PriceInformation>
          {{- end}}
          {{- with .Conditions}}
          <Conditions>
            <Chain>{{x .Chain}}</Chain>
            <Address>{{x .Address}}</Address>
            <Name>{{x .Name}}</Name>
          </Conditions>
          {{- end}}
          <ValidityPeriod>
            <StartDate>{{def .Start "2000-01-01"}}</StartDate>
            {{- if .End}}
            <EndDate>{{.End}}</EndDate>
            {{- end}}
          </ValidityPeriod>
        </DealTerms>
      </Deal>
      {{- end}}
    </ReleaseDeal>
{{- end}}
{{- end}}
  </DealList>
</ern:NewReleaseMessage>
`))

var purgeTemplate = template.Must(template.New("purge").Funcs(templateFuncs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<ern:PurgeReleaseMessage xmlns:ern="http://ddex.net/xml/ern/382" MessageSchemaVersionId="ern/382">
  <MessageHeader>
    <MessageThreadId>fixture</MessageThreadId>
    <MessageId>fixture</MessageId>
    <MessageCreatedDateTime>{{ts .MessageTimestamp}}</MessageCreatedDateTime>
  </MessageHeader>
  <PurgedRelease>
    <ReleaseId>{{if .ISRC}}<ISRC>{{x .ISRC}}</ISRC>{{end}}{{if .ICPN}}<ICPN>{{x .ICPN}}</ICPN>{{end}}</ReleaseId>
  </PurgedRelease>
</ern:PurgeReleaseMessage>
`))
