package parser

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"ddexer/internal/ddex"
	"ddexer/internal/logging"
	"ddexer/internal/users"
)

// Kind identifies an ERN message by its root element.
type Kind string

const (
	KindNewRelease Kind = "NewReleaseMessage"
	KindPurge      Kind = "PurgeReleaseMessage"
	KindManifest   Kind = "ManifestMessage"
)

var (
	// ErrUnsupportedMessage is returned for documents whose root element is
	// not a known ERN message.
	ErrUnsupportedMessage = errors.New("unsupported ddex message")
	// ErrMissingTimestamp is returned when MessageCreatedDateTime is absent
	// or unparseable.
	ErrMissingTimestamp = errors.New("missing message timestamp")
)

// Input is everything Parse needs; Parse performs no I/O of its own.
type Input struct {
	Source string
	XMLURL string
	XML    []byte
	// Users are the accounts registered for Source.
	Users users.Directory
	// UserID, when set, owns releases whose artists match no user.
	UserID string
	// Now anchors deal validity windows.
	Now    time.Time
	Logger *slog.Logger
}

// Delivery is the parsed content of one document.
type Delivery struct {
	Kind             Kind
	MessageTimestamp time.Time
	Releases         []*ddex.Release
	Purges           []ddex.ReleaseIDs
}

// Parse decodes one ERN document. Problems that block publishing are
// recorded on the releases; only malformed documents return an error.
func Parse(in Input) (*Delivery, error) {
	logger := in.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(
		logging.Source(in.Source),
		logging.XMLURL(in.XMLURL),
	)

	doc, err := xmlquery.Parse(bytes.NewReader(in.XML))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	root := rootElement(doc)
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrUnsupportedMessage)
	}

	kind := Kind(root.Data)
	switch kind {
	case KindNewRelease, KindPurge, KindManifest:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMessage, root.Data)
	}

	ts, err := messageTimestamp(root)
	if err != nil {
		return nil, err
	}

	delivery := &Delivery{Kind: kind, MessageTimestamp: ts}
	switch kind {
	case KindPurge:
		delivery.Purges = parsePurges(root)
		if len(delivery.Purges) == 0 {
			logger.Warn("purge message carries no release ids",
				logging.String(logging.FieldEventType, "purge_without_ids"),
				logging.String(logging.FieldImpact, "nothing will be taken down"),
			)
		}
	case KindNewRelease:
		p := &releaseParser{in: in, logger: logger, now: in.Now}
		if p.now.IsZero() {
			p.now = ts
		}
		delivery.Releases = p.parse(root)
	}
	return delivery, nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

func messageTimestamp(root *xmlquery.Node) (time.Time, error) {
	raw := text(root.SelectElement("MessageHeader/MessageCreatedDateTime"))
	if raw == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMissingTimestamp, raw)
}

func parsePurges(root *xmlquery.Node) []ddex.ReleaseIDs {
	nodes := xmlquery.Find(root, ".//PurgedRelease/ReleaseId")
	if len(nodes) == 0 {
		nodes = xmlquery.Find(root, ".//ReleaseId")
	}
	var out []ddex.ReleaseIDs
	for _, n := range nodes {
		ids := releaseIDs(n)
		if ids.Key() != "" {
			out = append(out, ids)
		}
	}
	return out
}

func releaseIDs(n *xmlquery.Node) ddex.ReleaseIDs {
	if n == nil {
		return ddex.ReleaseIDs{}
	}
	return ddex.ReleaseIDs{
		ISRC:          text(n.SelectElement("ISRC")),
		ICPN:          text(n.SelectElement("ICPN")),
		GRid:          text(n.SelectElement("GRid")),
		ProprietaryID: text(n.SelectElement("ProprietaryId")),
		CatalogNumber: text(n.SelectElement("CatalogNumber")),
	}
}

func text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}
