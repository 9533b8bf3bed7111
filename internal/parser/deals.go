package parser

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"ddexer/internal/ddex"
	"ddexer/internal/logging"
)

const (
	territoryWorldwide = "Worldwide"
	dateLayout         = "2006-01-02"
)

// parseDeals maps release references to the deals that survive the
// territory and validity filters.
func (p *releaseParser) parseDeals(root *xmlquery.Node) map[string][]ddex.Deal {
	out := make(map[string][]ddex.Deal)
	for _, releaseDeal := range xmlquery.Find(root, "DealList/ReleaseDeal") {
		var refs []string
		for _, refNode := range releaseDeal.SelectElements("DealReleaseReference") {
			if ref := text(refNode); ref != "" {
				refs = append(refs, ref)
			}
		}
		if len(refs) == 0 {
			continue
		}
		for _, terms := range xmlquery.Find(releaseDeal, "Deal/DealTerms") {
			deal, ok := p.parseDealTerms(terms, refs)
			if !ok {
				continue
			}
			for _, ref := range refs {
				out[ref] = append(out[ref], deal)
			}
		}
	}
	return out
}

func (p *releaseParser) parseDealTerms(terms *xmlquery.Node, refs []string) (ddex.Deal, bool) {
	logger := p.logger.With(logging.String(logging.FieldReleaseRef, strings.Join(refs, ",")))

	if !hasWorldwideTerritory(terms) {
		logger.Debug("deal skipped: not worldwide", logging.String(logging.FieldEventType, "deal_territory_filtered"))
		return ddex.Deal{}, false
	}

	var deal ddex.Deal
	for _, use := range useTypes(terms) {
		switch use {
		case "Stream", "OnDemandStream":
			deal.ForStream = true
		case "PermanentDownload":
			deal.ForDownload = true
		}
	}
	if !deal.ForStream && !deal.ForDownload {
		logger.Debug("deal skipped: no supported use type", logging.String(logging.FieldEventType, "deal_usage_filtered"))
		return ddex.Deal{}, false
	}

	var err error
	if deal.ValidFrom, err = optionalDate(terms, "ValidityPeriod/StartDate"); err != nil {
		logging.WarnWithContext(logger, "deal skipped: bad validity start", "deal_invalid",
			logging.Error(err),
			logging.String(logging.FieldImpact, "deal ignored"),
		)
		return ddex.Deal{}, false
	}
	if deal.ValidUntil, err = optionalDate(terms, "ValidityPeriod/EndDate"); err != nil {
		logging.WarnWithContext(logger, "deal skipped: bad validity end", "deal_invalid",
			logging.Error(err),
			logging.String(logging.FieldImpact, "deal ignored"),
		)
		return ddex.Deal{}, false
	}
	if !deal.ActiveAt(p.now) {
		logger.Debug("deal skipped: outside validity window", logging.String(logging.FieldEventType, "deal_window_filtered"))
		return ddex.Deal{}, false
	}

	model := commercialModel(terms)
	switch model {
	case "FreeOfChargeModel", "AdvertisementSupportedModel":
		deal.Type = ddex.DealFree
	case "PayAsYouGoModel":
		price, err := usdPrice(terms)
		if err != nil {
			logging.WarnWithContext(logger, "pay-gated deal skipped", "deal_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "WholesalePricePerUnit must be present in USD"),
				logging.String(logging.FieldImpact, "deal ignored"),
			)
			return ddex.Deal{}, false
		}
		deal.Type = ddex.DealPayGated
		deal.PriceUSD = &price
	case string(ddex.DealFollowGated):
		deal.Type = ddex.DealFollowGated
	case string(ddex.DealTipGated):
		deal.Type = ddex.DealTipGated
	case string(ddex.DealNFTGated):
		cond, err := nftCondition(terms)
		if err != nil {
			logging.WarnWithContext(logger, "nft-gated deal skipped", "deal_invalid",
				logging.Error(err),
				logging.String(logging.FieldImpact, "deal ignored"),
			)
			return ddex.Deal{}, false
		}
		deal.Type = ddex.DealNFTGated
		deal.NFT = cond
	default:
		logger.Debug("deal skipped: unsupported commercial model",
			logging.String("commercial_model", model),
			logging.String(logging.FieldEventType, "deal_model_filtered"),
		)
		return ddex.Deal{}, false
	}
	return deal, true
}

func hasWorldwideTerritory(n *xmlquery.Node) bool {
	for _, code := range n.SelectElements("TerritoryCode") {
		if text(code) == territoryWorldwide {
			return true
		}
	}
	return false
}

// userDefined resolves the UserDefined escape hatch used by several ERN
// enumerations.
func userDefined(n *xmlquery.Node) string {
	v := text(n)
	if v == "UserDefined" {
		return strings.TrimSpace(n.SelectAttr("UserDefinedValue"))
	}
	return v
}

func commercialModel(terms *xmlquery.Node) string {
	return userDefined(terms.SelectElement("CommercialModelType"))
}

func useTypes(terms *xmlquery.Node) []string {
	var out []string
	for _, n := range xmlquery.Find(terms, "Usage/UseType") {
		if v := userDefined(n); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func optionalDate(n *xmlquery.Node, path string) (*time.Time, error) {
	raw := text(n.SelectElement(path))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &t, nil
}

func usdPrice(terms *xmlquery.Node) (decimal.Decimal, error) {
	node := terms.SelectElement("PriceInformation/WholesalePricePerUnit")
	raw := text(node)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("missing WholesalePricePerUnit")
	}
	if currency := node.SelectAttr("CurrencyCode"); currency != "USD" {
		return decimal.Decimal{}, fmt.Errorf("unsupported currency %q", currency)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative price %s", price)
	}
	return price, nil
}

func nftCondition(terms *xmlquery.Node) (*ddex.NFTCondition, error) {
	cond := terms.SelectElement("Conditions")
	if cond == nil {
		return nil, fmt.Errorf("missing Conditions block")
	}
	out := &ddex.NFTCondition{
		Chain:        strings.ToLower(text(cond.SelectElement("Chain"))),
		Address:      text(cond.SelectElement("Address")),
		Standard:     text(cond.SelectElement("Standard")),
		Name:         text(cond.SelectElement("Name")),
		Slug:         text(cond.SelectElement("Slug")),
		ImageURL:     text(cond.SelectElement("ImageUrl")),
		ExternalLink: text(cond.SelectElement("ExternalLink")),
	}
	switch out.Chain {
	case "eth":
		if !common.IsHexAddress(out.Address) {
			return nil, fmt.Errorf("invalid eth contract address %q", out.Address)
		}
		out.Address = common.HexToAddress(out.Address).Hex()
	case "sol":
		if out.Address == "" {
			return nil, fmt.Errorf("missing sol mint address")
		}
	default:
		return nil, fmt.Errorf("unsupported chain %q", out.Chain)
	}
	return out, nil
}
