package ddex

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealType enumerates the supported commercial models.
type DealType string

const (
	DealFree        DealType = "Free"
	DealPayGated    DealType = "PayGated"
	DealFollowGated DealType = "FollowGated"
	DealTipGated    DealType = "TipGated"
	DealNFTGated    DealType = "NFTGated"
)

// NFTCondition parameterizes an NFTGated deal.
type NFTCondition struct {
	Chain        string `json:"chain"`
	Address      string `json:"address"`
	Standard     string `json:"standard,omitempty"`
	Name         string `json:"name,omitempty"`
	Slug         string `json:"slug,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ExternalLink string `json:"externalLink,omitempty"`
}

// Deal is a retained commercial term for a release.
type Deal struct {
	Type        DealType         `json:"audiusDealType"`
	PriceUSD    *decimal.Decimal `json:"priceUsd,omitempty"`
	NFT         *NFTCondition    `json:"nftCondition,omitempty"`
	ValidFrom   *time.Time       `json:"validityStartDate,omitempty"`
	ValidUntil  *time.Time       `json:"validityEndDate,omitempty"`
	ForStream   bool             `json:"forStream"`
	ForDownload bool             `json:"forDownload"`
}

// ActiveAt reports whether now lies within the deal's validity window.
// Missing bounds are open. The end date is inclusive: the deal lapses at
// the start of the following day.
func (d Deal) ActiveAt(now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && !now.Before(d.ValidUntil.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// PriceCents returns the USD price in whole cents.
func (d Deal) PriceCents() int64 {
	if d.PriceUSD == nil {
		return 0
	}
	return d.PriceUSD.Shift(2).Round(0).IntPart()
}
