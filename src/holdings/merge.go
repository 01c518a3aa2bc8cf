package holdings

import (
	"slices"
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
)

// MergeByTicker folds records of the same ticker held in several portfolios
// into one overall-view record with portfolio id 0. Order follows the first
// appearance of each ticker.
func MergeByTicker(records []models.HoldingRecord) []models.HoldingRecord {
	index := make(map[string]int, len(records))
	var out []models.HoldingRecord

	for _, h := range records {
		i, ok := index[h.Ticker]
		if !ok {
			m := h.Clone()
			m.PortfolioID = 0
			m.PortfolioIDs = []int64{h.PortfolioID}
			index[h.Ticker] = len(out)
			out = append(out, m)
			continue
		}

		m := &out[i]
		m.Shares = m.Shares.Add(h.Shares)
		m.CostBasis = m.CostBasis.Add(h.CostBasis)
		m.CurrentValue = m.CurrentValue.Add(h.CurrentValue)
		if h.CostBasisSource == models.CostBasisServer {
			m.CostBasisSource = models.CostBasisServer
		}
		if !slices.Contains(m.PortfolioIDs, h.PortfolioID) {
			m.PortfolioIDs = append(m.PortfolioIDs, h.PortfolioID)
		}
		fillEmpty(&m.Name, h.Name)
		fillEmpty(&m.Category, h.Category)
		fillEmpty(&m.Institution, h.Institution)
		fillEmpty(&m.Sector, h.Sector)
		fillEmpty(&m.Industry, h.Industry)
		fillEmpty(&m.Country, h.Country)
		fillEmpty(&m.Region, h.Region)
		fillEmpty(&m.Currency, h.Currency)
		fillEmpty(&m.AssetType, h.AssetType)
		m.Tags = unionTags(m.Tags, h.Tags)
		if m.CurrentPrice.IsZero() {
			m.CurrentPrice = h.CurrentPrice
		}
	}

	for i := range out {
		m := &out[i]
		if len(m.PortfolioIDs) < 2 {
			continue
		}
		slices.Sort(m.PortfolioIDs)
		if !m.Shares.IsZero() {
			m.AvgPrice = m.CostBasis.Div(m.Shares)
			m.CurrentPrice = m.CurrentValue.Div(m.Shares)
		}
		m.ProfitValue = m.CurrentValue.Sub(m.CostBasis)
		m.ProfitPercent = ProfitPercent(m.ProfitValue, m.CostBasis)
	}
	return out
}

func fillEmpty(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// unionTags keeps nil only when both sides omitted tags.
func unionTags(a, b models.TagSet) models.TagSet {
	if a == nil && b == nil {
		return nil
	}
	out := a.Clone()
	for t := range b {
		out.Add(t)
	}
	return out
}

// MergeTagsForward carries tags from previous into next for records whose
// source omitted tags. The record with the same key wins; failing that, the
// tags of every previous record of the same ticker are combined, which covers
// a switch between the overall and per-portfolio views. Carried tags must
// still be known to the taxonomy, so a deleted tag never reappears. Every
// returned record has a non-nil set.
func MergeTagsForward(previous, next []models.HoldingRecord, known func(models.TagName) bool) []models.HoldingRecord {
	prior := make(map[models.HoldingKey]models.TagSet, len(previous))
	byTicker := make(map[string]models.TagSet, len(previous))
	for _, h := range previous {
		prior[h.Key()] = h.Tags
		byTicker[h.Ticker] = unionTags(byTicker[h.Ticker], h.Tags)
	}
	for i := range next {
		if next[i].Tags != nil {
			continue
		}
		source, ok := prior[next[i].Key()]
		if !ok {
			source = byTicker[next[i].Ticker]
		}
		carried := make(models.TagSet)
		for t := range source {
			if known == nil || known(t) {
				carried.Add(t)
			}
		}
		next[i].Tags = carried
	}
	return next
}

// ApplyMetadata writes the non-nil fields of f onto h.
func ApplyMetadata(h *models.HoldingRecord, f models.MetadataFields) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&h.Name, f.Name)
	set(&h.Category, f.Category)
	set(&h.Institution, f.Institution)
	set(&h.Sector, f.Sector)
	set(&h.Industry, f.Industry)
	set(&h.Country, f.Country)
	set(&h.Region, f.Region)
	set(&h.AssetType, f.AssetType)
	if f.Currency != nil {
		h.Currency = strings.ToUpper(strings.TrimSpace(*f.Currency))
	}
	if f.Tags != nil {
		h.Tags = models.NewTagSet(f.Tags...)
	}
}

// UpdatePrices sets the current price of every record whose ticker has an
// entry in prices and revalues it. It returns how many records changed.
func UpdatePrices(records []models.HoldingRecord, prices map[string]decimal.Decimal) int {
	n := 0
	for i := range records {
		p, ok := prices[records[i].Ticker]
		if !ok {
			continue
		}
		records[i].CurrentPrice = p
		Revalue(&records[i])
		n++
	}
	return n
}
