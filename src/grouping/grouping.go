// Package grouping aggregates holdings into chart series by a dimension.
package grouping

import (
	"math"
	"slices"
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/holdings"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
)

// Label resolves the group a holding falls into for dim.
func Label(h models.HoldingRecord, dim models.GroupDimension) string {
	switch dim {
	case models.GroupBySector:
		return holdings.Sector(h)
	case models.GroupByIndustry:
		return holdings.Industry(h)
	case models.GroupByCountry:
		return holdings.Country(h)
	case models.GroupByAssetType:
		return holdings.AssetClass(h)
	default:
		if h.Ticker == "" {
			return holdings.Other
		}
		return h.Ticker
	}
}

// GroupBy sums the money fields of records per label and orders the groups
// by the absolute value of metric, largest first, so the biggest losers rank
// next to the biggest winners.
func GroupBy(records []models.HoldingRecord, dim models.GroupDimension, metric models.Metric) []models.GroupEntry {
	index := make(map[string]int)
	entries := []models.GroupEntry{}

	for _, h := range records {
		label := Label(h, dim)
		i, ok := index[label]
		if !ok {
			i = len(entries)
			index[label] = i
			entries = append(entries, models.GroupEntry{
				Label:         label,
				Tickers:       []string{},
				Shares:        decimal.Zero,
				CostBasis:     decimal.Zero,
				CurrentValue:  decimal.Zero,
				ProfitValue:   decimal.Zero,
				PriceTotal:    decimal.Zero,
				AvgPriceTotal: decimal.Zero,
			})
		}
		e := &entries[i]
		e.Count++
		if !slices.Contains(e.Tickers, h.Ticker) {
			e.Tickers = append(e.Tickers, h.Ticker)
		}
		e.Shares = e.Shares.Add(h.Shares)
		e.CostBasis = e.CostBasis.Add(h.CostBasis)
		e.CurrentValue = e.CurrentValue.Add(h.CurrentValue)
		e.ProfitValue = e.ProfitValue.Add(h.ProfitValue)
		e.PriceTotal = e.PriceTotal.Add(h.CurrentPrice.Mul(h.Shares))
		e.AvgPriceTotal = e.AvgPriceTotal.Add(h.AvgPrice.Mul(h.Shares))
	}

	for i := range entries {
		e := &entries[i]
		e.ProfitPercent = holdings.Percent(e.ProfitValue, e.CostBasis)
		e.PricePercent = holdings.Percent(e.PriceTotal.Sub(e.AvgPriceTotal), e.AvgPriceTotal)
	}

	SortEntries(entries, metric)
	return entries
}

// MetricValue is the figure of e that metric ranks by.
func MetricValue(e models.GroupEntry, metric models.Metric) float64 {
	switch metric {
	case models.MetricGainPercent:
		return e.ProfitPercent
	case models.MetricPricePercent:
		return e.PricePercent
	default:
		f, _ := e.ProfitValue.Float64()
		return f
	}
}

// SortEntries orders entries by |metric| descending, then by label.
func SortEntries(entries []models.GroupEntry, metric models.Metric) {
	slices.SortStableFunc(entries, func(a, b models.GroupEntry) int {
		av, bv := math.Abs(MetricValue(a, metric)), math.Abs(MetricValue(b, metric))
		switch {
		case av > bv:
			return -1
		case av < bv:
			return 1
		}
		return strings.Compare(a.Label, b.Label)
	})
}
