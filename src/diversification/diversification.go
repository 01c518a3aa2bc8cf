// Package diversification computes percentage-of-total breakdowns of a set of
// holdings across the asset, sector, region, country and currency dimensions.
package diversification

import (
	"slices"
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/holdings"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
)

type labeler func(models.HoldingRecord) string

// Diversify builds the five allocations. Percentages are relative to
// totalValue and are all 0 when totalValue is not positive.
func Diversify(records []models.HoldingRecord, totalValue decimal.Decimal) models.Breakdown {
	return models.Breakdown{
		AssetAllocation:    Allocate(records, totalValue, holdings.AssetClass),
		SectorAllocation:   Allocate(records, totalValue, holdings.Sector),
		RegionAllocation:   Allocate(records, totalValue, holdings.Region),
		CountryAllocation:  Allocate(records, totalValue, holdings.Country),
		CurrencyAllocation: Allocate(records, totalValue, holdings.Currency),
	}
}

// Allocate groups records by label in one pass and sorts the entries by
// value, largest first, ties broken by label.
func Allocate(records []models.HoldingRecord, totalValue decimal.Decimal, label labeler) []models.AllocationEntry {
	index := make(map[string]int)
	entries := []models.AllocationEntry{}

	for _, h := range records {
		l := label(h)
		i, ok := index[l]
		if !ok {
			i = len(entries)
			index[l] = i
			entries = append(entries, models.AllocationEntry{Label: l, Value: decimal.Zero})
		}
		entries[i].Value = entries[i].Value.Add(h.CurrentValue)
		entries[i].Count++
	}

	for i := range entries {
		if totalValue.IsPositive() {
			entries[i].Percentage = holdings.Percent(entries[i].Value, totalValue)
		}
	}

	slices.SortStableFunc(entries, func(a, b models.AllocationEntry) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	return entries
}
