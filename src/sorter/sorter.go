// Package sorter orders holdings for tables. Sorting is stable and always
// breaks ties on the ticker, so repeated calls give the same order no matter
// how the input was arranged.
package sorter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/holdings"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultKey is used for unknown sort keys.
const DefaultKey = "ticker"

var stringKeys = map[string]func(models.HoldingRecord) string{
	"ticker":      func(h models.HoldingRecord) string { return h.Ticker },
	"name":        func(h models.HoldingRecord) string { return h.Name },
	"category":    func(h models.HoldingRecord) string { return h.Category },
	"institution": func(h models.HoldingRecord) string { return h.Institution },
	"sector":      holdings.Sector,
	"industry":    holdings.Industry,
	"country":     holdings.Country,
	"region":      holdings.Region,
	"currency":    holdings.Currency,
	"assetType":   holdings.AssetClass,
}

var decimalKeys = map[string]func(models.HoldingRecord) decimal.Decimal{
	"shares":       func(h models.HoldingRecord) decimal.Decimal { return h.Shares },
	"avgPrice":     func(h models.HoldingRecord) decimal.Decimal { return h.AvgPrice },
	"costBasis":    func(h models.HoldingRecord) decimal.Decimal { return h.CostBasis },
	"currentPrice": func(h models.HoldingRecord) decimal.Decimal { return h.CurrentPrice },
	"currentValue": func(h models.HoldingRecord) decimal.Decimal { return h.CurrentValue },
	"profitValue":  func(h models.HoldingRecord) decimal.Decimal { return h.ProfitValue },
}

// ValidKey reports whether key names a sortable field.
func ValidKey(key string) bool {
	if _, ok := stringKeys[key]; ok {
		return true
	}
	if _, ok := decimalKeys[key]; ok {
		return true
	}
	return key == "profitPercent" || key == "sharePercent"
}

type comparator func(a, b models.HoldingRecord) int

// newCollator compares case-insensitively with digit runs read as numbers,
// so "9" sorts before "10". Collators are not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
}

func primary(key string, c *collate.Collator) comparator {
	if get, ok := stringKeys[key]; ok {
		return func(a, b models.HoldingRecord) int { return c.CompareString(get(a), get(b)) }
	}
	if get, ok := decimalKeys[key]; ok {
		return func(a, b models.HoldingRecord) int { return get(a).Cmp(get(b)) }
	}
	switch key {
	case "profitPercent":
		return func(a, b models.HoldingRecord) int { return compareOptional(a.ProfitPercent, b.ProfitPercent) }
	case "sharePercent":
		return func(a, b models.HoldingRecord) int { return cmp.Compare(a.SharePercent, b.SharePercent) }
	}
	return primary(DefaultKey, c)
}

// compareOptional ranks a missing value below every number.
func compareOptional(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

// Sort returns a sorted copy of records. direction flips only the primary
// comparison; the ticker tie-break is always ascending.
func Sort(records []models.HoldingRecord, key string, direction models.SortDirection) []models.HoldingRecord {
	out := slices.Clone(records)
	if out == nil {
		out = []models.HoldingRecord{}
	}
	c := newCollator()
	byKey := primary(key, c)
	sign := 1
	if direction == models.SortDesc {
		sign = -1
	}

	slices.SortStableFunc(out, func(a, b models.HoldingRecord) int {
		if r := byKey(a, b) * sign; r != 0 {
			return r
		}
		if r := c.CompareString(a.Ticker, b.Ticker); r != 0 {
			return r
		}
		if r := strings.Compare(a.Ticker, b.Ticker); r != 0 {
			return r
		}
		return cmp.Compare(a.PortfolioID, b.PortfolioID)
	})
	return out
}
