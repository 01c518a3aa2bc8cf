package holdings

import (
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
)

// Filter returns the records matching every non-empty field of f.
// Category and institution compare case-insensitively; the ticker query is
// a case-insensitive substring of the ticker or the name.
func Filter(records []models.HoldingRecord, f models.Filters) []models.HoldingRecord {
	query := strings.ToLower(strings.TrimSpace(f.TickerQuery))
	category := strings.TrimSpace(f.Category)
	institution := strings.TrimSpace(f.Institution)

	out := make([]models.HoldingRecord, 0, len(records))
	for _, h := range records {
		if category != "" && !strings.EqualFold(h.Category, category) {
			continue
		}
		if institution != "" && !strings.EqualFold(h.Institution, institution) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(h.Ticker), query) &&
			!strings.Contains(strings.ToLower(h.Name), query) {
			continue
		}
		if f.Tag != "" && !h.Tags.Has(f.Tag) {
			continue
		}
		out = append(out, h)
	}
	return out
}
