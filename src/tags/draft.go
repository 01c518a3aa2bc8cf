package tags

import (
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
)

// Draft is an in-progress metadata edit of one holding. Nothing in it is
// visible to the view model until the edit is saved.
type Draft struct {
	Ticker       string
	PortfolioID  int64
	PortfolioIDs []int64

	fields models.MetadataFields
	tags   models.TagSet
	exists func(models.TagName) bool
}

// NewDraft starts an edit from the current state of h. exists decides which
// tags may be attached.
func NewDraft(h models.HoldingRecord, exists func(models.TagName) bool) *Draft {
	d := &Draft{
		Ticker:      h.Ticker,
		PortfolioID: h.PortfolioID,
		tags:        h.Tags.Clone(),
		exists:      exists,
	}
	if len(h.PortfolioIDs) > 0 {
		d.PortfolioIDs = append([]int64(nil), h.PortfolioIDs...)
	}
	return d
}

func (d *Draft) Key() models.HoldingKey {
	return models.HoldingKey{Ticker: d.Ticker, PortfolioID: d.PortfolioID}
}

// Attach adds a known tag to the draft.
func (d *Draft) Attach(raw string) error {
	name := models.TagName(strings.TrimSpace(raw))
	if d.exists != nil && !d.exists(name) {
		return &NotFoundError{Name: name}
	}
	d.tags.Add(name)
	return nil
}

// Detach removes a tag from the draft.
func (d *Draft) Detach(raw string) error {
	name := models.TagName(strings.TrimSpace(raw))
	if !d.tags.Remove(name) {
		return &NotFoundError{Name: name}
	}
	return nil
}

// ClearTags detaches every tag, so the tags attached afterwards form the
// complete new set.
func (d *Draft) ClearTags() {
	d.tags = make(models.TagSet)
}

func (d *Draft) Has(name models.TagName) bool { return d.tags.Has(name) }

func (d *Draft) Tags() []models.TagName { return d.tags.Sorted() }

// SetField edits one classification field. Field names follow the JSON
// names of HoldingRecord; "assetType" is accepted too.
func (d *Draft) SetField(field, value string) error {
	v := validation.SanitizeLabel(value)
	if err := validation.ValidateStringMaxLength(v, validation.DefaultMaxStringLength, field); err != nil {
		return &ValidationError{Field: field, Err: err}
	}

	f := &d.fields
	switch field {
	case "name":
		f.Name = &v
	case "category":
		f.Category = &v
	case "institution":
		f.Institution = &v
	case "sector":
		f.Sector = &v
	case "industry":
		f.Industry = &v
	case "country":
		f.Country = &v
	case "region":
		f.Region = &v
	case "currency":
		if err := validation.ValidateCurrencyCode(v); err != nil {
			return &ValidationError{Field: field, Err: err}
		}
		v = strings.ToUpper(v)
		f.Currency = &v
	case "asset_type", "assetType":
		f.AssetType = &v
	default:
		return invalid(field, "unknown metadata field %q", field)
	}
	return nil
}

// Metadata is the payload to persist. Tags is always set, so saving a draft
// replaces the holding's whole tag set.
func (d *Draft) Metadata() models.MetadataFields {
	out := d.fields
	out.Tags = d.tags.Sorted()
	return out
}
