// Package tags keeps the tag vocabulary shared by holdings and operations
// consistent: a deleted tag disappears from every record that carried it.
package tags

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
)

// Kind partitions tags into undeletable system tags and custom tags.
type Kind string

const (
	KindSystem Kind = "system"
	KindCustom Kind = "custom"
)

// RecordID names a tagged record across both collections.
type RecordID string

func HoldingRecordID(key models.HoldingKey) RecordID {
	return RecordID("holding:" + strconv.FormatInt(key.PortfolioID, 10) + ":" + key.Ticker)
}

func OperationRecordID(id string) RecordID { return RecordID("operation:" + id) }

// Taxonomy is the set of known tags plus a back-reference index from each
// tag to the records carrying it. It is not safe for concurrent use; the
// Synchronizer guards it.
type Taxonomy struct {
	kinds map[models.TagName]Kind
	refs  map[models.TagName]map[RecordID]struct{}
}

// NewTaxonomy builds a taxonomy from the catalog the holdings API reports.
// Tags listed in All but not in Custom are system tags.
func NewTaxonomy(catalog models.TagCatalog) *Taxonomy {
	t := &Taxonomy{
		kinds: make(map[models.TagName]Kind, len(catalog.All)),
		refs:  make(map[models.TagName]map[RecordID]struct{}),
	}
	custom := models.NewTagSet(catalog.Custom...)
	for _, name := range catalog.All {
		if name == "" {
			continue
		}
		if custom.Has(name) {
			t.kinds[name] = KindCustom
		} else {
			t.kinds[name] = KindSystem
		}
	}
	for name := range custom {
		t.kinds[name] = KindCustom
	}
	for _, name := range catalog.System {
		if name != "" {
			t.kinds[name] = KindSystem
		}
	}
	return t
}

func (t *Taxonomy) Has(name models.TagName) bool {
	_, ok := t.kinds[name]
	return ok
}

// Kind returns the kind of name, or false when it is absent.
func (t *Taxonomy) Kind(name models.TagName) (Kind, bool) {
	k, ok := t.kinds[name]
	return k, ok
}

func (t *Taxonomy) Len() int { return len(t.kinds) }

// Catalog lists the tags sorted by name.
func (t *Taxonomy) Catalog() models.TagCatalog {
	c := models.TagCatalog{All: []models.TagName{}, Custom: []models.TagName{}, System: []models.TagName{}}
	for name, kind := range t.kinds {
		c.All = append(c.All, name)
		if kind == KindCustom {
			c.Custom = append(c.Custom, name)
		} else {
			c.System = append(c.System, name)
		}
	}
	slices.Sort(c.All)
	slices.Sort(c.Custom)
	slices.Sort(c.System)
	return c
}

// Index rebuilds the back-reference index from the records held in memory.
func (t *Taxonomy) Index(holdings []models.HoldingRecord, operations []models.OperationRecord) {
	t.refs = make(map[models.TagName]map[RecordID]struct{})
	for _, h := range holdings {
		for name := range h.Tags {
			t.reference(name, HoldingRecordID(h.Key()))
		}
	}
	for _, op := range operations {
		for name := range op.Tags {
			t.reference(name, OperationRecordID(op.ID))
		}
	}
}

func (t *Taxonomy) reference(name models.TagName, id RecordID) {
	set, ok := t.refs[name]
	if !ok {
		set = make(map[RecordID]struct{})
		t.refs[name] = set
	}
	set[id] = struct{}{}
}

// References lists the records carrying name, sorted.
func (t *Taxonomy) References(name models.TagName) []RecordID {
	out := make([]RecordID, 0, len(t.refs[name]))
	for id := range t.refs[name] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (t *Taxonomy) add(name models.TagName, kind Kind) { t.kinds[name] = kind }

func (t *Taxonomy) remove(name models.TagName) {
	delete(t.kinds, name)
	delete(t.refs, name)
}

// CanonicalName sanitizes raw into the stored form of a tag name.
func CanonicalName(raw string) (models.TagName, error) {
	name := validation.SanitizeLabel(raw)
	if err := validation.ValidateTagName(name); err != nil {
		return "", &ValidationError{Field: "name", Err: err}
	}
	return models.TagName(name), nil
}

// IsTagError reports whether err is one of the typed tag failures.
func IsTagError(err error) bool {
	var (
		v *ValidationError
		c *ConflictError
		n *NotFoundError
		f *ForbiddenError
	)
	return errors.As(err, &v) || errors.As(err, &c) || errors.As(err, &n) || errors.As(err, &f)
}

func (t *Taxonomy) String() string {
	return fmt.Sprintf("taxonomy(%d tags, %d referenced)", len(t.kinds), len(t.refs))
}
