package models

import (
	"encoding/json"
	"sort"
)

// TagName is a case-sensitive tag, unique within an account.
type TagName string

// TagSet is the set of tags attached to a record. It encodes as a sorted JSON array.
type TagSet map[TagName]struct{}

// NewTagSet builds a set from names, ignoring empty ones.
func NewTagSet[T ~string](names ...T) TagSet {
	s := make(TagSet, len(names))
	for _, n := range names {
		if n != "" {
			s[TagName(n)] = struct{}{}
		}
	}
	return s
}

func (s TagSet) Has(name TagName) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name; it is a no-op on a nil set.
func (s TagSet) Add(name TagName) {
	if s != nil {
		s[name] = struct{}{}
	}
}

// Remove deletes name and reports whether it was present.
func (s TagSet) Remove(name TagName) bool {
	if _, ok := s[name]; !ok {
		return false
	}
	delete(s, name)
	return true
}

func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the members in byte order.
func (s TagSet) Sorted() []TagName {
	out := make([]TagName, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TagSet) UnmarshalJSON(data []byte) error {
	var names []TagName
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewTagSet(names...)
	return nil
}

// TagCatalog is the tag vocabulary as the holdings API reports it. All
// contains every tag; Custom the deletable subset. System is derived.
type TagCatalog struct {
	All    []TagName `json:"all"`
	Custom []TagName `json:"custom"`
	System []TagName `json:"system,omitempty"`
}
