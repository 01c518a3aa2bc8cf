package tags

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
)

// Remote persists tag mutations.
type Remote interface {
	CreateTagRemote(ctx context.Context, name models.TagName) error
	DeleteTagRemote(ctx context.Context, name models.TagName) error
}

// Holder exposes the records currently held in memory. Its methods are only
// called with the synchronizer's lock held.
type Holder interface {
	HeldHoldings() []models.HoldingRecord
	HeldOperations() []models.OperationRecord
}

// Synchronizer applies tag mutations to the in-memory taxonomy and records
// first and persists them afterwards, rolling back when persistence fails.
// The lock is shared with the owner of the records; it is never held while
// the remote call is in flight.
type Synchronizer struct {
	mu       sync.Locker
	taxonomy *Taxonomy
	remote   Remote
	holder   Holder
	onChange func()
}

// NewSynchronizer starts with an empty taxonomy. onChange, if set, runs with
// the lock held after every in-memory mutation.
func NewSynchronizer(mu sync.Locker, remote Remote, holder Holder, onChange func()) *Synchronizer {
	return &Synchronizer{
		mu:       mu,
		taxonomy: NewTaxonomy(models.TagCatalog{}),
		remote:   remote,
		holder:   holder,
		onChange: onChange,
	}
}

// Reset installs the catalog fetched from the API and reindexes the held
// records. The caller holds the lock.
func (s *Synchronizer) Reset(catalog models.TagCatalog) {
	s.taxonomy = NewTaxonomy(catalog)
	s.Reindex()
}

// Reindex rebuilds the back-reference index. The caller holds the lock.
func (s *Synchronizer) Reindex() {
	s.taxonomy.Index(s.holder.HeldHoldings(), s.holder.HeldOperations())
}

// Taxonomy returns the live taxonomy. The caller holds the lock.
func (s *Synchronizer) Taxonomy() *Taxonomy { return s.taxonomy }

// Exists reports whether name is a known tag. It takes the lock.
func (s *Synchronizer) Exists(name models.TagName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxonomy.Has(name)
}

func (s *Synchronizer) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// CreateTag registers raw as a custom tag and returns its canonical name.
func (s *Synchronizer) CreateTag(ctx context.Context, raw string) (models.TagName, error) {
	name, err := CanonicalName(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.taxonomy.Has(name) {
		s.mu.Unlock()
		return "", &ConflictError{Name: name}
	}
	taxonomy := s.taxonomy
	taxonomy.add(name, KindCustom)
	s.changed()
	s.mu.Unlock()

	if err := s.remote.CreateTagRemote(ctx, name); err != nil {
		s.mu.Lock()
		// A reload in the meantime installed the server's catalog; nothing to undo.
		if s.taxonomy == taxonomy {
			if kind, ok := taxonomy.Kind(name); ok && kind == KindCustom {
				taxonomy.remove(name)
			}
		}
		s.changed()
		s.mu.Unlock()
		logger.FromContext(ctx).Warn("Tag creation rolled back", "tag", name, "error", err)
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}

	logger.FromContext(ctx).Info("Tag created", "tag", name)
	return name, nil
}

// DeleteTag removes a custom tag from the taxonomy and strips it from every
// held holding and operation before the lock is released, so no reader ever
// sees a record carrying a deleted tag.
func (s *Synchronizer) DeleteTag(ctx context.Context, raw string) error {
	name := models.TagName(strings.TrimSpace(raw))

	s.mu.Lock()
	kind, ok := s.taxonomy.Kind(name)
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Name: name}
	}
	if kind == KindSystem {
		s.mu.Unlock()
		return &ForbiddenError{Name: name}
	}
	taxonomy := s.taxonomy
	indexed := len(taxonomy.References(name))
	stripped := s.strip(name)
	taxonomy.remove(name)
	s.changed()
	s.mu.Unlock()

	log := logger.FromContext(ctx)
	if indexed != len(stripped) {
		log.Debug("Tag index was stale at deletion", "tag", name, "indexed", indexed, "stripped", len(stripped))
	}

	if err := s.remote.DeleteTagRemote(ctx, name); err != nil {
		s.mu.Lock()
		if s.taxonomy == taxonomy {
			taxonomy.add(name, kind)
			for _, set := range stripped {
				set.Add(name)
			}
			s.Reindex()
		}
		s.changed()
		s.mu.Unlock()
		log.Warn("Tag deletion rolled back", "tag", name, "error", err)
		return fmt.Errorf("delete tag %q: %w", name, err)
	}

	log.Info("Tag deleted", "tag", name, "records", len(stripped))
	return nil
}

// strip removes name from every held record and returns the sets it was
// removed from. The caller holds the lock.
func (s *Synchronizer) strip(name models.TagName) []models.TagSet {
	var stripped []models.TagSet
	for _, h := range s.holder.HeldHoldings() {
		if h.Tags.Remove(name) {
			stripped = append(stripped, h.Tags)
		}
	}
	for _, op := range s.holder.HeldOperations() {
		if op.Tags.Remove(name) {
			stripped = append(stripped, op.Tags)
		}
	}
	return stripped
}
