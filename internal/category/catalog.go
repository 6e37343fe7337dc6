// Package category holds the catalog of valid flag categories. The catalog is
// seeded at construction and grows through owner-gated adds; entries are never
// removed, and List preserves insertion order.
package category

import (
	"context"
	"sync"

	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
)

// Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	ordered []id.Category
	present map[id.Category]bool
}

// NewCatalog builds a catalog pre-seeded with the default category set.
func NewCatalog() *Catalog {
	c := &Catalog{present: make(map[id.Category]bool)}
	for _, cat := range id.SeedCategories() {
		c.ordered = append(c.ordered, cat)
		c.present[cat] = true
	}
	return c
}

// IsValid reports whether the category is in the catalog.
func (c *Catalog) IsValid(_ context.Context, cat id.Category) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present[cat]
}

// Add inserts a new category.
//
// Errors: CodeInvalidCategory for a malformed label, CodeDuplicateCategory
// when already present.
func (c *Catalog) Add(_ context.Context, raw string) (id.Category, error) {
	cat, err := id.ParseCategory(raw)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.present[cat] {
		return "", dErrors.Newf(dErrors.CodeDuplicateCategory, "category %q already exists", cat)
	}
	c.ordered = append(c.ordered, cat)
	c.present[cat] = true
	return cat, nil
}

// List returns the catalog contents in insertion order.
func (c *Catalog) List(_ context.Context) []id.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]id.Category, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Count returns the number of categories in the catalog.
func (c *Catalog) Count(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}
