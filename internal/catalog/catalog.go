package catalog

import (
	"context"

	"digi-merch/internal/model"
)

// Entry is one catalog row: the delivery link and list price for a product.
type Entry struct {
	Name     string  `json:"name"`
	FileLink string  `json:"fileLink"`
	Price    float64 `json:"price"`
}

// Catalog maps normalised product names to their catalog entries. It is
// read-only after loading; lookups are safe for concurrent use.
type Catalog struct {
	entries map[string]Entry
}

// New builds a catalog from the given entries, keyed by normalised name.
// Later duplicates win, matching last-write semantics of the source table.
func New(entries []Entry) *Catalog {
	byName := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		byName[model.NormalizeName(entry.Name)] = entry
	}
	return &Catalog{entries: byName}
}

// Lookup finds the entry for a product name, normalising before comparing.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	entry, ok := c.entries[model.NormalizeName(name)]
	return entry, ok
}

// Size returns the number of catalog entries.
func (c *Catalog) Size() int {
	return len(c.entries)
}

// Loader defines the interface for loading the product catalog.
type Loader interface {
	// Load reads a catalog file (JSON array of entries) and returns the
	// parsed catalog.
	Load(ctx context.Context, path string) (*Catalog, error)
}
