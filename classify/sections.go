package classify

import (
	"fmt"
	"sort"
)

// FallbackSection is assigned when nothing matches.
const FallbackSection = "sec_other"

// Section is a store aisle.
type Section struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Icon         string `json:"icon" yaml:"icon"`
	DefaultOrder int    `json:"default_order" yaml:"order"`
}

var defaultSections = []Section{
	{ID: "sec_fruit", Name: "Fruta y verdura", Icon: "🍎", DefaultOrder: 1},
	{ID: "sec_bakery", Name: "Panadería", Icon: "🥖", DefaultOrder: 2},
	{ID: "sec_meat", Name: "Carne", Icon: "🥩", DefaultOrder: 3},
	{ID: "sec_fish", Name: "Pescado y marisco", Icon: "🐟", DefaultOrder: 4},
	{ID: "sec_deli", Name: "Charcutería y quesos", Icon: "🧀", DefaultOrder: 5},
	{ID: "sec_dairy", Name: "Lácteos y huevos", Icon: "🥛", DefaultOrder: 6},
	{ID: "sec_frozen", Name: "Congelados", Icon: "🧊", DefaultOrder: 7},
	{ID: "sec_pantry", Name: "Despensa", Icon: "🥫", DefaultOrder: 8},
	{ID: "sec_breakfast", Name: "Desayuno y dulces", Icon: "🍪", DefaultOrder: 9},
	{ID: "sec_drinks", Name: "Bebidas", Icon: "🥤", DefaultOrder: 10},
	{ID: "sec_cleaning", Name: "Limpieza y hogar", Icon: "🧽", DefaultOrder: 11},
	{ID: "sec_hygiene", Name: "Higiene y cuidado personal", Icon: "🧴", DefaultOrder: 12},
	{ID: "sec_pets", Name: "Mascotas", Icon: "🐾", DefaultOrder: 13},
	{ID: FallbackSection, Name: "Otros", Icon: "🛒", DefaultOrder: 99},
}

// Catalog is an immutable set of sections.
type Catalog struct {
	sorted []Section
	byID   map[string]Section
}

// NewCatalog validates sections: ids are unique and non-empty, and
// FallbackSection is present.
func NewCatalog(sections []Section) (*Catalog, error) {
	c := &Catalog{
		sorted: make([]Section, 0, len(sections)),
		byID:   make(map[string]Section, len(sections)),
	}
	for _, s := range sections {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: section without id", ErrInvalidCatalog)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate section %q", ErrInvalidCatalog, s.ID)
		}
		c.byID[s.ID] = s
		c.sorted = append(c.sorted, s)
	}
	if _, ok := c.byID[FallbackSection]; !ok {
		return nil, fmt.Errorf("%w: missing fallback section %q", ErrInvalidCatalog, FallbackSection)
	}

	sort.SliceStable(c.sorted, func(i, j int) bool {
		return c.sorted[i].DefaultOrder < c.sorted[j].DefaultOrder
	})
	return c, nil
}

// DefaultCatalog returns the built-in sections.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultSections)
	if err != nil {
		panic(err)
	}
	return c
}

// Sorted returns the sections by default order. Ties keep declaration order.
func (c *Catalog) Sorted() []Section {
	return append([]Section(nil), c.sorted...)
}

// Lookup returns the section with id.
func (c *Catalog) Lookup(id string) (Section, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of sections.
func (c *Catalog) Len() int {
	return len(c.sorted)
}
