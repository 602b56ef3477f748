package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/listcart/backend/internal/domain"
)

// Catalog is an in-memory product catalog that keeps insertion order, so
// "first match" is deterministic
type Catalog struct {
	mu       sync.RWMutex
	products []domain.ProductRef
}

// NewCatalog creates a catalog holding products in the given order
func NewCatalog(products ...domain.ProductRef) *Catalog {
	c := &Catalog{}
	c.products = append(c.products, products...)
	return c
}

// seedFile is the YAML layout accepted by LoadCatalogFile:
//
//	products:
//	  - id: M1
//	    name: Toned Milk 1L
type seedFile struct {
	Products []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"products"`
}

// LoadCatalogFile reads a YAML seed file into a new catalog
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog builds a catalog from YAML seed data. Products need an id and a name.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}

	products := make([]domain.ProductRef, 0, len(seed.Products))
	seen := make(map[string]bool, len(seed.Products))
	for i, p := range seed.Products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("catalog seed product %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catalog seed product %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		products = append(products, domain.ProductRef{ID: p.ID, Name: p.Name})
	}

	return NewCatalog(products...), nil
}

// Add appends a product to the end of the catalog
func (c *Catalog) Add(product domain.ProductRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = append(c.products, product)
}

// Products returns a copy of the catalog in order
func (c *Catalog) Products() []domain.ProductRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ProductRef, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// FindOne returns the product chosen by tieBreak among those whose name
// satisfies predicate, or nil. A done ctx returns ctx.Err() as is.
func (c *Catalog) FindOne(ctx context.Context, predicate domain.ProductPredicate, tieBreak domain.TieBreak) (*domain.ProductRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *domain.ProductRef
	for i := range c.products {
		if !predicate.Matches(c.products[i].Name) {
			continue
		}
		p := c.products[i]
		if tieBreak != domain.TieBreakShortest {
			return &p, nil
		}
		if best == nil || len(p.Name) < len(best.Name) {
			best = &p
		}
	}

	return best, nil
}
