package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/listcart/backend/internal/domain"
)

// candidateLimit bounds how many prefiltered rows are checked against the predicate
const candidateLimit = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Catalog reads products from the products table
type Catalog struct {
	db *gorm.DB
}

// NewCatalog creates a catalog over db
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// FindOne prefilters products with one parameterised LIKE per keyword, then
// confirms each candidate with the predicate itself. Keywords are escaped,
// never spliced into SQL or patterns.
func (c *Catalog) FindOne(ctx context.Context, predicate domain.ProductPredicate, tieBreak domain.TieBreak) (*domain.ProductRef, error) {
	keywords := predicate.Keywords()
	if len(keywords) == 0 {
		return nil, nil
	}

	query := c.db.WithContext(ctx).Model(&ProductModel{})
	for _, kw := range keywords {
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(kw)+"%")
	}

	if tieBreak == domain.TieBreakShortest {
		query = query.Order("LENGTH(name)").Order("id")
	} else {
		query = query.Order("id")
	}

	var candidates []ProductModel
	if err := query.Limit(candidateLimit).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	for i := range candidates {
		if predicate.Matches(candidates[i].Name) {
			return toProductRef(&candidates[i]), nil
		}
	}

	return nil, nil
}

// SeedIfEmpty inserts products, in order, when the table has no rows and
// returns how many were written. Seed ids are ignored; rows get serial ids.
func (c *Catalog) SeedIfEmpty(ctx context.Context, products []domain.ProductRef) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	var seeded int
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ProductModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		rows := make([]ProductModel, 0, len(products))
		for _, p := range products {
			rows = append(rows, ProductModel{Name: p.Name})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		seeded = len(rows)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}

	return seeded, nil
}
