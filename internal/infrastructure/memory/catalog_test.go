package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listcart/backend/internal/domain"
	"github.com/listcart/backend/internal/usecase"
)

const seedYAML = `
products:
  - id: M1
    name: Toned Milk 1L
  - id: M2
    name: Milk
  - id: B1
    name: Brown Bread
`

func TestParseCatalog(t *testing.T) {
	t.Run("loads products in order", func(t *testing.T) {
		catalog, err := ParseCatalog([]byte(seedYAML))
		require.NoError(t, err)
		assert.Equal(t, 3, catalog.Len())
		products := catalog.Products()
		require.Len(t, products, 3)
		assert.Equal(t, domain.ProductRef{ID: "M2", Name: "Milk"}, products[1])
	})

	t.Run("rejects products without id", func(t *testing.T) {
		_, err := ParseCatalog([]byte("products:\n  - name: Milk\n"))
		assert.Error(t, err)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := ParseCatalog([]byte("products:\n  - {id: A, name: Milk}\n  - {id: A, name: Bread}\n"))
		assert.Error(t, err)
	})

	t.Run("rejects invalid yaml", func(t *testing.T) {
		_, err := ParseCatalog([]byte("products: ["))
		assert.Error(t, err)
	})
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalog_FindOne(t *testing.T) {
	ctx := context.Background()
	catalog, err := ParseCatalog([]byte(seedYAML))
	require.NoError(t, err)

	milk := usecase.BuildKeywordPredicate([]string{"milk"})

	t.Run("first in catalog order", func(t *testing.T) {
		got, err := catalog.FindOne(ctx, milk, domain.TieBreakFirst)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "M1", got.ID)
	})

	t.Run("shortest name", func(t *testing.T) {
		got, err := catalog.FindOne(ctx, milk, domain.TieBreakShortest)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "M2", got.ID)
	})

	t.Run("not found is not an error", func(t *testing.T) {
		got, err := catalog.FindOne(ctx, usecase.BuildKeywordPredicate([]string{"caviar"}), domain.TieBreakFirst)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("added products become visible", func(t *testing.T) {
		c := NewCatalog()
		c.Add(domain.ProductRef{ID: "C1", Name: "Cheddar Cheese"})
		got, err := c.FindOne(ctx, usecase.BuildKeywordPredicate([]string{"cheese"}), domain.TieBreakFirst)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "C1", got.ID)
	})

	t.Run("cancelled context is returned as is", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := catalog.FindOne(cancelled, milk, domain.TieBreakFirst)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrCatalogUnavailable)
	})
}
