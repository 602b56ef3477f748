package postgres

import (
	"strconv"

	"github.com/listcart/backend/internal/domain"
)

// toProductRef converts a catalog row to the domain reference
func toProductRef(m *ProductModel) *domain.ProductRef {
	return &domain.ProductRef{
		ID:   strconv.FormatUint(uint64(m.ID), 10),
		Name: m.Name,
	}
}

// toCart converts a cart row and its entries (already ordered by position)
func toCart(m *CartModel) *domain.Cart {
	cart := &domain.Cart{
		ID:        m.ID,
		UserID:    m.UserID,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
		Entries:   make([]domain.CartEntry, 0, len(m.Entries)),
	}

	for _, e := range m.Entries {
		cart.Entries = append(cart.Entries, domain.CartEntry{
			ProductID:   e.ProductID,
			ProductName: e.ProductName,
			Quantity:    domain.Quantity{Value: e.Quantity, Unit: domain.Unit(e.Unit)},
			Source:      domain.Source(e.Source),
		})
	}

	return cart
}

// toEntryModels converts cart entries, recording their order
func toEntryModels(cart *domain.Cart) []CartEntryModel {
	models := make([]CartEntryModel, 0, len(cart.Entries))
	for i, e := range cart.Entries {
		models = append(models, CartEntryModel{
			CartID:      cart.ID,
			ProductID:   e.ProductID,
			ProductName: e.ProductName,
			Quantity:    e.Quantity.Value,
			Unit:        string(e.Quantity.Unit),
			Source:      string(e.Source),
			Position:    i,
		})
	}
	return models
}
