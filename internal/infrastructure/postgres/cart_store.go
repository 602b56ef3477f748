package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/listcart/backend/internal/domain"
)

// CartStore persists carts in the carts and cart_entries tables, using the
// version column for optimistic concurrency
type CartStore struct {
	db *gorm.DB
}

// NewCartStore creates a store over db
func NewCartStore(db *gorm.DB) *CartStore {
	return &CartStore{db: db}
}

// Load returns the user's cart with entries in their stored order
func (s *CartStore) Load(ctx context.Context, userID string) (*domain.Cart, error) {
	var model CartModel
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("user_id = ?", userID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	return toCart(&model), nil
}

// Save writes the cart and all its entries in one transaction. A new cart
// (Version 0) is inserted; an existing one is updated only if the stored
// version still equals cart.Version. Either race returns domain.ErrCartConflict.
func (s *CartStore) Save(ctx context.Context, cart *domain.Cart) error {
	next := cart.Version + 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cart.Version == 0 {
			if err := s.insertCart(tx, cart, next); err != nil {
				return err
			}
		} else {
			res := tx.Model(&CartModel{}).
				Where("id = ? AND version = ?", cart.ID, cart.Version).
				Updates(map[string]interface{}{"version": next, "updated_at": cart.UpdatedAt})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrCartConflict
			}
			if err := tx.Where("cart_id = ?", cart.ID).Delete(&CartEntryModel{}).Error; err != nil {
				return err
			}
		}

		entries := toEntryModels(cart)
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrCartConflict) {
			return err
		}
		return fmt.Errorf("save cart: %w", err)
	}

	cart.Version = next
	return nil
}

func (s *CartStore) insertCart(tx *gorm.DB, cart *domain.Cart, version int64) error {
	var existing int64
	if err := tx.Model(&CartModel{}).Where("user_id = ?", cart.UserID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return domain.ErrCartConflict
	}

	model := CartModel{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Version:   version,
		UpdatedAt: cart.UpdatedAt,
	}
	err := tx.Omit(clause.Associations).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another process created the user's cart between our count and insert
		return domain.ErrCartConflict
	}
	return err
}
