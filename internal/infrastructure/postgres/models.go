package postgres

import "time"

// ProductModel is a catalog row. Catalog CRUD happens elsewhere; this
// service only reads it.
type ProductModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string { return "products" }

// CartModel is one user's cart. Version is the optimistic concurrency token.
type CartModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:255;not null;uniqueIndex"`
	Version   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Entries []CartEntryModel `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

func (CartModel) TableName() string { return "carts" }

// CartEntryModel is one product line. (cart_id, product_id) is unique.
type CartEntryModel struct {
	ID          uint    `gorm:"primaryKey"`
	CartID      string  `gorm:"size:36;not null;uniqueIndex:idx_cart_product"`
	ProductID   string  `gorm:"size:64;not null;uniqueIndex:idx_cart_product"`
	ProductName string  `gorm:"size:255"`
	Quantity    float64 `gorm:"not null"`
	Unit        string  `gorm:"size:16;not null"`
	Source      string  `gorm:"size:16;not null"`
	Position    int     `gorm:"not null"`
}

func (CartEntryModel) TableName() string { return "cart_entries" }
