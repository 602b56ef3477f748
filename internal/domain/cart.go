package domain

import "time"

// NotFoundReason is the human-readable reason attached to unmatched items
const NotFoundReason = "not found in database"

// CartEntry is one product line in a cart. A cart never holds two entries
// with the same ProductID.
type CartEntry struct {
	ProductID   string   `json:"productId"`
	ProductName string   `json:"productName"`
	Quantity    Quantity `json:"quantity"`
	Source      Source   `json:"source"`
}

// Cart is the persistent per-user cart. Version is bumped by the store on
// every successful save and is used to detect concurrent writers.
type Cart struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Entries   []CartEntry `json:"entries"`
	Version   int64       `json:"version"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Merge folds a matched product into the cart. An existing entry for the
// same product has its quantity incremented, keeping its unit even when the
// incoming unit differs (values are added as is); otherwise a new entry is
// appended.
func (c *Cart) Merge(product ProductRef, quantity Quantity, source Source) {
	for i := range c.Entries {
		if c.Entries[i].ProductID == product.ID {
			c.Entries[i].Quantity.Value += quantity.Value
			return
		}
	}
	c.Entries = append(c.Entries, CartEntry{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		Source:      source,
	})
}

// Entry returns the entry for productID, if any
func (c *Cart) Entry(productID string) (CartEntry, bool) {
	for _, e := range c.Entries {
		if e.ProductID == productID {
			return e, true
		}
	}
	return CartEntry{}, false
}

// Clone returns a deep copy so stores never share entry slices with callers
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Entries = make([]CartEntry, len(c.Entries))
	copy(out.Entries, c.Entries)
	return &out
}

// AddedItem reports an item that was merged into the cart
type AddedItem struct {
	Name     string      `json:"name"`
	Quantity Quantity    `json:"quantity"`
	Source   Source      `json:"source"`
	Product  *ProductRef `json:"product,omitempty"`
}

// NotFoundItem reports an item that matched no catalog product
type NotFoundItem struct {
	Name     string   `json:"name"`
	Quantity Quantity `json:"quantity"`
	Reason   string   `json:"reason"`
}
