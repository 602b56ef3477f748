package memory

import (
	"context"
	"sync"

	"github.com/listcart/backend/internal/domain"
)

// CartStore is a versioned in-memory cart store. It hands out copies, so a
// caller mutating a loaded cart never changes what is stored.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

// NewCartStore creates an empty store
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*domain.Cart)}
}

// Load returns a copy of the user's cart or domain.ErrCartNotFound
func (s *CartStore) Load(ctx context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

// Save stores cart if its Version matches the stored one (0 for a new cart)
// and bumps cart.Version. A mismatch returns domain.ErrCartConflict.
func (s *CartStore) Save(ctx context.Context, cart *domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if existing, ok := s.carts[cart.UserID]; ok {
		stored = existing.Version
	}
	if cart.Version != stored {
		return domain.ErrCartConflict
	}

	cart.Version++
	s.carts[cart.UserID] = cart.Clone()
	return nil
}
