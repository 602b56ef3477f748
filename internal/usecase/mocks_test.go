package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/listcart/backend/internal/domain"
)

// mockCatalog is a mock implementation of domain.ProductCatalog
type mockCatalog struct {
	mu       sync.Mutex
	products []domain.ProductRef
	err      error
	calls    int
	queries  [][]string
}

func newMockCatalog(products ...domain.ProductRef) *mockCatalog {
	return &mockCatalog{products: products}
}

func (m *mockCatalog) FindOne(ctx context.Context, predicate domain.ProductPredicate, tieBreak domain.TieBreak) (*domain.ProductRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.queries = append(m.queries, predicate.Keywords())
	if m.err != nil {
		return nil, m.err
	}

	var best *domain.ProductRef
	for i := range m.products {
		p := m.products[i]
		if !predicate.Matches(p.Name) {
			continue
		}
		if tieBreak == domain.TieBreakFirst {
			return &p, nil
		}
		if best == nil || len(p.Name) < len(best.Name) {
			best = &p
		}
	}
	return best, nil
}

func (m *mockCatalog) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCartStore is a versioned in-memory domain.CartStore that can inject conflicts
type mockCartStore struct {
	mu         sync.Mutex
	carts      map[string]*domain.Cart
	conflicts  int
	loadErr    error
	saveErr    error
	saves      int
	loads      int
	beforeSave func()
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartStore) Load(ctx context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *mockCartStore) Save(ctx context.Context, cart *domain.Cart) error {
	if m.beforeSave != nil {
		m.beforeSave()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrCartConflict
	}

	var stored int64
	if existing, ok := m.carts[cart.UserID]; ok {
		stored = existing.Version
	}
	if stored != cart.Version {
		return domain.ErrCartConflict
	}
	cart.Version++
	m.carts[cart.UserID] = cart.Clone()
	return nil
}

func (m *mockCartStore) get(userID string) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[userID].Clone()
}

func (m *mockCartStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// mockCache is a mock implementation of domain.CacheRepository
type mockCache struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]interface{})}
}

func (m *mockCache) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// mockOCRProvider returns scripted poll statuses
type mockOCRProvider struct {
	mu        sync.Mutex
	submitErr error
	statuses  []domain.OCRStatus
	pollErrs  []error
	polls     int
}

func (m *mockOCRProvider) Submit(ctx context.Context, image []byte) (domain.OperationHandle, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return "op-1", nil
}

func (m *mockOCRProvider) Poll(ctx context.Context, handle domain.OperationHandle) (domain.OCRStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.polls
	m.polls++
	if i < len(m.pollErrs) && m.pollErrs[i] != nil {
		return domain.OCRStatus{}, m.pollErrs[i]
	}
	if len(m.statuses) == 0 {
		return domain.OCRStatus{State: domain.OCRPending}, nil
	}
	if i >= len(m.statuses) {
		return m.statuses[len(m.statuses)-1], nil
	}
	return m.statuses[i], nil
}

func (m *mockOCRProvider) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}
