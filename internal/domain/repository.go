package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// TieBreak decides which product wins when several satisfy the same keywords
type TieBreak string

const (
	// TieBreakFirst keeps catalog order: the first satisfying product wins
	TieBreakFirst TieBreak = "first"
	// TieBreakShortest picks the shortest satisfying name, then catalog order
	TieBreakShortest TieBreak = "shortest"
)

// ProductPredicate is a set of required keywords that a product name must contain
type ProductPredicate interface {
	Keywords() []string
	Matches(name string) bool
}

// ProductCatalog resolves predicates to products. A nil product with a nil
// error means nothing satisfied the predicate.
type ProductCatalog interface {
	FindOne(ctx context.Context, predicate ProductPredicate, tieBreak TieBreak) (*ProductRef, error)
}

// CartStore persists carts. Load returns ErrCartNotFound when the user has
// no cart; Save returns ErrCartConflict when the stored version differs from
// cart.Version. On success Save bumps cart.Version.
type CartStore interface {
	Load(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
}

// OCRState is the provider-reported state of a recognition operation
type OCRState string

const (
	OCRPending   OCRState = "pending"
	OCRSucceeded OCRState = "succeeded"
	OCRFailed    OCRState = "failed"
)

// OperationHandle identifies a submitted OCR operation
type OperationHandle string

// OCRStatus is the result of one poll
type OCRStatus struct {
	State   OCRState
	Lines   []string
	Message string
}

// OCRProvider is the external text recognition service
type OCRProvider interface {
	Submit(ctx context.Context, image []byte) (OperationHandle, error)
	Poll(ctx context.Context, handle OperationHandle) (OCRStatus, error)
}
