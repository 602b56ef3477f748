package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listcart/backend/internal/domain"
)

// ReconcilerConfig holds configuration for the cart reconciler
type ReconcilerConfig struct {
	// MaxSaveRetries is how many times a conflicting save is reloaded and retried
	MaxSaveRetries int
}

// ReconcileOutcome is the result of folding one batch into a cart.
// Cart is nil when the user had no cart and nothing matched.
type ReconcileOutcome struct {
	Cart     *domain.Cart          `json:"cart"`
	Added    []domain.AddedItem    `json:"added"`
	NotFound []domain.NotFoundItem `json:"notFound"`
}

// CartReconciler merges match results into per-user carts
type CartReconciler struct {
	store          domain.CartStore
	locks          *userLocks
	maxSaveRetries int
	logger         *zap.Logger
	now            func() time.Time
}

// NewCartReconciler creates a reconciler backed by store
func NewCartReconciler(store domain.CartStore, config ReconcilerConfig, logger *zap.Logger) *CartReconciler {
	retries := config.MaxSaveRetries
	if retries <= 0 {
		retries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CartReconciler{
		store:          store,
		locks:          newUserLocks(),
		maxSaveRetries: retries,
		logger:         logger,
		now:            time.Now,
	}
}

// Reconcile folds matches into userID's cart in order. Matched products are
// merged additively, unmatched items are only reported. The whole batch is
// written with a single save; a conflicting save reloads the cart and folds
// the batch again, up to the configured retry count.
func (r *CartReconciler) Reconcile(ctx context.Context, userID string, matches []domain.MatchResult) (*ReconcileOutcome, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	unlock, err := r.locks.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	outcome := buildReport(matches)

	for attempt := 0; attempt <= r.maxSaveRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := r.load(ctx, userID)
		if err != nil {
			return nil, err
		}

		if len(outcome.Added) == 0 {
			// Nothing to write: the cart stays exactly as it was, or absent
			outcome.Cart = current
			return outcome, nil
		}

		updated := current.Clone()
		if updated == nil {
			updated = &domain.Cart{ID: uuid.NewString(), UserID: userID}
		}
		for _, m := range matches {
			if !m.Matched() {
				continue
			}
			if existing, ok := updated.Entry(m.Product.ID); ok && existing.Quantity.Unit != m.Quantity.Unit {
				r.logger.Debug("unit mismatch, keeping cart unit",
					zap.String("product_id", m.Product.ID),
					zap.String("cart_unit", string(existing.Quantity.Unit)),
					zap.String("incoming_unit", string(m.Quantity.Unit)),
				)
			}
			updated.Merge(*m.Product, m.Quantity, m.Source)
		}
		updated.UpdatedAt = r.now()

		err = r.store.Save(ctx, updated)
		if err == nil {
			r.logger.Info("cart reconciled",
				zap.String("user_id", userID),
				zap.Int("added", len(outcome.Added)),
				zap.Int("not_found", len(outcome.NotFound)),
				zap.Int("entries", len(updated.Entries)),
				zap.Int("attempt", attempt+1),
			)
			outcome.Cart = updated
			return outcome, nil
		}

		if !errors.Is(err, domain.ErrCartConflict) {
			return nil, fmt.Errorf("save cart: %w", err)
		}

		r.logger.Warn("cart write conflict, reloading",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("%w: user %s after %d attempts", domain.ErrCartRetriesExhausted, userID, r.maxSaveRetries+1)
}

// Cart returns the user's current cart, or ErrCartNotFound
func (r *CartReconciler) Cart(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.store.Load(ctx, userID)
}

// load returns the stored cart, or nil when the user has none yet
func (r *CartReconciler) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := r.store.Load(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

// buildReport splits matches into the added and not-found lists, in input order
func buildReport(matches []domain.MatchResult) *ReconcileOutcome {
	outcome := &ReconcileOutcome{
		Added:    []domain.AddedItem{},
		NotFound: []domain.NotFoundItem{},
	}

	for _, m := range matches {
		if m.Matched() {
			product := *m.Product
			outcome.Added = append(outcome.Added, domain.AddedItem{
				Name:     m.Candidate.RawName,
				Quantity: m.Quantity,
				Source:   m.Source,
				Product:  &product,
			})
			continue
		}
		outcome.NotFound = append(outcome.NotFound, domain.NotFoundItem{
			Name:     m.Candidate.RawName,
			Quantity: m.Quantity,
			Reason:   domain.NotFoundReason,
		})
	}

	return outcome
}
