package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/listcart/backend/internal/domain"
)

var (
	productMilk  = &domain.ProductRef{ID: "P1", Name: "Toned Milk"}
	productBread = &domain.ProductRef{ID: "P2", Name: "Brown Bread"}
)

func matched(name string, product *domain.ProductRef, value float64, unit domain.Unit) domain.MatchResult {
	return domain.MatchResult{
		Candidate: domain.CandidateItem{RawName: name},
		Product:   product,
		Quantity:  domain.Quantity{Value: value, Unit: unit},
		Source:    domain.SourceManual,
	}
}

func unmatched(name string) domain.MatchResult {
	return domain.MatchResult{
		Candidate: domain.CandidateItem{RawName: name},
		Quantity:  domain.DefaultQuantity,
		Source:    domain.SourceOCR,
	}
}

func assertUniqueEntries(t *testing.T, cart *domain.Cart) {
	t.Helper()
	seen := make(map[string]bool)
	for _, e := range cart.Entries {
		assert.False(t, seen[e.ProductID], "duplicate entry for %s", e.ProductID)
		seen[e.ProductID] = true
	}
}

func TestCartReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("creates cart lazily and merges in one batch", func(t *testing.T) {
		store := newMockCartStore()
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{
			matched("milk", productMilk, 2, domain.UnitCount),
			matched("milk", productMilk, 3, domain.UnitCount),
		})
		require.NoError(t, err)
		require.NotNil(t, out.Cart)

		assert.NotEmpty(t, out.Cart.ID)
		assert.Equal(t, "u1", out.Cart.UserID)
		require.Len(t, out.Cart.Entries, 1)
		assert.Equal(t, 5.0, out.Cart.Entries[0].Quantity.Value)
		assert.Len(t, out.Added, 2)
		assert.Empty(t, out.NotFound)
		assert.Equal(t, 1, store.saveCount(), "batch must be written once")
	})

	t.Run("separate batches reach the same total", func(t *testing.T) {
		store := newMockCartStore()
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		_, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitCount)})
		require.NoError(t, err)
		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 3, domain.UnitCount)})
		require.NoError(t, err)

		require.Len(t, out.Cart.Entries, 1)
		assert.Equal(t, 5.0, out.Cart.Entries[0].Quantity.Value)
		assert.Equal(t, int64(2), store.get("u1").Version)
	})

	t.Run("keeps input order and source tags", func(t *testing.T) {
		store := newMockCartStore()
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		bread := matched("bread", productBread, 1, domain.UnitCount)
		bread.Source = domain.SourceOCR
		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{
			bread,
			unmatched("caviar"),
			matched("milk", productMilk, 2, domain.UnitLitre),
		})
		require.NoError(t, err)

		require.Len(t, out.Cart.Entries, 2)
		assert.Equal(t, "P2", out.Cart.Entries[0].ProductID)
		assert.Equal(t, domain.SourceOCR, out.Cart.Entries[0].Source)
		assert.Equal(t, "P1", out.Cart.Entries[1].ProductID)
		assert.Equal(t, domain.Quantity{Value: 2, Unit: domain.UnitLitre}, out.Cart.Entries[1].Quantity)

		assert.Equal(t, []domain.NotFoundItem{
			{Name: "caviar", Quantity: domain.DefaultQuantity, Reason: "not found in database"},
		}, out.NotFound)
	})

	t.Run("unmatched batch leaves an absent cart absent", func(t *testing.T) {
		store := newMockCartStore()
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{unmatched("caviar"), unmatched("truffle")})
		require.NoError(t, err)

		assert.Nil(t, out.Cart)
		assert.Len(t, out.NotFound, 2)
		assert.Equal(t, 0, store.saveCount())
		_, err = store.Load(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
	})

	t.Run("unmatched batch leaves an existing cart untouched", func(t *testing.T) {
		store := newMockCartStore()
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		_, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitCount)})
		require.NoError(t, err)
		before := store.get("u1")

		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{unmatched("caviar")})
		require.NoError(t, err)

		assert.Equal(t, before, store.get("u1"))
		assert.Equal(t, before, out.Cart)
		assert.Equal(t, 1, store.saveCount())
	})

	t.Run("retries after a conflict", func(t *testing.T) {
		store := newMockCartStore()
		store.conflicts = 2
		r := NewCartReconciler(store, ReconcilerConfig{MaxSaveRetries: 3}, nil)

		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitCount)})
		require.NoError(t, err)
		assert.Equal(t, 2.0, out.Cart.Entries[0].Quantity.Value)
		assert.Equal(t, 3, store.saveCount())
	})

	t.Run("conflict reload picks up the concurrent write", func(t *testing.T) {
		store := newMockCartStore()
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		// Another process writes between our load and our save, once
		var once sync.Once
		store.beforeSave = func() {
			once.Do(func() {
				store.mu.Lock()
				store.carts["u1"] = &domain.Cart{
					ID:      "other",
					UserID:  "u1",
					Version: 1,
					Entries: []domain.CartEntry{{ProductID: "P1", Quantity: domain.Quantity{Value: 10, Unit: domain.UnitCount}}},
				}
				store.mu.Unlock()
			})
		}

		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitCount)})
		require.NoError(t, err)

		require.Len(t, out.Cart.Entries, 1)
		assert.Equal(t, 12.0, out.Cart.Entries[0].Quantity.Value)
		assert.Equal(t, "other", out.Cart.ID)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		store := newMockCartStore()
		store.conflicts = 100
		r := NewCartReconciler(store, ReconcilerConfig{MaxSaveRetries: 2}, nil)

		out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitCount)})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, domain.ErrCartRetriesExhausted)
		assert.Equal(t, 3, store.saveCount())
	})

	t.Run("store errors abort", func(t *testing.T) {
		store := newMockCartStore()
		store.loadErr = errors.New("db down")
		r := NewCartReconciler(store, ReconcilerConfig{}, nil)

		_, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitCount)})
		assert.Error(t, err)
		assert.Equal(t, 0, store.saveCount())
	})

	t.Run("requires a user", func(t *testing.T) {
		r := NewCartReconciler(newMockCartStore(), ReconcilerConfig{}, nil)

		_, err := r.Reconcile(ctx, "", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestCartReconciler_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	store := newMockCartStore()
	// Slow saves widen the read-modify-write window
	store.beforeSave = func() { time.Sleep(time.Millisecond) }
	r := NewCartReconciler(store, ReconcilerConfig{MaxSaveRetries: 1}, nil)

	const runs = 25
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reconcile(ctx, "u1", []domain.MatchResult{
				matched("milk", productMilk, 1, domain.UnitCount),
				matched("bread", productBread, 2, domain.UnitCount),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart := store.get("u1")
	require.NotNil(t, cart)
	assertUniqueEntries(t, cart)
	milk, ok := cart.Entry("P1")
	require.True(t, ok)
	assert.Equal(t, float64(runs), milk.Quantity.Value)
	bread, ok := cart.Entry("P2")
	require.True(t, ok)
	assert.Equal(t, float64(2*runs), bread.Quantity.Value)
	assert.Equal(t, 0, r.locks.size())
}

func TestCartReconciler_DifferentUsersRunInParallel(t *testing.T) {
	ctx := context.Background()
	store := newMockCartStore()
	r := NewCartReconciler(store, ReconcilerConfig{}, nil)

	// Hold u1's slot; u2 must still go through
	unlock, err := r.locks.lock(ctx, "u1")
	require.NoError(t, err)
	defer unlock()

	done := make(chan error, 1)
	go func() {
		_, err := r.Reconcile(ctx, "u2", []domain.MatchResult{matched("milk", productMilk, 1, domain.UnitCount)})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile for u2 blocked on u1's lock")
	}

	// A u1 run waiting on the slot gives up when its context ends
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = r.Reconcile(waitCtx, "u1", []domain.MatchResult{matched("milk", productMilk, 1, domain.UnitCount)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCartReconciler_UniqueEntriesAcrossBatches(t *testing.T) {
	ctx := context.Background()
	store := newMockCartStore()
	r := NewCartReconciler(store, ReconcilerConfig{}, nil)

	products := []*domain.ProductRef{productMilk, productBread, {ID: "P3", Name: "Eggs"}}
	for i := 0; i < 10; i++ {
		batch := []domain.MatchResult{
			matched(fmt.Sprint("a", i), products[i%3], 1, domain.UnitCount),
			matched(fmt.Sprint("b", i), products[(i+1)%3], 1, domain.UnitCount),
			unmatched("nothing"),
		}
		_, err := r.Reconcile(ctx, "u1", batch)
		require.NoError(t, err)
		assertUniqueEntries(t, store.get("u1"))
	}

	total := 0.0
	for _, e := range store.get("u1").Entries {
		total += e.Quantity.Value
	}
	assert.Equal(t, 20.0, total)
}

func TestCartReconciler_UnitMismatchKeepsCartUnit(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	store := newMockCartStore()
	r := NewCartReconciler(store, ReconcilerConfig{}, zap.New(core))

	_, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 2, domain.UnitLitre)})
	require.NoError(t, err)

	out, err := r.Reconcile(ctx, "u1", []domain.MatchResult{matched("milk", productMilk, 3, domain.UnitCount)})
	require.NoError(t, err)

	require.Len(t, out.Cart.Entries, 1)
	assert.Equal(t, domain.Quantity{Value: 5, Unit: domain.UnitLitre}, out.Cart.Entries[0].Quantity)

	mismatches := logs.FilterMessage("unit mismatch, keeping cart unit").All()
	require.Len(t, mismatches, 1)
	assert.Equal(t, "litre", mismatches[0].ContextMap()["cart_unit"])
	assert.Equal(t, "unit", mismatches[0].ContextMap()["incoming_unit"])
}
