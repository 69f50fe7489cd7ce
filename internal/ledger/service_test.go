package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/shared"
)

type memoryRepo struct {
	store *memoryStore
}

func (r *memoryRepo) WithMovementTx(ctx context.Context, fn func(context.Context, MovementStore) error) error {
	return fn(ctx, r.store)
}

func (r *memoryRepo) ListEntries(_ context.Context, _ EntryFilter) ([]Entry, error) {
	return r.store.entries, nil
}

func (r *memoryRepo) ListAlerts(_ context.Context, status AlertStatus) ([]Alert, error) {
	var out []Alert
	for _, a := range r.store.alerts {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func newAdjustService(store *memoryStore) *Service {
	return NewService(&memoryRepo{store: store}, nil, nil, nil)
}

func TestAdjustAdd(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "MLK-1L", 10, 5)

	entry, err := newAdjustService(store).Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Quantity: 5, Mode: AdjustModeAdd, Notes: "recount", ActorID: 2,
	})
	require.NoError(t, err)
	require.Equal(t, MovementPurchase, entry.Type)
	require.Equal(t, int64(15), entry.AfterStock)
}

func TestAdjustRemoveAndWaste(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "MLK-1L", 10, 2)
	svc := newAdjustService(store)

	entry, err := svc.Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Quantity: 3, Mode: AdjustModeRemove, Notes: "damage",
	})
	require.NoError(t, err)
	require.Equal(t, MovementSale, entry.Type)
	require.Equal(t, int64(-3), entry.Quantity)

	entry, err = svc.Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Quantity: 2, Mode: AdjustModeWaste, Notes: "expired",
	})
	require.NoError(t, err)
	require.Equal(t, MovementWastage, entry.Type)
	require.Equal(t, int64(5), entry.AfterStock)
}

func TestAdjustSetComputesDelta(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "MLK-1L", 10, 2)
	svc := newAdjustService(store)

	entry, err := svc.Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Quantity: 4, Mode: AdjustModeSet, Notes: "stocktake",
	})
	require.NoError(t, err)
	require.Equal(t, MovementAdjustment, entry.Type)
	require.Equal(t, int64(-6), entry.Quantity)
	require.Equal(t, int64(4), entry.AfterStock)
}

func TestAdjustSetToSameValueFails(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "MLK-1L", 10, 2)

	_, err := newAdjustService(store).Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Quantity: 10, Mode: AdjustModeSet, Notes: "stocktake",
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
	require.Empty(t, store.entries)
}

func TestAdjustValidatesQuantity(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "MLK-1L", 10, 2)
	svc := newAdjustService(store)

	_, err := svc.Adjust(context.Background(), AdjustmentInput{ProductID: 1, Quantity: 0, Mode: AdjustModeAdd})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Adjust(context.Background(), AdjustmentInput{ProductID: 1, Quantity: -1, Mode: AdjustModeSet})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Adjust(context.Background(), AdjustmentInput{ProductID: 1, Quantity: 1, Mode: "UNKNOWN"})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestAdjustRemoveCannotOverdraw(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "MLK-1L", 2, 0)

	_, err := newAdjustService(store).Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Quantity: 5, Mode: AdjustModeRemove, Notes: "oops",
	})
	_, ok := shared.AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, int64(2), store.products[1].CurrentStock)
}
