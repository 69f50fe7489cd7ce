package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// ProductState is the slice of a product the ledger needs, read with a row
// lock inside the caller's transaction.
type ProductState struct {
	ID            int64
	SKU           string
	CurrentStock  int64
	MinStockAlert int64
}

// MovementStore is the transactional surface a movement is applied against.
// The sale, purchase and adjustment engines each implement it on top of their
// own transaction wrapper, so the snapshot and alert invariants are enforced
// in exactly one place: Apply.
type MovementStore interface {
	GetProductForUpdate(ctx context.Context, productID int64) (ProductState, error)
	SetProductStock(ctx context.Context, productID, stock int64) error
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	HasActiveAlert(ctx context.Context, productID int64) (bool, error)
	InsertAlert(ctx context.Context, alert Alert) (Alert, error)
	ResolveActiveAlerts(ctx context.Context, productID, actorID int64, at time.Time) error
}

// Apply posts one stock movement: it re-reads the stock under lock, rejects
// anything that would drive it negative, writes the new value together with
// an immutable entry, and re-evaluates the alert policy. All of it lives in
// the caller's transaction; nothing is visible until that commits.
//
// The returned alert is non-nil when this movement raised one.
func Apply(ctx context.Context, store MovementStore, in MovementInput) (Entry, *Alert, error) {
	if in.Quantity == 0 {
		return Entry{}, nil, fmt.Errorf("%w: movement quantity must be non-zero", shared.ErrValidation)
	}
	if in.ProductID <= 0 {
		return Entry{}, nil, fmt.Errorf("%w: product id required", shared.ErrValidation)
	}

	state, err := store.GetProductForUpdate(ctx, in.ProductID)
	if err != nil {
		return Entry{}, nil, err
	}

	after := state.CurrentStock + in.Quantity
	if after < 0 {
		return Entry{}, nil, &shared.InsufficientStockError{
			ProductID: state.ID,
			SKU:       state.SKU,
			Available: state.CurrentStock,
			Requested: -in.Quantity,
		}
	}

	if err := store.SetProductStock(ctx, in.ProductID, after); err != nil {
		return Entry{}, nil, err
	}

	entry, err := store.InsertEntry(ctx, Entry{
		ProductID:   in.ProductID,
		Type:        in.Type,
		Quantity:    in.Quantity,
		BeforeStock: state.CurrentStock,
		AfterStock:  after,
		Reference:   in.Reference,
		ActorID:     in.ActorID,
	})
	if err != nil {
		return Entry{}, nil, err
	}

	alert, err := evaluateAlerts(ctx, store, state, after, in.ActorID)
	if err != nil {
		return Entry{}, nil, err
	}
	return entry, alert, nil
}

// evaluateAlerts applies the alert policy, deterministic given
// (afterStock, minStockAlert). Zero stock always raises a fresh alert, even
// when one is already active: zero-stock alerts are urgent and repeat.
func evaluateAlerts(ctx context.Context, store MovementStore, state ProductState, after, actorID int64) (*Alert, error) {
	raise := func() (*Alert, error) {
		alert, err := store.InsertAlert(ctx, Alert{
			ProductID:    state.ID,
			StockAtRaise: after,
			Threshold:    state.MinStockAlert,
			Status:       AlertStatusActive,
		})
		if err != nil {
			return nil, err
		}
		return &alert, nil
	}

	switch {
	case after == 0:
		return raise()
	case after < state.MinStockAlert:
		active, err := store.HasActiveAlert(ctx, state.ID)
		if err != nil {
			return nil, err
		}
		if !active {
			return raise()
		}
		return nil, nil
	default:
		if err := store.ResolveActiveAlerts(ctx, state.ID, actorID, time.Now().UTC()); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
