package stocktake

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/shared"
)

type fakeProduct struct {
	count    ProductCount
	minAlert int64
}

type fakeState struct {
	products map[int64]*fakeProduct
	takes    map[int64]*StockTake
	entries  []ledger.Entry
	alerts   []ledger.Alert
	seq      map[string]int64
	nextID   int64
}

func newFakeState() *fakeState {
	return &fakeState{
		products: make(map[int64]*fakeProduct),
		takes:    make(map[int64]*StockTake),
		seq:      make(map[string]int64),
	}
}

func (s *fakeState) clone() *fakeState {
	c := newFakeState()
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, st := range s.takes {
		cs := *st
		cs.Items = append([]Item(nil), st.Items...)
		c.takes[id] = &cs
	}
	c.entries = append([]ledger.Entry(nil), s.entries...)
	c.alerts = append([]ledger.Alert(nil), s.alerts...)
	for k, v := range s.seq {
		c.seq[k] = v
	}
	c.nextID = s.nextID
	return c
}

type fakeRepo struct {
	state *fakeState
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, &fakeTx{state: r.state}); err != nil {
		*r.state = *snapshot
		return err
	}
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (StockTake, error) {
	st, ok := r.state.takes[id]
	if !ok {
		return StockTake{}, fmt.Errorf("%w: stock take %d", shared.ErrNotFound, id)
	}
	return *st, nil
}

func (r *fakeRepo) List(_ context.Context, _ ListFilter) ([]StockTake, int, error) {
	var out []StockTake
	for _, st := range r.state.takes {
		out = append(out, *st)
	}
	return out, len(out), nil
}

type fakeTx struct {
	state *fakeState
}

func (t *fakeTx) NextDocNumber(_ context.Context, scope string, day time.Time) (int64, error) {
	key := scope + day.Format("20060102")
	t.state.seq[key]++
	return t.state.seq[key], nil
}

func (t *fakeTx) GetProductForCount(_ context.Context, productID int64) (ProductCount, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return ProductCount{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	return p.count, nil
}

func (t *fakeTx) InsertStockTake(_ context.Context, st StockTake) (int64, error) {
	t.state.nextID++
	st.ID = t.state.nextID
	t.state.takes[st.ID] = &st
	return st.ID, nil
}

func (t *fakeTx) InsertItems(_ context.Context, stockTakeID int64, items []Item) error {
	t.state.takes[stockTakeID].Items = append([]Item(nil), items...)
	return nil
}

func (t *fakeTx) GetStockTakeForUpdate(_ context.Context, id int64) (StockTake, error) {
	st, ok := t.state.takes[id]
	if !ok {
		return StockTake{}, fmt.Errorf("%w: stock take %d", shared.ErrNotFound, id)
	}
	return *st, nil
}

func (t *fakeTx) SetReconciled(_ context.Context, id, actorID int64, at time.Time) error {
	st, ok := t.state.takes[id]
	if !ok {
		return fmt.Errorf("%w: stock take %d", shared.ErrNotFound, id)
	}
	st.Status = StatusReconciled
	st.ReconciledBy = &actorID
	st.ReconciledAt = &at
	return nil
}

// ledger.MovementStore

func (t *fakeTx) GetProductForUpdate(_ context.Context, productID int64) (ledger.ProductState, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return ledger.ProductState{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	return ledger.ProductState{
		ID:            p.count.ID,
		SKU:           p.count.SKU,
		CurrentStock:  p.count.CurrentStock,
		MinStockAlert: p.minAlert,
	}, nil
}

func (t *fakeTx) SetProductStock(_ context.Context, productID, stock int64) error {
	t.state.products[productID].count.CurrentStock = stock
	return nil
}

func (t *fakeTx) InsertEntry(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	t.state.nextID++
	entry.ID = t.state.nextID
	t.state.entries = append(t.state.entries, entry)
	return entry, nil
}

func (t *fakeTx) HasActiveAlert(_ context.Context, productID int64) (bool, error) {
	for _, a := range t.state.alerts {
		if a.ProductID == productID && a.Status == ledger.AlertStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) InsertAlert(_ context.Context, alert ledger.Alert) (ledger.Alert, error) {
	t.state.nextID++
	alert.ID = t.state.nextID
	t.state.alerts = append(t.state.alerts, alert)
	return alert, nil
}

func (t *fakeTx) ResolveActiveAlerts(_ context.Context, productID, actorID int64, at time.Time) error {
	for i := range t.state.alerts {
		if t.state.alerts[i].ProductID == productID && t.state.alerts[i].Status == ledger.AlertStatusActive {
			t.state.alerts[i].Status = ledger.AlertStatusResolved
			t.state.alerts[i].ResolvedBy = &actorID
			t.state.alerts[i].ResolvedAt = &at
		}
	}
	return nil
}

func newStockTakeFixture() (*fakeState, *Service) {
	state := newFakeState()
	state.products[1] = &fakeProduct{
		count:    ProductCount{ID: 1, SKU: "COF-250", Name: "Coffee", CurrentStock: 10},
		minAlert: 3,
	}
	state.products[2] = &fakeProduct{
		count:    ProductCount{ID: 2, SKU: "BRD-STD", Name: "Bread", CurrentStock: 4},
		minAlert: 2,
	}
	svc := NewService(&fakeRepo{state: state}, nil, nil, nil)
	return state, svc
}

func TestCreateRecordsCountWithoutMovingStock(t *testing.T) {
	state, svc := newStockTakeFixture()

	st, err := svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{
			{ProductID: 1, CountedQty: 8},
			{ProductID: 2, CountedQty: 4},
		},
	}, 9)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, st.Status)
	require.Regexp(t, `^STK-\d{8}-0001$`, st.Reference)
	require.Len(t, st.Items, 2)
	require.Equal(t, int64(-2), st.Items[0].Variance)
	require.Equal(t, "COF-250", st.Items[0].SKU)

	// Recording the count is a snapshot; nothing moved.
	require.Equal(t, int64(10), state.products[1].count.CurrentStock)
	require.Empty(t, state.entries)
}

func TestCreateRejectsDuplicateAndUnknownProducts(t *testing.T) {
	state, svc := newStockTakeFixture()

	_, err := svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{
			{ProductID: 1, CountedQty: 8},
			{ProductID: 1, CountedQty: 9},
		},
	}, 9)
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{{ProductID: 42, CountedQty: 1}},
	}, 9)
	require.True(t, errors.Is(err, shared.ErrNotFound))
	require.Empty(t, state.takes)
}

func TestReconcilePostsAdjustments(t *testing.T) {
	state, svc := newStockTakeFixture()

	st, err := svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{
			{ProductID: 1, CountedQty: 7},
			{ProductID: 2, CountedQty: 4},
		},
	}, 9)
	require.NoError(t, err)

	done, err := svc.Reconcile(context.Background(), st.ID, 10)
	require.NoError(t, err)
	require.Equal(t, StatusReconciled, done.Status)
	require.NotNil(t, done.ReconciledBy)
	require.Equal(t, int64(10), *done.ReconciledBy)

	// Only the drifted product got an adjustment, and stock now matches the
	// count.
	require.Equal(t, int64(7), state.products[1].count.CurrentStock)
	require.Equal(t, int64(4), state.products[2].count.CurrentStock)
	require.Len(t, state.entries, 1)
	require.Equal(t, ledger.MovementAdjustment, state.entries[0].Type)
	require.Equal(t, int64(-3), state.entries[0].Quantity)
	require.Equal(t, st.Reference, state.entries[0].Reference)
}

func TestReconcileUsesLiveStockForDelta(t *testing.T) {
	state, svc := newStockTakeFixture()

	st, err := svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{{ProductID: 1, CountedQty: 8}},
	}, 9)
	require.NoError(t, err)

	// A sale happened between count and reconcile.
	state.products[1].count.CurrentStock = 6

	_, err = svc.Reconcile(context.Background(), st.ID, 9)
	require.NoError(t, err)
	require.Equal(t, int64(8), state.products[1].count.CurrentStock)
	require.Equal(t, int64(2), state.entries[0].Quantity)
}

func TestReconcileBelowThresholdRaisesAlert(t *testing.T) {
	state, svc := newStockTakeFixture()

	st, err := svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{{ProductID: 1, CountedQty: 2}},
	}, 9)
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background(), st.ID, 9)
	require.NoError(t, err)
	require.Len(t, state.alerts, 1)
	require.Equal(t, ledger.AlertStatusActive, state.alerts[0].Status)
	require.Equal(t, int64(2), state.alerts[0].StockAtRaise)
}

func TestReconcileTwiceConflicts(t *testing.T) {
	_, svc := newStockTakeFixture()

	st, err := svc.Create(context.Background(), CreateRequest{
		Lines: []CountLine{{ProductID: 1, CountedQty: 9}},
	}, 9)
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background(), st.ID, 9)
	require.NoError(t, err)
	_, err = svc.Reconcile(context.Background(), st.ID, 9)
	require.True(t, errors.Is(err, shared.ErrConflict))
}
